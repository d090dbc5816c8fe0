package main

import (
	"sync"
	"time"
)

const (
	NoticeLevelInfo    = "info"
	NoticeLevelWarning = "warning"
)

const (
	NoticeNotEnoughCoins  = "Not enough coins"
	NoticeBoostActivated  = "Boost activated"
	NoticeGiftReceived    = "Gift received"
	NoticeClaimActivated  = "Present activated"
	NoticeCarolsOn        = "Carols are on"
	NoticeCarolsOff       = "Carols are off"
	NoticeStormUp         = "The storm grows stronger"
	NoticeStormDown       = "The storm has calmed"
	NoticeSavedOffline    = "Saved offline"
	NoticePaymentDisabled = "Payments are unavailable (stub)"
	NoticeCheckout        = "Proceeding to checkout"
)

// Notice is a short user-visible message (the client shows it as a toast).
type Notice struct {
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventState  EventType = "state"
	EventNotice EventType = "notice"
)

// Event is emitted by an Engine after a mutation or for a notice.
type Event struct {
	Type     EventType
	UserID   string
	State    PlayerState
	Progress Progress
	Notice   Notice
}

// Listener receives engine events. It is called with the engine lock held and
// must not call back into the engine.
type Listener func(Event)

// Broadcaster fans session events out to presentation subscribers. Slow
// subscribers lose events rather than block the engine.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func newNotice(message string, level string, now time.Time) Notice {
	return Notice{Message: message, Level: level, CreatedAt: now.UTC()}
}
