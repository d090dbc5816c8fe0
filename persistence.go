package main

import (
	"context"
	"sync"
)

// StorageKey names the local snapshot slot.
const StorageKey = "snowclicker:v1"

// Store persists player snapshots. Load returns a nil snapshot when nothing
// usable is stored.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, userID string) (*Snapshot, error)
}

// ProfileSource resolves the profile card shown for a user. A nil profile
// means the caller should synthesize one.
type ProfileSource interface {
	FetchProfile(ctx context.Context, user User) (*Profile, error)
}

// Persister flushes one session's progress after every mutation. In local
// mode saves happen inline; otherwise they are handed to a background writer
// that only keeps the newest snapshot. Failed saves are reported and dropped:
// the next mutation writes again.
type Persister struct {
	store   Store
	user    User
	async   bool
	onError func(error)

	pending chan Snapshot
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

func NewPersister(store Store, mode PersistenceMode, user User, onError func(error)) *Persister {
	if onError == nil {
		onError = func(error) {}
	}
	return &Persister{
		store:   store,
		user:    user,
		async:   mode != ModeLocal,
		onError: onError,
		pending: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
}

func (p *Persister) Start(ctx context.Context) {
	if !p.async {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

func (p *Persister) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.pending:
			// A save already taken from the mailbox finishes even when the
			// session is shutting down; the store's own timeout bounds it.
			if err := p.store.Save(context.WithoutCancel(ctx), snap); err != nil {
				p.onError(err)
			}
		}
	}
}

// Listener returns the engine listener that triggers a save on state events.
func (p *Persister) Listener() Listener {
	return func(ev Event) {
		if ev.Type != EventState {
			return
		}
		p.Save(ev.Progress)
	}
}

func (p *Persister) Save(progress Progress) {
	snap := Snapshot{User: p.user, Progress: progress}
	if !p.async {
		p.saveInline(snap)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// After Close no writer drains the mailbox, so late mutations save inline.
	if p.closed {
		p.saveInline(snap)
		return
	}
	select {
	case p.pending <- snap:
		return
	default:
	}
	// Replace the stale snapshot the writer has not picked up yet.
	select {
	case <-p.pending:
	default:
	}
	select {
	case p.pending <- snap:
	default:
	}
}

func (p *Persister) saveInline(snap Snapshot) {
	if err := p.store.Save(context.Background(), snap); err != nil {
		p.onError(err)
	}
}

// Close stops the background writer and writes any snapshot still waiting.
func (p *Persister) Close(ctx context.Context) {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
		select {
		case snap := <-p.pending:
			if err := p.store.Save(ctx, snap); err != nil {
				p.onError(err)
			}
		default:
		}
	})
}
