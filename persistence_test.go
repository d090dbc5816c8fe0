package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	saved   []Snapshot
	byUser  map[string]Snapshot
	err     error
	loadErr error
	gate    chan struct{}
	started chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byUser: make(map[string]Snapshot), started: make(chan struct{}, 16)}
}

func (m *memoryStore) Save(ctx context.Context, snap Snapshot) error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, snap)
	m.byUser[snap.User.ID] = snap
	return nil
}

func (m *memoryStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	snap, ok := m.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memoryStore) savedCoins() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s.Progress.Coins)
	}
	return out
}

func TestLocalPersisterSavesInline(t *testing.T) {
	store := newMemoryStore()
	p := NewPersister(store, ModeLocal, User{ID: "u1"}, nil)
	p.Start(context.Background())
	listen := p.Listener()

	listen(Event{Type: EventNotice, Notice: Notice{Message: "ignored"}})
	listen(Event{Type: EventState, Progress: Progress{Coins: 3}})

	if got := store.savedCoins(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected one inline save, got %v", got)
	}
	if store.saved[0].User.ID != "u1" {
		t.Fatalf("snapshot not tagged with user")
	}
	p.Close(context.Background())
}

func TestLocalPersisterReportsErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("disk full")
	var got error
	p := NewPersister(store, ModeLocal, User{ID: "u1"}, func(err error) { got = err })

	p.Save(Progress{Coins: 1})
	if got == nil || got.Error() != "disk full" {
		t.Fatalf("expected onError with disk full, got %v", got)
	}
}

func TestAsyncPersisterKeepsOnlyLatestPending(t *testing.T) {
	store := newMemoryStore()
	store.gate = make(chan struct{})
	p := NewPersister(store, ModeRemote, User{ID: "u1"}, nil)
	p.Start(context.Background())

	p.Save(Progress{Coins: 1})
	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("writer never picked up the first snapshot")
	}

	p.Save(Progress{Coins: 2})
	p.Save(Progress{Coins: 3})
	close(store.gate)
	p.Close(context.Background())

	got := store.savedCoins()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected saves [1 3], got %v", got)
	}
}

func TestAsyncPersisterReportsErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("503")
	errs := make(chan error, 1)
	p := NewPersister(store, ModeRemote, User{ID: "u1"}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	p.Start(context.Background())
	defer p.Close(context.Background())

	p.Save(Progress{Coins: 1})
	select {
	case err := <-errs:
		if err.Error() != "503" {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("save failure never reported")
	}
}

func TestPersisterCloseWithoutStart(t *testing.T) {
	store := newMemoryStore()
	p := NewPersister(store, ModeRemote, User{ID: "u1"}, nil)
	p.Save(Progress{Coins: 9})
	p.Close(context.Background())

	if got := store.savedCoins(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected pending snapshot flushed on close, got %v", got)
	}
}

// slowStore takes a while to save and gives up when its context ends, like a
// network store would.
type slowStore struct {
	*memoryStore
	delay time.Duration
}

func (s slowStore) Save(ctx context.Context, snap Snapshot) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return nil
}

func TestCloseKeepsSaveInFlightAtShutdown(t *testing.T) {
	store := slowStore{memoryStore: newMemoryStore(), delay: 50 * time.Millisecond}
	var reported []error
	p := NewPersister(store, ModeRemote, User{ID: "u1"}, func(err error) {
		reported = append(reported, err)
	})
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	p.Save(Progress{Coins: 42})
	select {
	case <-store.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("writer never picked up the snapshot")
	}
	cancel()
	p.Close(context.Background())

	if got := store.savedCoins(); len(got) != 1 || got[0] != 42 {
		t.Fatalf("expected the in-flight save to land, got %v (errors %v)", got, reported)
	}
}

func TestSaveAfterCloseIsWritten(t *testing.T) {
	store := newMemoryStore()
	p := NewPersister(store, ModeRemote, User{ID: "u1"}, nil)
	p.Start(context.Background())
	p.Close(context.Background())

	p.Save(Progress{Coins: 7})
	if got := store.savedCoins(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected late save written inline, got %v", got)
	}
}
