package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := OpenLocalStore(filepath.Join(t.TempDir(), "nested", "snow.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := openTestLocalStore(t)
	ctx := context.Background()

	state := NewPlayerState()
	state.Coins = 42.5
	state.Clicks = 10
	at := time.Date(2025, 12, 24, 12, 0, 30, 0, time.UTC)
	snap := Snapshot{
		User:     User{ID: "7", Username: "snow", DisplayName: "Snow"},
		Progress: state.Progress(map[BoostKind]time.Time{BoostLucky: at}),
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx, "7")
	if err != nil || got == nil {
		t.Fatalf("load: %v %v", got, err)
	}
	if got.User.DisplayName != "Snow" || got.Progress.Coins != 42.5 || got.Progress.Clicks != 10 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.Progress.BoostExpiresAt["lucky"].Equal(at) {
		t.Fatalf("expiry lost: %v", got.Progress.BoostExpiresAt)
	}

	state.Coins = 50
	snap.Progress = state.Progress(nil)
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = store.Load(ctx, "7")
	if got.Progress.Coins != 50 {
		t.Fatalf("expected overwrite, got %v", got.Progress.Coins)
	}
}

func TestLocalStoreMissingIsAbsent(t *testing.T) {
	store := openTestLocalStore(t)
	got, err := store.Load(context.Background(), "nobody")
	if err != nil || got != nil {
		t.Fatalf("expected absent, got %v %v", got, err)
	}
}

func TestLocalStoreMalformedIsAbsent(t *testing.T) {
	store := openTestLocalStore(t)
	ctx := context.Background()
	if err := store.put(ctx, "7", "{not json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Load(ctx, "7")
	if err != nil || got != nil {
		t.Fatalf("expected malformed snapshot to read as absent, got %v %v", got, err)
	}
}

func TestLocalStoreProfile(t *testing.T) {
	store := openTestLocalStore(t)
	ctx := context.Background()
	user := User{ID: "7", DisplayName: "Snow"}

	if p, err := store.FetchProfile(ctx, user); err != nil || p != nil {
		t.Fatalf("expected no profile before save, got %v %v", p, err)
	}
	if err := store.Save(ctx, Snapshot{User: user, Progress: NewPlayerState().Progress(nil)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	profile := resolveProfile(ctx, store, user)
	if profile.DisplayName != "Snow" || profile.Avatar != storedProfileAvatar {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.Season != currentSeasonName || profile.Achievements != defaultAchievements {
		t.Fatalf("defaults not filled: %+v", profile)
	}
}
