package main

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSnapshotFromRow(t *testing.T) {
	snap := snapshotFromRow("42", []byte(`{"coins":12.5,"level":2,"boostExpiresAt":{"mult":"2025-12-24T12:00:30Z"}}`))
	if snap == nil || snap.User.ID != "42" || snap.Progress.Coins != 12.5 || snap.Progress.Level != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, ok := snap.Progress.BoostExpiresAt["mult"]; !ok {
		t.Fatalf("expiry tokens not decoded")
	}

	if got := snapshotFromRow("42", []byte(`{"coins":`)); got != nil {
		t.Fatalf("malformed row must be absent, got %+v", got)
	}
}

func TestRatingEntryFromRow(t *testing.T) {
	entry := ratingEntryFromRow(1, "Ada", 1234.9)
	if entry.Rank != 1 || entry.DisplayName != "Ada" || entry.Coins != 1234 || entry.League != leagueFor(1) {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := ratingEntryFromRow(2, "Bob", -5).Coins; got != 0 {
		t.Fatalf("negative totals must rank as 0, got %d", got)
	}
}

// TestPostgresStoreRoundTrip runs against a real database when
// TEST_DATABASE_URL is set.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	userID := strconv.FormatInt(time.Now().UnixNano(), 10)
	state := NewPlayerState()
	state.Coins = 77
	state.TotalCoins = 1e15
	if err := store.Save(ctx, Snapshot{User: User{ID: userID, DisplayName: "Round Trip"}, Progress: state.Progress(nil)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := store.Load(ctx, userID)
	if err != nil || snap == nil || snap.Progress.Coins != 77 {
		t.Fatalf("load: %+v %v", snap, err)
	}
	if missing, err := store.Load(ctx, "0"); err != nil || missing != nil {
		t.Fatalf("expected absent row, got %+v %v", missing, err)
	}

	top, err := store.TopPlayers(ctx, 1)
	if err != nil || len(top) != 1 || top[0].DisplayName != "Round Trip" {
		t.Fatalf("top players: %+v %v", top, err)
	}

	ev := TelemetryEvent{ID: uuid.New(), UserID: userID, Type: TelemetryGiftClaimed, CreatedAt: time.Now().UTC()}
	if err := store.RecordTelemetry(ctx, ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordTelemetry(ctx, ev); err != nil {
		t.Fatalf("duplicate event must be ignored: %v", err)
	}
}
