package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeRating struct {
	entries []RatingEntry
	err     error
}

func (f fakeRating) TopPlayers(ctx context.Context, limit int) ([]RatingEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func TestSeededRating(t *testing.T) {
	entries := seededRating(fixedRoller(0), ratingSize)
	if len(entries) != ratingSize {
		t.Fatalf("expected %d rows, got %d", ratingSize, len(entries))
	}
	first := entries[0]
	if first.Rank != 1 || first.DisplayName != "Player_001" || first.Coins != 14903 || first.League != "Polar" {
		t.Fatalf("unexpected first row %+v", first)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Coins > entries[i-1].Coins {
			t.Fatalf("rating not descending at %d", i)
		}
	}
}

func getRating(t *testing.T, app *App, target string) (int, RatingResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	ratingHandler(app)(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var resp RatingResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec.Code, resp
}

func TestRatingHandlerServesSeededTable(t *testing.T) {
	app := &App{Flags: FeatureFlags{Rating: true}, SeededRating: seededRating(fixedRoller(0.5), ratingSize)}

	code, resp := getRating(t, app, "/api/rating?limit=5")
	if code != http.StatusOK || !resp.OK || resp.Live {
		t.Fatalf("unexpected response %d %+v", code, resp)
	}
	if len(resp.Results) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(resp.Results))
	}
}

func TestRatingHandlerPrefersLiveSource(t *testing.T) {
	app := &App{
		Flags:        FeatureFlags{Rating: true},
		Rating:       fakeRating{entries: []RatingEntry{{Rank: 1, DisplayName: "Ada", Coins: 10, League: "Polar"}}},
		SeededRating: seededRating(fixedRoller(0.5), ratingSize),
	}
	_, resp := getRating(t, app, "/api/rating")
	if !resp.Live || len(resp.Results) != 1 || resp.Results[0].DisplayName != "Ada" {
		t.Fatalf("expected live rows, got %+v", resp)
	}

	app.Rating = fakeRating{err: errors.New("db down")}
	_, resp = getRating(t, app, "/api/rating")
	if resp.Live || len(resp.Results) != ratingSize {
		t.Fatalf("expected seeded fallback, got live=%v rows=%d", resp.Live, len(resp.Results))
	}
}

func TestRatingHandlerDisabled(t *testing.T) {
	code, _ := getRating(t, &App{}, "/api/rating")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 when rating is off, got %d", code)
	}
}
