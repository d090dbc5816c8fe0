package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
)

const (
	ratingSize        = 100
	ratingTopCoins    = 15000
	ratingStepCoins   = 97
	ratingJitterCoins = 500
)

var ratingLeagues = []string{"North", "Polar", "Icy", "Snowy"}

type RatingEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"displayName"`
	Coins       int64  `json:"coins"`
	League      string `json:"league"`
}

type RatingResponse struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Live    bool          `json:"live"`
	Results []RatingEntry `json:"results"`
}

// RatingSource ranks real players. Stores without one serve the seeded table.
type RatingSource interface {
	TopPlayers(ctx context.Context, limit int) ([]RatingEntry, error)
}

func leagueFor(rank int) string {
	return ratingLeagues[rank%len(ratingLeagues)]
}

// seededRating builds the demo rating table shown when no live ranking exists.
func seededRating(r Roller, size int) []RatingEntry {
	entries := make([]RatingEntry, 0, size)
	for i := 1; i <= size; i++ {
		coins := math.Floor(ratingTopCoins - float64(i*ratingStepCoins) + r.Float64()*ratingJitterCoins)
		entries = append(entries, RatingEntry{
			Rank:        i,
			DisplayName: fmt.Sprintf("Player_%03d", i),
			Coins:       int64(coins),
			League:      leagueFor(i),
		})
	}
	return entries
}

func ratingHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !app.Flags.Rating {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		limit := ratingSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= ratingSize {
				limit = v
			}
		}

		if app.Rating != nil {
			entries, err := app.Rating.TopPlayers(r.Context(), limit)
			if err == nil {
				writeJSON(w, http.StatusOK, RatingResponse{OK: true, Live: true, Results: entries})
				return
			}
			log.Println("Rating: live query failed, serving seeded table:", err)
		}

		seeded := app.SeededRating
		if len(seeded) > limit {
			seeded = seeded[:limit]
		}
		writeJSON(w, http.StatusOK, RatingResponse{OK: true, Results: seeded})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("HTTP: encode response:", err)
	}
}
