package main

import (
	"time"
)

const (
	maxCollection  = 12
	levelStepCoins = 500
)

// PlayerState is the progression of one player for one session.
// Only the Engine mutates it.
type PlayerState struct {
	Coins           float64
	TotalCoins      float64
	CPS             float64
	Streak          int
	BaseMult        float64
	EventMult       float64
	Level           int
	Collection      int
	Clicks          int
	BoostsActivated int
	BestMult        float64
	Gifts           int
	Lucky           bool
	GiftClaimed     bool
}

func NewPlayerState() PlayerState {
	return PlayerState{
		BaseMult:  1,
		EventMult: 1,
		Level:     1,
		BestMult:  1,
	}
}

// User is the identity a session was opened for.
type User struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Photo       *string `json:"photo"`
}

// Progress is the persisted form of PlayerState.
type Progress struct {
	Coins           float64              `json:"coins"`
	CPS             float64              `json:"cps"`
	Streak          int                  `json:"streak"`
	BaseMult        float64              `json:"baseMult"`
	EventMult       float64              `json:"eventMult"`
	Level           int                  `json:"level"`
	Collection      int                  `json:"collection"`
	Clicks          int                  `json:"clicks"`
	TotalCoins      float64              `json:"totalCoins"`
	BoostsActivated int                  `json:"boostsActivated"`
	BestMult        float64              `json:"bestMult"`
	Gifts           int                  `json:"gifts"`
	Lucky           bool                 `json:"lucky"`
	GiftClaimed     bool                 `json:"giftClaimed"`
	BoostExpiresAt  map[string]time.Time `json:"boostExpiresAt,omitempty"`
}

// Snapshot is what the persistence layer stores for a user.
type Snapshot struct {
	User     User     `json:"user"`
	Progress Progress `json:"progress"`
}

func (s PlayerState) Progress(expiries map[BoostKind]time.Time) Progress {
	p := Progress{
		Coins:           s.Coins,
		CPS:             s.CPS,
		Streak:          s.Streak,
		BaseMult:        s.BaseMult,
		EventMult:       s.EventMult,
		Level:           s.Level,
		Collection:      s.Collection,
		Clicks:          s.Clicks,
		TotalCoins:      s.TotalCoins,
		BoostsActivated: s.BoostsActivated,
		BestMult:        s.BestMult,
		Gifts:           s.Gifts,
		Lucky:           s.Lucky,
		GiftClaimed:     s.GiftClaimed,
	}
	if len(expiries) > 0 {
		p.BoostExpiresAt = make(map[string]time.Time, len(expiries))
		for kind, at := range expiries {
			p.BoostExpiresAt[string(kind)] = at.UTC()
		}
	}
	return p
}

// RestorePlayerState rebuilds a PlayerState from a stored snapshot. Values that
// would break an invariant are pulled back into range, and a timed effect with
// no expiry token is dropped so it cannot stay on forever.
func RestorePlayerState(p Progress) (PlayerState, map[BoostKind]time.Time) {
	s := PlayerState{
		Coins:           nonNegative(p.Coins),
		TotalCoins:      nonNegative(p.TotalCoins),
		CPS:             nonNegative(p.CPS),
		Streak:          maxInt(p.Streak, 0),
		BaseMult:        p.BaseMult,
		EventMult:       p.EventMult,
		Level:           maxInt(p.Level, 1),
		Collection:      clampInt(p.Collection, 0, maxCollection),
		Clicks:          maxInt(p.Clicks, 0),
		BoostsActivated: maxInt(p.BoostsActivated, 0),
		BestMult:        p.BestMult,
		Gifts:           maxInt(p.Gifts, 0),
		Lucky:           p.Lucky,
		GiftClaimed:     p.GiftClaimed,
	}
	if s.BaseMult <= 0 {
		s.BaseMult = 1
	}
	if s.EventMult <= 0 {
		s.EventMult = 1
	}
	if s.BestMult < 1 {
		s.BestMult = 1
	}

	expiries := make(map[BoostKind]time.Time)
	for name, at := range p.BoostExpiresAt {
		kind, err := ParseBoostKind(name)
		if err != nil || !kind.Timed() {
			continue
		}
		expiries[kind] = at
	}
	if _, ok := expiries[BoostMult]; !ok && s.BaseMult != 1 {
		s.BaseMult = 1
	}
	if _, ok := expiries[BoostLucky]; !ok && s.Lucky {
		s.Lucky = false
	}
	return s, expiries
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func maxInt(v int, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

func clampInt(v int, lo int, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
