package main

import (
	"fmt"
	"math"
)

const (
	missionClicksTarget = 50
	missionCoinsTarget  = 1000
	missionBoostsTarget = 3
)

// MissionProgress is display-only: missions have no completion reward.
type MissionProgress struct {
	Clicks       int `json:"clicks"`
	ClicksTarget int `json:"clicksTarget"`
	Coins        int `json:"coins"`
	CoinsTarget  int `json:"coinsTarget"`
	Boosts       int `json:"boosts"`
	BoostsTarget int `json:"boostsTarget"`
}

func MissionsFor(s PlayerState) MissionProgress {
	return MissionProgress{
		Clicks:       min(s.Clicks, missionClicksTarget),
		ClicksTarget: missionClicksTarget,
		Coins:        int(math.Floor(math.Min(s.TotalCoins, missionCoinsTarget))),
		CoinsTarget:  missionCoinsTarget,
		Boosts:       min(s.BoostsActivated, missionBoostsTarget),
		BoostsTarget: missionBoostsTarget,
	}
}

// Display renders each mission as "progress/target".
func (m MissionProgress) Display() map[string]string {
	return map[string]string{
		"clicks": fmt.Sprintf("%d/%d", m.Clicks, m.ClicksTarget),
		"coins":  fmt.Sprintf("%d/%d", m.Coins, m.CoinsTarget),
		"boosts": fmt.Sprintf("%d/%d", m.Boosts, m.BoostsTarget),
	}
}
