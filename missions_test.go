package main

import "testing"

func TestMissionsCapAtTargets(t *testing.T) {
	s := NewPlayerState()
	s.Clicks = 75
	s.TotalCoins = 1234.9
	s.BoostsActivated = 2

	m := MissionsFor(s)
	if m.Clicks != 50 || m.Coins != 1000 || m.Boosts != 2 {
		t.Fatalf("unexpected missions %+v", m)
	}

	labels := m.Display()
	if labels["clicks"] != "50/50" || labels["coins"] != "1000/1000" || labels["boosts"] != "2/3" {
		t.Fatalf("unexpected labels %v", labels)
	}
}

func TestMissionCoinsAreFloored(t *testing.T) {
	s := NewPlayerState()
	s.TotalCoins = 12.99
	if got := MissionsFor(s).Coins; got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestMissionCoinsStayBoundedForHugeTotals(t *testing.T) {
	s, _ := RestorePlayerState(Progress{TotalCoins: 1e30, Level: 1, BaseMult: 1, EventMult: 1})
	m := MissionsFor(s)
	if m.Coins != missionCoinsTarget {
		t.Fatalf("expected %d, got %d", missionCoinsTarget, m.Coins)
	}
	if got := m.Display()["coins"]; got != "1000/1000" {
		t.Fatalf("unexpected label %q", got)
	}
}
