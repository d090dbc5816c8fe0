package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type BoostKind string

const (
	BoostMult  BoostKind = "mult"
	BoostAuto  BoostKind = "auto"
	BoostLucky BoostKind = "lucky"
)

const (
	timedBoostDuration = 30 * time.Second
	multBoostValue     = 2.0
	autoBoostCPS       = 5.0
	luckyBonusChance   = 0.08
	luckyBonusFactor   = 5.0
)

var (
	ErrUnknownBoost      = errors.New("unknown boost")
	ErrInsufficientFunds = errors.New("not enough coins")
)

// BoostPrices is the static price table shared by every session.
type BoostPrices map[BoostKind]int

func DefaultBoostPrices() BoostPrices {
	return BoostPrices{
		BoostMult:  150,
		BoostAuto:  300,
		BoostLucky: 500,
	}
}

func ParseBoostKind(value string) (BoostKind, error) {
	switch BoostKind(strings.ToLower(strings.TrimSpace(value))) {
	case BoostMult:
		return BoostMult, nil
	case BoostAuto:
		return BoostAuto, nil
	case BoostLucky:
		return BoostLucky, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBoost, value)
	}
}

// Timed reports whether the boost reverts after timedBoostDuration.
func (k BoostKind) Timed() bool {
	return k == BoostMult || k == BoostLucky
}

// setTimedBoost records the expiry token for a timed boost. A second activation
// while the first is still running refreshes the expiry instead of stacking a
// second reversion.
func setTimedBoost(expiries map[BoostKind]time.Time, kind BoostKind, now time.Time) time.Time {
	expiresAt := now.UTC().Add(timedBoostDuration)
	if current, ok := expiries[kind]; ok && current.After(expiresAt) {
		return current
	}
	expiries[kind] = expiresAt
	return expiresAt
}

func hasActiveBoost(expiries map[BoostKind]time.Time, kind BoostKind, now time.Time) (bool, time.Time) {
	expiresAt, ok := expiries[kind]
	if !ok {
		return false, time.Time{}
	}
	return now.Before(expiresAt), expiresAt
}

// expiredBoosts removes and returns every token whose expiry is not after now.
func expiredBoosts(expiries map[BoostKind]time.Time, now time.Time) []BoostKind {
	var expired []BoostKind
	for _, kind := range []BoostKind{BoostMult, BoostLucky} {
		active, expiresAt := hasActiveBoost(expiries, kind, now)
		if active || expiresAt.IsZero() {
			continue
		}
		delete(expiries, kind)
		expired = append(expired, kind)
	}
	return expired
}
