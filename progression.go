package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

type Clock func() time.Time

// Roller supplies the uniform [0,1) draws used for the lucky bonus.
type Roller interface {
	Float64() float64
}

type EngineOptions struct {
	Prices BoostPrices
	Clock  Clock
	Roller Roller
}

// Engine applies progression events to one player's state. Every exported
// method holds the engine lock for its whole mutation, so events never
// interleave.
type Engine struct {
	mu        sync.Mutex
	userID    string
	state     PlayerState
	expiries  map[BoostKind]time.Time
	prices    BoostPrices
	now       Clock
	roll      Roller
	listeners []Listener
}

func NewEngine(userID string, state PlayerState, expiries map[BoostKind]time.Time, opts EngineOptions) *Engine {
	if opts.Prices == nil {
		opts.Prices = DefaultBoostPrices()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Roller == nil {
		opts.Roller = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	copied := make(map[BoostKind]time.Time, len(expiries))
	for kind, at := range expiries {
		copied[kind] = at
	}
	return &Engine{
		userID:   userID,
		state:    state,
		expiries: copied,
		prices:   opts.Prices,
		now:      opts.Clock,
		roll:     opts.Roller,
	}
}

func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) Snapshot() PlayerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Progress(e.expiries)
}

func (e *Engine) Prices() BoostPrices {
	out := make(BoostPrices, len(e.prices))
	for kind, price := range e.prices {
		out[kind] = price
	}
	return out
}

// ActiveBoosts returns the expiry of every timed boost still running.
func (e *Engine) ActiveBoosts() map[BoostKind]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	out := make(map[BoostKind]time.Time)
	for kind := range e.expiries {
		if active, expiresAt := hasActiveBoost(e.expiries, kind, now); active {
			out[kind] = expiresAt
		}
	}
	return out
}

func (e *Engine) effectiveMultiplier() float64 {
	return e.state.BaseMult * e.state.EventMult
}

// ApplyGain credits amount scaled by the effective multiplier and, while the
// lucky boost runs, an occasional x5 bonus. It returns the coins added.
func (e *Engine) ApplyGain(amount float64, source GainSource) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := e.applyGain(amount, source)
	e.emitState()
	return added
}

func (e *Engine) applyGain(amount float64, source GainSource) float64 {
	bonus := 1.0
	if e.state.Lucky && e.roll.Float64() < luckyBonusChance {
		bonus = luckyBonusFactor
	}
	mult := e.effectiveMultiplier()
	added := amount * mult * bonus

	e.state.Coins += added
	e.state.TotalCoins += added
	if source == FaucetClick {
		e.state.Clicks++
	}
	e.state.Streak++
	if e.state.Coins > float64(e.state.Level*levelStepCoins) {
		e.state.Level++
	}
	e.state.BestMult = math.Max(e.state.BestMult, mult)
	return added
}

// ActivateBoost buys a boost and returns the notice it broadcast.
// Insufficient funds leave the state untouched.
func (e *Engine) ActivateBoost(kind BoostKind) (Notice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cost, ok := e.prices[kind]
	if !ok {
		return Notice{}, fmt.Errorf("%w: %q", ErrUnknownBoost, kind)
	}
	now := e.now()
	if e.state.Coins < float64(cost) {
		return e.emitNotice(newNotice(NoticeNotEnoughCoins, NoticeLevelWarning, now)), ErrInsufficientFunds
	}

	e.state.Coins -= float64(cost)
	switch kind {
	case BoostMult:
		e.state.BaseMult = multBoostValue
		setTimedBoost(e.expiries, kind, now)
	case BoostAuto:
		e.state.CPS += autoBoostCPS
	case BoostLucky:
		e.state.Lucky = true
		setTimedBoost(e.expiries, kind, now)
	}
	e.state.BoostsActivated++
	if e.state.Collection < maxCollection {
		e.state.Collection++
	}

	n := e.emitNotice(newNotice(NoticeBoostActivated, NoticeLevelInfo, now))
	e.emitState()
	return n, nil
}

// Tick reverts expired timed boosts and pays one slice of passive income.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	for _, kind := range expiredBoosts(e.expiries, e.now()) {
		switch kind {
		case BoostMult:
			e.state.BaseMult = 1
		case BoostLucky:
			e.state.Lucky = false
		}
		changed = true
	}
	if e.state.CPS > 0 {
		e.applyGain(e.state.CPS/ticksPerSecond, FaucetAuto)
		changed = true
	}
	if changed {
		e.emitState()
	}
}

// ClaimGift pays the one-time gift. It reports false if the gift was already
// taken.
func (e *Engine) ClaimGift() (Notice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.GiftClaimed {
		return Notice{}, false
	}
	e.state.GiftClaimed = true
	e.state.Gifts++
	e.applyGain(giftReward, FaucetGift)
	n := e.emitNotice(newNotice(NoticeGiftReceived, NoticeLevelInfo, e.now()))
	e.emitState()
	return n, true
}

func (e *Engine) Claim() (float64, Notice) {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := e.applyGain(claimReward, FaucetClaim)
	n := e.emitNotice(newNotice(NoticeClaimActivated, NoticeLevelInfo, e.now()))
	e.emitState()
	return added, n
}

// SetCarols toggles the seasonal carols event multiplier.
func (e *Engine) SetCarols(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	message := NoticeCarolsOff
	e.state.EventMult = 1
	if on {
		e.state.EventMult = carolsEventMult
		message = NoticeCarolsOn
	}
	e.emitNotice(newNotice(message, NoticeLevelInfo, e.now()))
	e.emitState()
}

func (e *Engine) emitState() {
	ev := Event{
		Type:     EventState,
		UserID:   e.userID,
		State:    e.state,
		Progress: e.state.Progress(e.expiries),
	}
	for _, l := range e.listeners {
		l(ev)
	}
}

func (e *Engine) emitNotice(n Notice) Notice {
	ev := Event{Type: EventNotice, UserID: e.userID, Notice: n}
	for _, l := range e.listeners {
		l(ev)
	}
	return n
}
