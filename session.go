package main

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// StateView is the JSON shape of a session's state handed to clients.
type StateView struct {
	Coins           float64              `json:"coins"`
	TotalCoins      float64              `json:"totalCoins"`
	CPS             float64              `json:"cps"`
	Streak          int                  `json:"streak"`
	BaseMult        float64              `json:"baseMult"`
	EventMult       float64              `json:"eventMult"`
	Multiplier      float64              `json:"multiplier"`
	Level           int                  `json:"level"`
	Collection      int                  `json:"collection"`
	CollectionMax   int                  `json:"collectionMax"`
	Clicks          int                  `json:"clicks"`
	BoostsActivated int                  `json:"boostsActivated"`
	BestMult        float64              `json:"bestMult"`
	Gifts           int                  `json:"gifts"`
	Lucky           bool                 `json:"lucky"`
	GiftClaimed     bool                 `json:"giftClaimed"`
	Snowstorm       bool                 `json:"snowstorm"`
	Prices          map[string]int       `json:"prices"`
	ActiveBoosts    map[string]time.Time `json:"activeBoosts,omitempty"`
	Missions        MissionProgress      `json:"missions"`
	MissionLabels   map[string]string    `json:"missionLabels"`
}

func buildStateView(s PlayerState, active map[string]time.Time, prices BoostPrices, storm bool) StateView {
	view := StateView{
		Coins:           s.Coins,
		TotalCoins:      s.TotalCoins,
		CPS:             s.CPS,
		Streak:          s.Streak,
		BaseMult:        s.BaseMult,
		EventMult:       s.EventMult,
		Multiplier:      s.BaseMult * s.EventMult,
		Level:           s.Level,
		Collection:      s.Collection,
		CollectionMax:   maxCollection,
		Clicks:          s.Clicks,
		BoostsActivated: s.BoostsActivated,
		BestMult:        s.BestMult,
		Gifts:           s.Gifts,
		Lucky:           s.Lucky,
		GiftClaimed:     s.GiftClaimed,
		Snowstorm:       storm,
		Prices:          make(map[string]int, len(prices)),
	}
	view.Missions = MissionsFor(s)
	view.MissionLabels = view.Missions.Display()
	for kind, price := range prices {
		view.Prices[string(kind)] = price
	}
	if len(active) > 0 {
		view.ActiveBoosts = active
	}
	return view
}

// runningBoosts keeps the expiry tokens of a persisted snapshot that are
// still in the future.
func runningBoosts(expiries map[string]time.Time, now time.Time) map[string]time.Time {
	out := make(map[string]time.Time)
	for kind, at := range expiries {
		if now.Before(at) {
			out[kind] = at
		}
	}
	return out
}

// Session is one player's open game: the engine that owns the state, the
// persister flushing it and the broadcaster feeding connected clients.
type Session struct {
	User    User
	Profile Profile
	Engine  *Engine
	Events  *Broadcaster

	persister *Persister
	now       Clock
	storm     atomic.Bool
	lastSeen  atomic.Int64
}

func (s *Session) Touch() {
	s.lastSeen.Store(s.now().UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Notify broadcasts a notice that did not come from the engine.
func (s *Session) Notify(message string, level string) Notice {
	n := newNotice(message, level, s.now())
	s.Events.Publish(Event{Type: EventNotice, UserID: s.User.ID, Notice: n})
	return n
}

// SetSnowstorm toggles the cosmetic snowstorm. It does not touch progression.
func (s *Session) SetSnowstorm(on bool) {
	s.storm.Store(on)
	if on {
		s.Notify(NoticeStormUp, NoticeLevelInfo)
	} else {
		s.Notify(NoticeStormDown, NoticeLevelInfo)
	}
}

func (s *Session) Snowstorm() bool {
	return s.storm.Load()
}

func (s *Session) View() StateView {
	active := make(map[string]time.Time)
	for kind, at := range s.Engine.ActiveBoosts() {
		active[string(kind)] = at
	}
	return buildStateView(s.Engine.Snapshot(), active, s.Engine.Prices(), s.Snowstorm())
}

// ViewOf renders the state carried by an engine event.
func (s *Session) ViewOf(ev Event) StateView {
	return buildStateView(ev.State, runningBoosts(ev.Progress.BoostExpiresAt, s.now()), s.Engine.Prices(), s.Snowstorm())
}

type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ctx         context.Context
	mode        PersistenceMode
	store       Store
	profiles    ProfileSource
	engineOpts  EngineOptions
	telemetry   *Telemetry
	idleTimeout time.Duration
	now         Clock
}

type SessionManagerConfig struct {
	Mode        PersistenceMode
	Store       Store
	Profiles    ProfileSource
	Engine      EngineOptions
	Telemetry   *Telemetry
	IdleTimeout time.Duration
}

// NewSessionManager builds the manager. ctx bounds the background persistence
// writers of every session it opens.
func NewSessionManager(ctx context.Context, cfg SessionManagerConfig) *SessionManager {
	now := cfg.Engine.Clock
	if now == nil {
		now = time.Now
	}
	cfg.Engine.Clock = now
	return &SessionManager{
		sessions:    make(map[string]*Session),
		ctx:         ctx,
		mode:        cfg.Mode,
		store:       cfg.Store,
		profiles:    cfg.Profiles,
		engineOpts:  cfg.Engine,
		telemetry:   cfg.Telemetry,
		idleTimeout: cfg.IdleTimeout,
		now:         now,
	}
}

// Open returns the live session for user, creating it from the stored
// snapshot or from defaults. A failed load never blocks play.
func (m *SessionManager) Open(ctx context.Context, user User) (*Session, error) {
	if s, ok := m.Get(user.ID); ok {
		s.Touch()
		return s, nil
	}

	state := NewPlayerState()
	var expiries map[BoostKind]time.Time
	snap, err := m.store.Load(ctx, user.ID)
	if err != nil {
		log.Println("Session: load failed for", user.ID+", starting fresh:", err)
	} else if snap != nil {
		state, expiries = RestorePlayerState(snap.Progress)
	}

	s := &Session{
		User:    user,
		Profile: resolveProfile(ctx, m.profiles, user),
		Engine:  NewEngine(user.ID, state, expiries, m.engineOpts),
		Events:  NewBroadcaster(),
		now:     m.now,
	}
	s.persister = NewPersister(m.store, m.mode, user, func(err error) {
		log.Println("Persistence: save failed for", user.ID+":", err)
		m.telemetry.Emit(m.ctx, user.ID, TelemetrySaveFailed, map[string]any{"error": err.Error()})
		if m.mode != ModeLocal {
			s.Notify(NoticeSavedOffline, NoticeLevelWarning)
		}
	})
	s.Touch()

	m.mu.Lock()
	if existing, ok := m.sessions[user.ID]; ok {
		m.mu.Unlock()
		existing.Touch()
		return existing, nil
	}
	m.sessions[user.ID] = s
	m.mu.Unlock()

	s.persister.Start(m.ctx)
	s.Engine.AddListener(s.persister.Listener())
	s.Engine.AddListener(s.Events.Publish)

	m.telemetry.Emit(ctx, user.ID, TelemetrySessionOpened, map[string]any{
		"mode":     m.mode.String(),
		"restored": snap != nil,
	})
	return s, nil
}

func (m *SessionManager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) list() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// TickAll advances every open session by one tick.
func (m *SessionManager) TickAll() {
	for _, s := range m.list() {
		s.Engine.Tick()
	}
}

// EvictIdle closes sessions nobody is watching that have been idle longer
// than the idle timeout. It returns how many were closed.
func (m *SessionManager) EvictIdle(ctx context.Context) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	var evicted []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Events.Subscribers() > 0 || s.LastSeen().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		evicted = append(evicted, s)
	}
	m.mu.Unlock()

	for _, s := range evicted {
		s.persister.Close(ctx)
		log.Println("Session: evicted idle session", s.User.ID)
	}
	return len(evicted)
}

func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.persister.Close(ctx)
	}
}
