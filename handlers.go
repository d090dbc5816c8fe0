package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// App carries everything the HTTP layer needs.
type App struct {
	Sessions     *SessionManager
	Auth         *Authenticator
	Flags        FeatureFlags
	Rating       RatingSource
	SeededRating []RatingEntry
	Telemetry    *Telemetry
	Mode         PersistenceMode
	Streams      *streamSet

	// BotToken is empty when Telegram is not configured; init data is then
	// not verified and every session signs in as the demo user.
	BotToken       string
	InitDataMaxAge time.Duration
	Now            Clock
}

/* ======================
   Request / Response Types
   ====================== */

type SessionRequest struct {
	InitData string `json:"initData"`
}

type BoostRequest struct {
	Kind string `json:"kind"`
}

type EventRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type PayRequest struct {
	Boost  string `json:"boost,omitempty"`
	Amount string `json:"amount"`
}

type GameResponse struct {
	OK        bool       `json:"ok"`
	Error     string     `json:"error,omitempty"`
	State     *StateView `json:"state,omitempty"`
	Notice    *Notice    `json:"notice,omitempty"`
	Added     float64    `json:"added,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	User      *User      `json:"user,omitempty"`
	Profile   *Profile   `json:"profile,omitempty"`
	Mode      string     `json:"mode,omitempty"`
}

type PayResponse struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Amount string  `json:"amount"`
	Total  string  `json:"total"`
	Notice *Notice `json:"notice,omitempty"`
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":       true,
			"mode":     app.Mode.String(),
			"sessions": app.Sessions.Len(),
		})
	}
}

func sessionHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		user, code := app.authenticateInitData(req.InitData)
		if code != "" {
			writeJSON(w, http.StatusUnauthorized, GameResponse{OK: false, Error: code})
			return
		}
		if !isValidUserID(user.ID) {
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: "INVALID_USER"})
			return
		}

		session, err := app.Sessions.Open(r.Context(), user)
		if err != nil {
			log.Println("Session: open failed:", err)
			writeJSON(w, http.StatusInternalServerError, GameResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		token, expiresAt, err := app.Auth.Issue(user)
		if err != nil {
			log.Println("Session: issue token failed:", err)
			writeJSON(w, http.StatusInternalServerError, GameResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		view := session.View()
		profile := session.Profile
		writeJSON(w, http.StatusOK, GameResponse{
			OK:        true,
			State:     &view,
			Token:     token,
			ExpiresAt: &expiresAt,
			User:      &session.User,
			Profile:   &profile,
			Mode:      app.Mode.String(),
		})
	}
}

// authenticateInitData resolves the signed-in user, or an error code.
func (app *App) authenticateInitData(initData string) (User, string) {
	initData = strings.TrimSpace(initData)
	if app.BotToken == "" || initData == "" {
		if !app.Flags.DemoLogin {
			return User{}, "TELEGRAM_REQUIRED"
		}
		return demoUser(), ""
	}

	user, err := VerifyInitData(initData, app.BotToken, app.InitDataMaxAge, app.now())
	switch {
	case errors.Is(err, ErrInitDataExpired):
		return User{}, "INIT_DATA_EXPIRED"
	case err != nil:
		log.Println("Auth: init data rejected:", err)
		return User{}, "INVALID_INIT_DATA"
	}
	return user, ""
}

func (app *App) now() time.Time {
	if app.Now == nil {
		return time.Now()
	}
	return app.Now()
}

// sessionFor returns the caller's session, reopening it from the store when
// it was evicted while the token is still valid.
func (app *App) sessionFor(r *http.Request) (*Session, string) {
	user, err := app.Auth.Parse(bearerToken(r))
	if err != nil {
		return nil, "UNAUTHORIZED"
	}
	if s, ok := app.Sessions.Get(user.ID); ok {
		s.Touch()
		return s, ""
	}
	s, err := app.Sessions.Open(r.Context(), user)
	if err != nil {
		log.Println("Session: reopen failed:", err)
		return nil, "INTERNAL_ERROR"
	}
	return s, ""
}

// gameHandler wraps a session action with the method check and token lookup.
func gameHandler(app *App, method string, action func(w http.ResponseWriter, r *http.Request, s *Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s, code := app.sessionFor(r)
		if code != "" {
			status := http.StatusUnauthorized
			if code == "INTERNAL_ERROR" {
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, GameResponse{OK: false, Error: code})
			return
		}
		action(w, r, s)
	}
}

func stateResponse(s *Session) GameResponse {
	view := s.View()
	return GameResponse{OK: true, State: &view}
}

func stateHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodGet, func(w http.ResponseWriter, r *http.Request, s *Session) {
		writeJSON(w, http.StatusOK, stateResponse(s))
	})
}

func clickHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		added := s.Engine.ApplyGain(clickReward, FaucetClick)
		resp := stateResponse(s)
		resp.Added = added
		writeJSON(w, http.StatusOK, resp)
	})
}

func boostHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req BoostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		var notice Notice
		kind, err := ParseBoostKind(req.Kind)
		if err == nil {
			notice, err = s.Engine.ActivateBoost(kind)
		}
		switch {
		case errors.Is(err, ErrUnknownBoost):
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: "UNKNOWN_BOOST"})
			return
		case errors.Is(err, ErrInsufficientFunds):
			app.Telemetry.Emit(r.Context(), s.User.ID, TelemetryBoostDenied, map[string]any{"kind": string(kind)})
			resp := stateResponse(s)
			resp.OK = false
			resp.Error = "NOT_ENOUGH_COINS"
			resp.Notice = &notice
			writeJSON(w, http.StatusOK, resp)
			return
		case err != nil:
			log.Println("Boost: activation failed:", err)
			writeJSON(w, http.StatusInternalServerError, GameResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		app.Telemetry.Emit(r.Context(), s.User.ID, TelemetryBoostActive, map[string]any{"kind": string(kind)})
		resp := stateResponse(s)
		resp.Notice = &notice
		writeJSON(w, http.StatusOK, resp)
	})
}

func claimHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		added, notice := s.Engine.Claim()
		resp := stateResponse(s)
		resp.Added = added
		resp.Notice = &notice
		writeJSON(w, http.StatusOK, resp)
	})
}

func giftHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		notice, ok := s.Engine.ClaimGift()
		if !ok {
			resp := stateResponse(s)
			resp.OK = false
			resp.Error = "GIFT_ALREADY_CLAIMED"
			writeJSON(w, http.StatusOK, resp)
			return
		}

		app.Telemetry.Emit(r.Context(), s.User.ID, TelemetryGiftClaimed, nil)
		resp := stateResponse(s)
		resp.Notice = &notice
		writeJSON(w, http.StatusOK, resp)
	})
}

func eventHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		if !app.Flags.SeasonalEvents {
			writeJSON(w, http.StatusForbidden, GameResponse{OK: false, Error: "EVENTS_DISABLED"})
			return
		}

		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		if code := applySeasonalEvent(s, req.Name, req.Enabled); code != "" {
			writeJSON(w, http.StatusBadRequest, GameResponse{OK: false, Error: code})
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(s))
	})
}

func applySeasonalEvent(s *Session, name string, enabled bool) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SeasonalEventCarols:
		s.Engine.SetCarols(enabled)
	case SeasonalEventSnowstorm:
		s.SetSnowstorm(enabled)
	default:
		return "UNKNOWN_EVENT"
	}
	return ""
}

// payHandler is the checkout stub: it quotes an amount and never charges.
func payHandler(app *App) http.HandlerFunc {
	return gameHandler(app, http.MethodPost, func(w http.ResponseWriter, r *http.Request, s *Session) {
		var req PayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, PayResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		message := NoticePaymentDisabled
		amount := digitsOnly(req.Amount)
		if req.Boost != "" {
			kind, err := ParseBoostKind(req.Boost)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, PayResponse{OK: false, Error: "UNKNOWN_BOOST"})
				return
			}
			amount = strconv.Itoa(s.Engine.Prices()[kind])
			message = NoticeCheckout
		}

		notice := s.Notify(message, NoticeLevelInfo)
		writeJSON(w, http.StatusOK, PayResponse{
			OK:     true,
			Amount: amount,
			Total:  payTotal(amount),
			Notice: &notice,
		})
	})
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func payTotal(amount string) string {
	if amount == "" {
		return "₽ 0.00"
	}
	return "₽ " + amount + ".00"
}
