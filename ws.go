package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer   = 64
	wsReadLimit    = 4096
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsIntent is one client request on the socket.
type wsIntent struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func wsHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !app.Streams.enter() {
			writeJSON(w, http.StatusServiceUnavailable, GameResponse{OK: false, Error: "SHUTTING_DOWN"})
			return
		}
		defer app.Streams.leave()

		s, code := app.sessionFor(r)
		if code != "" {
			writeJSON(w, http.StatusUnauthorized, GameResponse{OK: false, Error: code})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("WS: upgrade:", err)
			return
		}
		if !app.Streams.addSocket(conn) {
			conn.Close()
			return
		}
		defer app.Streams.removeSocket(conn)
		serveSocket(app, s, conn)
	}
}

func serveSocket(app *App, s *Session, conn *websocket.Conn) {
	send := make(chan interface{}, wsSendBuffer)
	events, cancel := s.Events.Subscribe(streamBuffer)
	done := make(chan struct{})

	go func() {
		defer conn.Close()
		for msg := range send {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	go func() {
		defer close(send)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				enqueue(send, streamMessageOf(s, ev))
			}
		}
	}()

	defer func() {
		cancel()
		close(done)
	}()

	enqueue(send, currentStateMessage(s))
	conn.SetReadLimit(wsReadLimit)
	for {
		var intent wsIntent
		if err := conn.ReadJSON(&intent); err != nil {
			closing := false
			select {
			case <-app.Streams.closing():
				closing = true
			default:
			}
			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("WS: read for", s.User.ID+":", err)
			}
			return
		}
		s.Touch()
		if code := app.applyIntent(s, intent); code != "" {
			enqueue(send, wsError{Type: "error", Error: code})
		}
	}
}

// enqueue drops the message when the writer is behind.
func enqueue(send chan<- interface{}, msg interface{}) {
	select {
	case send <- msg:
	default:
	}
}

// applyIntent runs one socket intent against the session. Resulting state and
// notices reach the client through the session broadcaster.
func (app *App) applyIntent(s *Session, intent wsIntent) string {
	switch intent.Type {
	case "click":
		s.Engine.ApplyGain(clickReward, FaucetClick)
	case "claim":
		s.Engine.Claim()
	case "gift":
		if _, ok := s.Engine.ClaimGift(); !ok {
			return "GIFT_ALREADY_CLAIMED"
		}
	case "boost":
		kind, err := ParseBoostKind(intent.Kind)
		if err == nil {
			_, err = s.Engine.ActivateBoost(kind)
		}
		switch {
		case errors.Is(err, ErrUnknownBoost):
			return "UNKNOWN_BOOST"
		case errors.Is(err, ErrInsufficientFunds):
			return "NOT_ENOUGH_COINS"
		case err != nil:
			return "INTERNAL_ERROR"
		}
	case "event":
		if !app.Flags.SeasonalEvents {
			return "EVENTS_DISABLED"
		}
		return applySeasonalEvent(s, intent.Name, intent.Enabled)
	case "state":
		s.Events.Publish(Event{Type: EventState, UserID: s.User.ID, State: s.Engine.Snapshot(), Progress: s.Engine.Progress()})
	default:
		return "UNKNOWN_INTENT"
	}
	return ""
}
