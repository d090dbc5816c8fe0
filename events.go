package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer    = 32
	streamKeepAlive = 15 * time.Second
)

// streamMessage is one pushed frame. SSE carries Type as the event name;
// the WebSocket sends the whole struct.
type streamMessage struct {
	Type   EventType  `json:"type"`
	State  *StateView `json:"state,omitempty"`
	Notice *Notice    `json:"notice,omitempty"`
}

func streamMessageOf(s *Session, ev Event) streamMessage {
	if ev.Type == EventNotice {
		notice := ev.Notice
		return streamMessage{Type: EventNotice, Notice: &notice}
	}
	view := s.ViewOf(ev)
	return streamMessage{Type: EventState, State: &view}
}

func currentStateMessage(s *Session) streamMessage {
	view := s.View()
	return streamMessage{Type: EventState, State: &view}
}

func eventsHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

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

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		events, cancel := s.Events.Subscribe(streamBuffer)
		defer cancel()

		send := func(msg streamMessage) bool {
			var payload []byte
			var err error
			if msg.Type == EventNotice {
				payload, err = json.Marshal(msg.Notice)
			} else {
				payload, err = json.Marshal(msg.State)
			}
			if err != nil {
				return false
			}
			if _, err := w.Write([]byte("event: " + string(msg.Type) + "\n")); err != nil {
				return false
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return false
			}
			if _, err := w.Write(payload); err != nil {
				return false
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}

		if !send(currentStateMessage(s)) {
			return
		}

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-app.Streams.closing():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.Touch()
				if !send(streamMessageOf(s, ev)) {
					return
				}
			case <-keepAlive.C:
				if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// streamSet tracks the long-lived SSE and WebSocket handlers. http.Server
// Shutdown neither ends SSE streams nor sees hijacked sockets, so shutdown
// closes them here and waits for their handlers before sessions are flushed.
type streamSet struct {
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	sockets map[*websocket.Conn]struct{}
	active  sync.WaitGroup
}

func newStreamSet() *streamSet {
	return &streamSet{
		done:    make(chan struct{}),
		sockets: make(map[*websocket.Conn]struct{}),
	}
}

// enter registers a stream handler. It fails once shutdown has begun.
func (ss *streamSet) enter() bool {
	if ss == nil {
		return true
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return false
	}
	ss.active.Add(1)
	return true
}

func (ss *streamSet) leave() {
	if ss != nil {
		ss.active.Done()
	}
}

func (ss *streamSet) closing() <-chan struct{} {
	if ss == nil {
		return nil
	}
	return ss.done
}

func (ss *streamSet) addSocket(conn *websocket.Conn) bool {
	if ss == nil {
		return true
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return false
	}
	ss.sockets[conn] = struct{}{}
	return true
}

func (ss *streamSet) removeSocket(conn *websocket.Conn) {
	if ss == nil {
		return
	}
	ss.mu.Lock()
	delete(ss.sockets, conn)
	ss.mu.Unlock()
}

// Close ends every open stream. It is safe to call more than once.
func (ss *streamSet) Close() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return
	}
	ss.closed = true
	close(ss.done)

	deadline := time.Now().Add(time.Second)
	for conn := range ss.sockets {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}
}

// Wait blocks until every stream handler has returned or ctx ends.
func (ss *streamSet) Wait(ctx context.Context) error {
	if ss == nil {
		return nil
	}
	finished := make(chan struct{})
	go func() {
		ss.active.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
