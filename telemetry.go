package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	TelemetrySessionOpened = "session_opened"
	TelemetryBoostActive   = "boost_activated"
	TelemetryBoostDenied   = "boost_denied"
	TelemetryGiftClaimed   = "gift_claimed"
	TelemetrySaveFailed    = "save_failed"
)

type TelemetryEvent struct {
	ID        uuid.UUID
	UserID    string
	Type      string
	Payload   map[string]any
	CreatedAt time.Time
}

type TelemetrySink interface {
	RecordTelemetry(ctx context.Context, ev TelemetryEvent) error
}

// Telemetry logs gameplay events and, when a sink is wired, stores them.
type Telemetry struct {
	enabled bool
	sink    TelemetrySink
	now     Clock
}

func NewTelemetry(enabled bool, sink TelemetrySink, now Clock) *Telemetry {
	if now == nil {
		now = time.Now
	}
	return &Telemetry{enabled: enabled, sink: sink, now: now}
}

func (t *Telemetry) Emit(ctx context.Context, userID string, eventType string, payload map[string]any) {
	if t == nil || !t.enabled {
		return
	}
	ev := TelemetryEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: t.now().UTC(),
	}

	log.Printf("Telemetry: %s user=%s id=%s %v", eventType, userID, ev.ID, payload)
	if t.sink != nil {
		if err := t.sink.RecordTelemetry(ctx, ev); err != nil {
			log.Println("Telemetry: record failed:", err)
		}
	}
}
