// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sentrixa-lab/sentrixa/internal/store"
)

// EventKind identifies an engine event.
type EventKind string

const (
	EventSessionStarted    EventKind = "session_started"
	EventMessage           EventKind = "message"
	EventTelemetry         EventKind = "telemetry"
	EventRisk              EventKind = "risk"
	EventTurnFailed        EventKind = "turn_failed"
	EventSessionTerminated EventKind = "session_terminated"
	EventReportExported    EventKind = "report_exported"
	EventExportFailed      EventKind = "export_failed"
	EventReset             EventKind = "reset"
)

// Event is published to subscribers as the session progresses.
type Event struct {
	ID        string                 `json:"id"`
	Kind      EventKind              `json:"kind"`
	SessionID string                 `json:"session_id"`
	Epoch     uint64                 `json:"epoch"`
	Time      time.Time              `json:"time"`
	Message   *store.Message         `json:"message,omitempty"`
	Telemetry []store.TelemetryEvent `json:"telemetry,omitempty"`
	RiskScore int                    `json:"risk_score"`
	Reason    Reason                 `json:"reason,omitempty"`
	Report    *store.IncidentReport  `json:"report,omitempty"`
	Location  string                 `json:"location,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// DefaultEventBuffer is the per-subscriber channel capacity.
const DefaultEventBuffer = 64

// broadcaster fans events out to subscribers without blocking the
// publisher. A subscriber that falls behind loses events.
type broadcaster struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan Event
	buffer  int
	closed  bool
	dropped atomic.Int64
}

func newBroadcaster(buffer int) *broadcaster {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &broadcaster{subs: make(map[uint64]chan Event), buffer: buffer}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
