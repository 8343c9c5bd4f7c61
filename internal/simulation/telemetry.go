// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import (
	"time"

	"github.com/sentrixa-lab/sentrixa/internal/store"
)

// TelemetryLog is the append-only telemetry of one session. Events are
// never deduplicated, reordered or dropped.
type TelemetryLog struct {
	events []store.TelemetryEvent
}

// Append stamps each event with sessionID and now, appends them in order
// and returns the stamped copies.
func (l *TelemetryLog) Append(sessionID string, now time.Time, events ...store.TelemetryEvent) []store.TelemetryEvent {
	stamped := make([]store.TelemetryEvent, 0, len(events))
	for _, ev := range events {
		ev.SessionID = sessionID
		ev.Timestamp = now
		if ev.Type == "" && ev.Data != nil {
			ev.Type = ev.Data.EventType()
		}
		stamped = append(stamped, ev)
	}
	l.events = append(l.events, stamped...)
	return stamped
}

// Latest returns the most recent event of type t.
func (l *TelemetryLog) Latest(t store.EventType) (store.TelemetryEvent, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i], true
		}
	}
	return store.TelemetryEvent{}, false
}

// Len returns the number of events logged.
func (l *TelemetryLog) Len() int { return len(l.events) }

// Events returns a copy of the log.
func (l *TelemetryLog) Events() []store.TelemetryEvent {
	out := make([]store.TelemetryEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Behavioral signal fallbacks used when a signal was never observed.
const (
	DefaultUrgencyLevel          = "moderate"
	DefaultPersuasionStyle       = "generic"
	DefaultImpersonationType     = "none"
	DefaultSyntheticPaymentToken = "TOKEN_SIM_123"
)

// BehavioralSignals resolves report signals from the latest detection and
// behavioral events, falling back to the defaults above.
func (l *TelemetryLog) BehavioralSignals() store.BehavioralSignals {
	signals := store.BehavioralSignals{
		UrgencyLevel:          DefaultUrgencyLevel,
		PersuasionStyle:       DefaultPersuasionStyle,
		ImpersonationType:     DefaultImpersonationType,
		SyntheticPaymentToken: DefaultSyntheticPaymentToken,
	}

	if ev, ok := l.Latest(store.EventDetection); ok {
		if d, ok := ev.Data.(store.DetectionData); ok && d.FakeLinkIndicator {
			signals.FakeLinkIndicator = true
		}
	}

	ev, ok := l.Latest(store.EventBehavioral)
	if !ok {
		return signals
	}
	b, ok := ev.Data.(store.BehavioralData)
	if !ok {
		return signals
	}
	if b.UrgencyLevel != "" {
		signals.UrgencyLevel = b.UrgencyLevel
	}
	if b.PersuasionStyle != "" {
		signals.PersuasionStyle = b.PersuasionStyle
	}
	if b.ImpersonationType != "" {
		signals.ImpersonationType = b.ImpersonationType
	}
	if b.SyntheticPaymentToken != "" {
		signals.SyntheticPaymentToken = b.SyntheticPaymentToken
	}
	if b.FakeLinkIndicator {
		signals.FakeLinkIndicator = true
	}
	return signals
}
