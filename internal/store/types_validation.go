// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import (
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Valid reports whether the sender is a known participant.
func (s Sender) Valid() bool {
	switch s {
	case SenderAttacker, SenderDefender, SenderSystem:
		return true
	default:
		return false
	}
}

// Valid reports whether the event type is a known telemetry variant.
func (t EventType) Valid() bool {
	switch t {
	case EventDetection, EventBehavioral, EventSessionEnd, EventPrivacyViolation:
		return true
	default:
		return false
	}
}

// Validate checks that the Message has all required fields set correctly.
func (m Message) Validate() error {
	if m.ID == "" {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "message: ID is required")
	}
	if !m.Sender.Valid() {
		return sxerr.Errorf(sxerr.CodeStoreInvalidInput, "message: invalid sender %q", m.Sender)
	}
	if m.Timestamp.IsZero() {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "message: Timestamp is required")
	}
	return nil
}

// Validate checks that the report can be archived.
func (r IncidentReport) Validate() error {
	if r.IncidentID == "" {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "incident: IncidentID is required")
	}
	if r.SessionID == "" {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "incident: SessionID is required")
	}
	if r.Summary.RiskScore < 0 || r.Summary.RiskScore > 100 {
		return sxerr.Errorf(sxerr.CodeStoreInvalidInput, "incident: risk score %d out of range [0,100]", r.Summary.RiskScore)
	}
	if r.GeneratedAt.IsZero() {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "incident: GeneratedAt is required")
	}
	for i, m := range r.Timeline {
		if err := m.Validate(); err != nil {
			return sxerr.Wrapf(err, sxerr.CodeStoreInvalidInput, "incident: timeline[%d]", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the report so callers cannot alias the
// archived timeline.
func (r IncidentReport) Clone() IncidentReport {
	out := r
	if r.Timeline != nil {
		out.Timeline = make([]Message, len(r.Timeline))
		copy(out.Timeline, r.Timeline)
	}
	return out
}
