// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import (
	"encoding/json"
	"time"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Sender identifies who produced a message in a simulation timeline.
type Sender string

const (
	SenderAttacker Sender = "attacker"
	SenderDefender Sender = "defender"
	SenderSystem   Sender = "system"
)

// Message is a single utterance in a simulation. Messages are immutable once
// appended to a session.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType tags the payload carried by a TelemetryEvent.
type EventType string

const (
	EventDetection        EventType = "detection"
	EventBehavioral       EventType = "behavioral_indicators"
	EventSessionEnd       EventType = "session_end"
	EventPrivacyViolation EventType = "privacy_violation"
)

// EventData is the typed payload of a telemetry event. Each variant reports
// the event type it belongs to.
type EventData interface {
	EventType() EventType
}

// DetectionData classifies the scam observed in a turn.
type DetectionData struct {
	ScamCategory      string  `json:"scam_category,omitempty"`
	FakeLinkIndicator bool    `json:"fake_link_indicator"`
	Confidence        float64 `json:"confidence,omitempty"`
}

func (DetectionData) EventType() EventType { return EventDetection }

// BehavioralData captures the persuasion techniques observed in a turn.
type BehavioralData struct {
	UrgencyLevel          string `json:"urgency_level,omitempty"`
	PersuasionStyle       string `json:"persuasion_style,omitempty"`
	ImpersonationType     string `json:"impersonation_type,omitempty"`
	SyntheticPaymentToken string `json:"synthetic_payment_token,omitempty"`
	FakeLinkIndicator     bool   `json:"fake_link_indicator"`
}

func (BehavioralData) EventType() EventType { return EventBehavioral }

// SessionEndData records how a session ended.
type SessionEndData struct {
	Reason    string `json:"reason"`
	RiskScore int    `json:"risk_score"`
}

func (SessionEndData) EventType() EventType { return EventSessionEnd }

// PrivacyViolationData flags real-looking personal data in a turn.
type PrivacyViolationData struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity,omitempty"`
	Source   Sender `json:"source,omitempty"`
}

func (PrivacyViolationData) EventType() EventType { return EventPrivacyViolation }

// TelemetryEvent is an append-only observation scoped to a session.
type TelemetryEvent struct {
	Type      EventType `json:"event_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// UnmarshalJSON decodes the data payload into the variant named by event_type.
func (e *TelemetryEvent) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type      EventType       `json:"event_type"`
		SessionID string          `json:"session_id"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodeEventData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	e.Type = raw.Type
	e.SessionID = raw.SessionID
	e.Timestamp = raw.Timestamp
	e.Data = data
	return nil
}

// DecodeEventData decodes a raw payload for the given event type. An empty
// payload decodes to the zero value of the variant.
func DecodeEventData(t EventType, raw json.RawMessage) (EventData, error) {
	var data EventData
	switch t {
	case EventDetection:
		var d DetectionData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		data = d
	case EventBehavioral:
		var d BehavioralData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		data = d
	case EventSessionEnd:
		var d SessionEndData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		data = d
	case EventPrivacyViolation:
		var d PrivacyViolationData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		data = d
	default:
		return nil, sxerr.Errorf(sxerr.CodeStoreInvalidInput, "unknown telemetry event type %q", t)
	}
	return data, nil
}

func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return sxerr.Errorf(sxerr.CodeStoreInvalidInput, "decoding telemetry data: %w", err)
	}
	return nil
}

// IncidentReport is the immutable record synthesized when a session
// terminates.
type IncidentReport struct {
	IncidentID        string            `json:"incident_id"`
	SessionID         string            `json:"session_id"`
	Environment       string            `json:"environment"`
	Summary           Summary           `json:"summary"`
	BehavioralSignals BehavioralSignals `json:"behavioral_signals"`
	Timeline          []Message         `json:"timeline"`
	Ethics            Ethics            `json:"ethics"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// Summary is the headline of an incident report.
type Summary struct {
	ScamCategory      string `json:"scam_category"`
	RiskScore         int    `json:"risk_score"`
	ContainmentAction string `json:"containment_action"`
	PrivacyViolation  bool   `json:"privacy_violation"`
}

// BehavioralSignals are the last observed persuasion signals of a session.
type BehavioralSignals struct {
	UrgencyLevel          string `json:"urgency_level"`
	PersuasionStyle       string `json:"persuasion_style"`
	ImpersonationType     string `json:"impersonation_type"`
	FakeLinkIndicator     bool   `json:"fake_link_indicator"`
	SyntheticPaymentToken string `json:"synthetic_payment_token"`
}

// Ethics is the simulation disclosure attached to every report.
type Ethics struct {
	SimulationOnly    bool `json:"simulation_only"`
	RealDataCollected bool `json:"real_data_collected"`
	ResearchUse       bool `json:"research_use"`
}

// ListOpts filters archive listings.
type ListOpts struct {
	// Query matches incident id or scam category, case-insensitively.
	Query  string
	Limit  int
	Offset int
}
