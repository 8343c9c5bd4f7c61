// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package simulation runs attacker/defender sessions: it schedules turns,
// accumulates risk, decides termination and synthesizes incident reports.
package simulation

import (
	"context"
	"time"

	"github.com/sentrixa-lab/sentrixa/internal/store"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// Generator produces attacker utterances. An empty result is replaced with
// a fallback line by the engine.
type Generator interface {
	Generate(ctx context.Context, sessionID string, history []store.Message) (string, error)
}

// Analyzer produces the defender's view of the latest attacker message.
type Analyzer interface {
	Analyze(ctx context.Context, sessionID string, history []store.Message, latest string) (*Analysis, error)
}

// Analysis is the result of one defender analysis.
type Analysis struct {
	// Telemetry events carry only Type and Data; the engine stamps the
	// session id and timestamp.
	Telemetry         []store.TelemetryEvent `json:"telemetry"`
	RiskIncrease      float64                `json:"risk_increase"`
	DefensiveResponse string                 `json:"defensive_response"`
}

// Exporter persists a report snapshot and returns where it was written.
type Exporter interface {
	Export(ctx context.Context, report *store.IncidentReport) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, sessionID string, history []store.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, sessionID string, history []store.Message) (string, error) {
	return f(ctx, sessionID, history)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, sessionID string, history []store.Message, latest string) (*Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, sessionID string, history []store.Message, latest string) (*Analysis, error) {
	return f(ctx, sessionID, history, latest)
}

// Snapshot is a read-only copy of the current session.
type Snapshot struct {
	ID           string                 `json:"id"`
	Epoch        uint64                 `json:"epoch"`
	Status       Status                 `json:"status"`
	RiskScore    int                    `json:"riskScore"`
	Messages     []store.Message        `json:"messages"`
	Telemetry    []store.TelemetryEvent `json:"telemetry"`
	ScamCategory string                 `json:"scamCategory"`
	StartTime    time.Time              `json:"startTime"`
	// Terminating is set while a fired termination waits out its grace delay.
	Terminating Reason `json:"terminating,omitempty"`
}

// session is the mutable aggregate owned by the engine lane.
type session struct {
	id           string
	epoch        uint64
	status       Status
	riskScore    int
	messages     []store.Message
	telemetry    TelemetryLog
	scamCategory string
	startTime    time.Time
	pending      Reason
	// stop is closed when the session is superseded or terminated, waking
	// any continuation parked on a delay.
	stop chan struct{}
}

func (s *session) snapshot() Snapshot {
	msgs := make([]store.Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:           s.id,
		Epoch:        s.epoch,
		Status:       s.status,
		RiskScore:    s.riskScore,
		Messages:     msgs,
		Telemetry:    s.telemetry.Events(),
		ScamCategory: s.scamCategory,
		StartTime:    s.startTime,
		Terminating:  s.pending,
	}
}

// live reports whether a continuation captured at epoch may still mutate s.
func (s *session) live(epoch uint64) bool {
	return s.epoch == epoch && s.status == StatusActive
}

func (s *session) halt() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}
