// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import (
	"fmt"
	"time"

	"github.com/sentrixa-lab/sentrixa/internal/store"
)

const (
	// EnvironmentSynthetic marks every report as produced by a simulation.
	EnvironmentSynthetic = "synthetic"
	// DefaultScamCategory is reported when no detection named a category.
	DefaultScamCategory = "General Scam"
)

// SimulationEthics is the disclosure block attached to every report.
var SimulationEthics = store.Ethics{
	SimulationOnly:    true,
	RealDataCollected: false,
	ResearchUse:       true,
}

// Synthesis is the input to Synthesize: a view of the terminated session.
type Synthesis struct {
	SessionID    string
	RiskScore    int
	ScamCategory string
	Messages     []store.Message
	Telemetry    *TelemetryLog
	Reason       Reason
	Now          time.Time
	// Suffix is the random part of the incident id, in [0, 1000).
	Suffix int
}

// IncidentID formats a year-scoped incident id. Collisions between two
// reports in the same year are possible and tolerated.
func IncidentID(now time.Time, suffix int) string {
	return fmt.Sprintf("INC_%d_%d", now.Year(), suffix)
}

// Synthesize reduces a terminated session into an incident report. It has
// no side effects; the report owns its own copy of the timeline.
func Synthesize(in Synthesis) store.IncidentReport {
	category := in.ScamCategory
	if category == "" {
		category = DefaultScamCategory
	}

	timeline := make([]store.Message, len(in.Messages))
	copy(timeline, in.Messages)

	var signals store.BehavioralSignals
	if in.Telemetry != nil {
		signals = in.Telemetry.BehavioralSignals()
	} else {
		signals = (&TelemetryLog{}).BehavioralSignals()
	}

	return store.IncidentReport{
		IncidentID:  IncidentID(in.Now, in.Suffix),
		SessionID:   in.SessionID,
		Environment: EnvironmentSynthetic,
		Summary: store.Summary{
			ScamCategory:      category,
			RiskScore:         in.RiskScore,
			ContainmentAction: in.Reason.ContainmentAction(),
			PrivacyViolation:  in.Reason == ReasonPrivacyViolation,
		},
		BehavioralSignals: signals,
		Timeline:          timeline,
		Ethics:            SimulationEthics,
		GeneratedAt:       in.Now,
	}
}
