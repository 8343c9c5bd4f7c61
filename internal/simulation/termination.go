// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import "github.com/sentrixa-lab/sentrixa/internal/store"

// Reason is why a session terminated.
type Reason string

const (
	ReasonManualKill       Reason = "manual_kill"
	ReasonRiskThreshold    Reason = "risk_threshold_exceeded"
	ReasonPrivacyViolation Reason = "privacy_violation"
)

// Containment actions recorded in incident summaries.
const (
	ContainmentEmergencyKill     = "emergency_kill"
	ContainmentSessionTerminated = "session_terminated"
)

// DefaultRiskThreshold is the score at which a session is cut off.
const DefaultRiskThreshold = 80

// ContainmentAction maps a termination reason to its containment label.
func (r Reason) ContainmentAction() string {
	if r == ReasonManualKill {
		return ContainmentEmergencyKill
	}
	return ContainmentSessionTerminated
}

// Evaluate decides whether a session must end after a defender turn. Manual
// kill is handled by the engine directly and always wins; here the risk
// threshold takes precedence over a privacy violation flagged in this turn.
// It returns "" when the session continues.
func Evaluate(riskScore, threshold int, turnEvents []store.TelemetryEvent) Reason {
	if riskScore >= threshold {
		return ReasonRiskThreshold
	}
	for _, ev := range turnEvents {
		if ev.Type == store.EventPrivacyViolation {
			return ReasonPrivacyViolation
		}
	}
	return ""
}
