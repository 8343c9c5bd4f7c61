// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent_test

import (
	"testing"

	"github.com/sentrixa-lab/sentrixa/internal/agent"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysis_FencedJSON(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" +
		`{"telemetry": [{"event_type": "detection", "data": {"scam_category": "Bank Impersonation"}}], "risk_increase": 12, "defensive_response": "No thanks."}` +
		"\n```"
	res, err := agent.ParseAnalysis(raw)
	require.NoError(t, err)
	assert.InDelta(t, 12, res.Analysis.RiskIncrease, 1e-9)
	assert.Equal(t, "No thanks.", res.Analysis.DefensiveResponse)
	require.Len(t, res.Analysis.Telemetry, 1)
	assert.Equal(t, store.DetectionData{ScamCategory: "Bank Impersonation"}, res.Analysis.Telemetry[0].Data)
	assert.Empty(t, res.Skipped)
}

func TestParseAnalysis_RiskIncrease(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"number", `{"risk_increase": 30}`, 30},
		{"fraction", `{"risk_increase": 7.5}`, 7.5},
		{"numeric string", `{"risk_increase": " 18 "}`, 18},
		{"absent", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := agent.ParseAnalysis(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Analysis.RiskIncrease, 1e-9)
		})
	}
}

func TestParseAnalysis_SkipsBadEvents(t *testing.T) {
	raw := `{"telemetry": [
		{"event_type": "mood", "data": {}},
		{"event_type": "session_end", "data": {"reason": "risk_threshold"}},
		{"event_type": "detection", "data": "not an object"},
		{"event_type": "behavioral_indicators", "data": {"urgency_level": "low"}}
	]}`
	res, err := agent.ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"mood", "session_end", "detection"}, res.Skipped)
	require.Len(t, res.Analysis.Telemetry, 1)
	assert.Equal(t, store.BehavioralData{UrgencyLevel: "low"}, res.Analysis.Telemetry[0].Data)
}

func TestParseAnalysis_DefaultResponse(t *testing.T) {
	res, err := agent.ParseAnalysis(`{"telemetry": [], "risk_increase": 0, "defensive_response": "   "}`)
	require.NoError(t, err)
	assert.Equal(t, agent.DefaultDefensiveResponse, res.Analysis.DefensiveResponse)
}

func TestParseAnalysis_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json here",
		`{"risk_increase": "lots"}`,
		`{"telemetry": 5}`,
		"} backwards {",
	} {
		_, err := agent.ParseAnalysis(raw)
		require.Error(t, err, raw)
		assert.True(t, sxerr.HasCode(err, sxerr.CodeAgentAnalysisParseInvalid), raw)
	}
}
