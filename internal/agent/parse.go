// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// DefaultDefensiveResponse is used when the analysis carries no reply.
const DefaultDefensiveResponse = "I can't verify this request, so I won't be sharing any details."

type wireAnalysis struct {
	Telemetry         []wireEvent `json:"telemetry"`
	RiskIncrease      lenientNum  `json:"risk_increase"`
	DefensiveResponse string      `json:"defensive_response"`
}

type wireEvent struct {
	EventType store.EventType `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// lenientNum accepts a JSON number or a numeric string.
type lenientNum float64

func (n *lenientNum) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = lenientNum(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*n = lenientNum(f)
	return nil
}

// ParseResult is a parsed analysis plus the events that were dropped.
type ParseResult struct {
	Analysis *simulation.Analysis
	Skipped  []string
}

// ParseAnalysis decodes a model's analysis reply. Code fences and prose
// around the JSON object are tolerated. Events with an unknown type, a
// session_end type or an undecodable payload are skipped, not fatal.
func ParseAnalysis(raw string) (ParseResult, error) {
	body, ok := extractObject(raw)
	if !ok {
		return ParseResult{}, sxerr.New(sxerr.CodeAgentAnalysisParseInvalid, "analysis contains no JSON object")
	}

	var w wireAnalysis
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return ParseResult{}, sxerr.Wrap(err, sxerr.CodeAgentAnalysisParseInvalid, "decoding analysis")
	}

	res := ParseResult{Analysis: &simulation.Analysis{
		RiskIncrease:      float64(w.RiskIncrease),
		DefensiveResponse: strings.TrimSpace(w.DefensiveResponse),
	}}
	if res.Analysis.DefensiveResponse == "" {
		res.Analysis.DefensiveResponse = DefaultDefensiveResponse
	}

	for _, ev := range w.Telemetry {
		// session_end is recorded by the engine itself.
		if !ev.EventType.Valid() || ev.EventType == store.EventSessionEnd {
			res.Skipped = append(res.Skipped, string(ev.EventType))
			continue
		}
		data, err := store.DecodeEventData(ev.EventType, ev.Data)
		if err != nil {
			res.Skipped = append(res.Skipped, string(ev.EventType))
			continue
		}
		res.Analysis.Telemetry = append(res.Analysis.Telemetry, store.TelemetryEvent{Type: ev.EventType, Data: data})
	}
	return res, nil
}

// extractObject returns the outermost {...} span of s.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
