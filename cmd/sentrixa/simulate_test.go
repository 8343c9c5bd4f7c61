// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

type recordingExporter struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingExporter) Export(_ context.Context, report *store.IncidentReport) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, report.IncidentID)
	return "incidents/incident_" + report.IncidentID + ".json", nil
}

func newTestEngine(t *testing.T, risk float64, exp simulation.Exporter) *simulation.Engine {
	t.Helper()
	eng, err := simulation.New(simulation.Config{
		Generator: simulation.GeneratorFunc(func(context.Context, string, []store.Message) (string, error) {
			return "Your bank account is locked. Confirm your card number now.", nil
		}),
		Analyzer: simulation.AnalyzerFunc(func(context.Context, string, []store.Message, string) (*simulation.Analysis, error) {
			return &simulation.Analysis{
				RiskIncrease:      risk,
				DefensiveResponse: "I will call the number on the back of my card.",
			}, nil
		}),
		Exporter:      exp,
		Incidents:     store.NewMemoryIncidentStore(),
		Logger:        quietLogger(),
		TurnDelay:     5 * time.Millisecond,
		RiskThreshold: 80,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestRunSimulation_RiskThresholdTerminates(t *testing.T) {
	exp := &recordingExporter{}
	eng := newTestEngine(t, 60, exp)

	var out bytes.Buffer
	report, err := runSimulation(context.Background(), eng, simulateOptions{ExportWait: 2 * time.Second}, &out)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, simulation.ContainmentSessionTerminated, report.Summary.ContainmentAction)
	assert.GreaterOrEqual(t, report.Summary.RiskScore, 80)
	assert.Contains(t, out.String(), "ATTACKER")
	assert.Contains(t, out.String(), "DEFENDER")
	assert.Contains(t, out.String(), string(simulation.ReasonRiskThreshold))

	exp.mu.Lock()
	defer exp.mu.Unlock()
	assert.Equal(t, []string{report.IncidentID}, exp.ids)
}

func TestRunSimulation_MaxDurationKills(t *testing.T) {
	exp := &recordingExporter{}
	eng := newTestEngine(t, 0, exp)

	var out bytes.Buffer
	report, err := runSimulation(context.Background(), eng,
		simulateOptions{MaxDuration: 50 * time.Millisecond, ExportWait: time.Second}, &out)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, simulation.ContainmentEmergencyKill, report.Summary.ContainmentAction)
	assert.Contains(t, out.String(), "session killed")

	// Manual kills are archived but never auto-exported.
	exp.mu.Lock()
	defer exp.mu.Unlock()
	assert.Empty(t, exp.ids)
}

func TestRunSimulation_ContextCancelKills(t *testing.T) {
	eng := newTestEngine(t, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	report, err := runSimulation(ctx, eng, simulateOptions{}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, simulation.ContainmentEmergencyKill, report.Summary.ContainmentAction)
}

// stubRunner lets tests control the event stream directly.
type stubRunner struct {
	snap     simulation.Snapshot
	events   chan simulation.Event
	startErr error
	killErr  error
}

func (s *stubRunner) Start(context.Context) (simulation.Snapshot, error) {
	return s.snap, s.startErr
}

func (s *stubRunner) Kill(context.Context) (*store.IncidentReport, error) {
	return nil, s.killErr
}

func (s *stubRunner) Subscribe() (<-chan simulation.Event, func()) {
	return s.events, func() {}
}

func TestRunSimulation_StartFailure(t *testing.T) {
	boom := sxerr.New(sxerr.CodeSimulationGenerationFailure, "model down")
	r := &stubRunner{events: make(chan simulation.Event), startErr: boom}

	_, err := runSimulation(context.Background(), r, simulateOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, sxerr.HasCode(err, sxerr.CodeSimulationGenerationFailure))
}

func TestRunSimulation_StreamClosedWithoutReport(t *testing.T) {
	r := &stubRunner{snap: simulation.Snapshot{ID: "sess_1"}, events: make(chan simulation.Event)}
	close(r.events)

	_, err := runSimulation(context.Background(), r, simulateOptions{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, sxerr.HasCode(err, sxerr.CodeSimulationClosed))
}

func TestRunSimulation_IgnoresOtherSessions(t *testing.T) {
	r := &stubRunner{snap: simulation.Snapshot{ID: "sess_1"}, events: make(chan simulation.Event, 4)}
	want := sampleReport("INC_1")
	r.events <- simulation.Event{Kind: simulation.EventSessionTerminated, SessionID: "sess_0", Report: sampleReport("INC_0")}
	r.events <- simulation.Event{
		Kind:      simulation.EventSessionTerminated,
		SessionID: "sess_1",
		Reason:    simulation.ReasonPrivacyViolation,
		Report:    want,
	}

	var out bytes.Buffer
	report, err := runSimulation(context.Background(), r, simulateOptions{}, &out)
	require.NoError(t, err)
	assert.Same(t, want, report)
	assert.Contains(t, out.String(), string(simulation.ReasonPrivacyViolation))
}

func TestRunSimulation_KillAfterTerminationReturnsReport(t *testing.T) {
	r := &stubRunner{
		snap:    simulation.Snapshot{ID: "sess_1"},
		events:  make(chan simulation.Event, 2),
		killErr: sxerr.New(sxerr.CodeSimulationSessionInactive, "no active session"),
	}
	want := sampleReport("INC_1")
	r.events <- simulation.Event{
		Kind:      simulation.EventSessionTerminated,
		SessionID: "sess_1",
		Reason:    simulation.ReasonRiskThreshold,
		Report:    want,
	}

	// The export event never arrives; the deadline is cleared once the
	// session terminates, so the export wait bounds the call.
	report, err := runSimulation(context.Background(), r,
		simulateOptions{MaxDuration: time.Millisecond, ExportWait: 20 * time.Millisecond}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Same(t, want, report)
}
