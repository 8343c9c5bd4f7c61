// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	"github.com/stretchr/testify/require"
)

// stepClock advances one millisecond per reading so ids stay unique.
type stepClock struct {
	ms atomic.Int64
}

func (c *stepClock) Now() time.Time {
	return time.UnixMilli(1_767_225_600_000 + c.ms.Add(1)).UTC()
}

// fakeGenerator returns scripted texts in order, then the last one forever.
type fakeGenerator struct {
	mu    sync.Mutex
	texts []string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, _ []store.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if len(g.texts) == 0 {
		return "", nil
	}
	text := g.texts[0]
	if len(g.texts) > 1 {
		g.texts = g.texts[1:]
	}
	return text, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeAnalyzer returns scripted analyses in order, then the last one forever.
// When gate is set, the first call blocks until gate is closed, then returns
// gated and closes returned just before handing it back.
type fakeAnalyzer struct {
	mu       sync.Mutex
	results  []*simulation.Analysis
	err      error
	gate     chan struct{}
	gated    *simulation.Analysis
	returned chan struct{}
	calls    int
	latest   []string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, _ string, _ []store.Message, latest string) (*simulation.Analysis, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.latest = append(a.latest, latest)
	gate := a.gate
	a.mu.Unlock()

	if gate != nil && call == 1 {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer close(a.returned)
		return a.gated, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if len(a.results) == 0 {
		return &simulation.Analysis{}, nil
	}
	r := a.results[0]
	if len(a.results) > 1 {
		a.results = a.results[1:]
	}
	return r, nil
}

func (a *fakeAnalyzer) Latest() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.latest...)
}

func (a *fakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingExporter struct {
	mu      sync.Mutex
	reports []store.IncidentReport
}

func (x *recordingExporter) Export(_ context.Context, r *store.IncidentReport) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reports = append(x.reports, r.Clone())
	return "incident_" + r.IncidentID + ".json", nil
}

func (x *recordingExporter) Count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.reports)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, cfg simulation.Config) *simulation.Engine {
	t.Helper()
	clock := &stepClock{}
	if cfg.Now == nil {
		cfg.Now = clock.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.Rand == nil {
		cfg.Rand = func(int) int { return 42 }
	}
	eng, err := simulation.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func snapshot(t *testing.T, eng *simulation.Engine) simulation.Snapshot {
	t.Helper()
	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func waitFor(t *testing.T, eng *simulation.Engine, cond func(simulation.Snapshot) bool) simulation.Snapshot {
	t.Helper()
	var last simulation.Snapshot
	require.Eventually(t, func() bool {
		last = snapshot(t, eng)
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

// drain collects events until the channel closes.
func drain(ch <-chan simulation.Event) []simulation.Event {
	var out []simulation.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
