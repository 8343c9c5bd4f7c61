// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/server"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
)

// fakeSim is an in-memory SimulationService.
type fakeSim struct {
	mu       sync.Mutex
	snap     simulation.Snapshot
	reports  []*store.IncidentReport
	lastOpts store.ListOpts
	lastK    int
	resets   int
	err      error
	subs     []chan simulation.Event
}

var _ server.SimulationService = (*fakeSim)(nil)

func newFakeSim() *fakeSim {
	return &fakeSim{snap: simulation.Snapshot{Status: simulation.StatusIdle}}
}

func (f *fakeSim) Start(context.Context) (simulation.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return simulation.Snapshot{}, f.err
	}
	f.snap = simulation.Snapshot{
		ID:        "sess_1",
		Epoch:     f.snap.Epoch + 1,
		Status:    simulation.StatusActive,
		StartTime: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Messages: []store.Message{{
			ID: "sys_1", Sender: store.SenderSystem, Content: "Session started",
		}},
	}
	return f.snap, nil
}

func (f *fakeSim) Kill(context.Context) (*store.IncidentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.Status != simulation.StatusActive {
		return nil, sxerr.New(sxerr.CodeSimulationSessionInactive, "no active session")
	}
	f.snap.Status = simulation.StatusTerminated
	r := sampleReport("INC_2026_1", f.snap.ID)
	f.reports = append([]*store.IncidentReport{r}, f.reports...)
	return r, nil
}

func (f *fakeSim) Snapshot(context.Context) (simulation.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeSim) Subscribe() (<-chan simulation.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan simulation.Event, 8)
	f.subs = append(f.subs, ch)
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs = slices.DeleteFunc(f.subs, func(c chan simulation.Event) bool { return c == ch })
	}
}

func (f *fakeSim) publish(ev simulation.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- ev
	}
}

func (f *fakeSim) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSim) Reports(_ context.Context, opts store.ListOpts) ([]*store.IncidentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.reports, nil
}

func (f *fakeSim) Report(_ context.Context, id string) (*store.IncidentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.IncidentID == id {
			return r, nil
		}
	}
	return nil, sxerr.New(sxerr.CodeSimulationReportNotFound, "incident not found", sxerr.FieldIncidentID(id))
}

func (f *fakeSim) Export(ctx context.Context, id string) (string, error) {
	if _, err := f.Report(ctx, id); err != nil {
		return "", err
	}
	return "incidents/incident_" + id + ".json", nil
}

func (f *fakeSim) Similar(ctx context.Context, id string, k int) ([]store.SimilarIncident, error) {
	if _, err := f.Report(ctx, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = k
	var out []store.SimilarIncident
	for i, r := range f.reports {
		if r.IncidentID == id || len(out) == k {
			continue
		}
		out = append(out, store.SimilarIncident{Report: r, Distance: float64(i) / 10})
	}
	return out, nil
}

func (f *fakeSim) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.reports = nil
	f.snap = simulation.Snapshot{Status: simulation.StatusIdle}
	return nil
}

func (f *fakeSim) Status(context.Context) (simulation.StatusView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return simulation.StatusView{
		Status:        simulation.ComputeStatus(len(f.reports), f.snap.RiskScore),
		Reports:       len(f.reports),
		RiskScore:     f.snap.RiskScore,
		SessionID:     f.snap.ID,
		SessionStatus: f.snap.Status,
	}, nil
}

type fakeProviders []server.ProviderHealth

func (p fakeProviders) Providers(context.Context) []server.ProviderHealth { return p }

func sampleReport(id, sessionID string) *store.IncidentReport {
	return &store.IncidentReport{
		IncidentID:  id,
		SessionID:   sessionID,
		Environment: "SIMULATION",
		Summary: store.Summary{
			ScamCategory:      "bank_impersonation",
			RiskScore:         85,
			ContainmentAction: "SESSION_TERMINATED",
		},
		GeneratedAt: time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*server.Config)) (*server.Server, *fakeSim) {
	t.Helper()
	sim := newFakeSim()
	cfg := server.Config{
		ListenAddr: "127.0.0.1:0",
		Simulation: sim,
		Providers: fakeProviders{{
			Name:    "google",
			Default: true,
			Metrics: health.Metrics{Available: true},
		}},
		Version: "test",
		Logger:  quietLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := server.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, sim
}

func do(t *testing.T, srv *server.Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
