// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/server"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

type problem struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestStartKillRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[simulation.Snapshot](t, rec.Body.Bytes())
	assert.Equal(t, "sess_1", snap.ID)
	assert.Equal(t, simulation.StatusActive, snap.Status)
	require.Len(t, snap.Messages, 1)

	rec = do(t, srv, http.MethodGet, "/api/v1/simulation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, simulation.StatusActive, decode[simulation.Snapshot](t, rec.Body.Bytes()).Status)

	rec = do(t, srv, http.MethodPost, "/api/v1/simulation/kill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[store.IncidentReport](t, rec.Body.Bytes())
	assert.Equal(t, "INC_2026_1", report.IncidentID)
	assert.Equal(t, "sess_1", report.SessionID)
}

func TestKillWithoutSessionIsForbidden(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/simulation/kill", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	p := decode[problem](t, rec.Body.Bytes())
	assert.Equal(t, http.StatusForbidden, p.Status)
	assert.Contains(t, p.Detail, "no active session")
}

func TestListIncidentsPassesQuery(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{
		sampleReport("INC_2026_2", "sess_2"),
		sampleReport("INC_2026_1", "sess_1"),
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/incidents?q=bank&limit=10&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[struct {
		Incidents []store.IncidentReport `json:"incidents"`
		Count     int                    `json:"count"`
	}](t, rec.Body.Bytes())
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "INC_2026_2", out.Incidents[0].IncidentID)
	assert.Equal(t, store.ListOpts{Query: "bank", Limit: 10, Offset: 1}, sim.lastOpts)
}

func TestListIncidentsDefaultsAndEmpty(t *testing.T) {
	srv, sim := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/incidents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"incidents":[],"count":0}`, stripSchema(t, rec.Body.Bytes()))
	assert.Equal(t, 50, sim.lastOpts.Limit)
}

func TestListIncidentsRejectsNegativeLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/incidents?limit=-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetIncident(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{sampleReport("INC_2026_7", "sess_7")}

	rec := do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess_7", decode[store.IncidentReport](t, rec.Body.Bytes()).SessionID)

	rec = do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_8", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportIncident(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{sampleReport("INC_2026_7", "sess_7")}

	rec := do(t, srv, http.MethodPost, "/api/v1/incidents/INC_2026_7/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		IncidentID string `json:"incident_id"`
		Path       string `json:"path"`
	}](t, rec.Body.Bytes())
	assert.Equal(t, "INC_2026_7", out.IncidentID)
	assert.Equal(t, "incidents/incident_INC_2026_7.json", out.Path)

	rec = do(t, srv, http.MethodPost, "/api/v1/incidents/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimilarIncidents(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{
		sampleReport("INC_2026_3", "sess_3"),
		sampleReport("INC_2026_2", "sess_2"),
		sampleReport("INC_2026_1", "sess_1"),
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_3/similar?k=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		IncidentID string                  `json:"incident_id"`
		Similar    []store.SimilarIncident `json:"similar"`
	}](t, rec.Body.Bytes())
	assert.Equal(t, "INC_2026_3", out.IncidentID)
	require.Len(t, out.Similar, 1)
	assert.Equal(t, "INC_2026_2", out.Similar[0].Report.IncidentID)
	assert.InDelta(t, 0.1, out.Similar[0].Distance, 1e-9)

	rec = do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_3/similar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, sim.lastK)
}

func TestSimilarIncidentsErrors(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{sampleReport("INC_2026_3", "sess_3")}

	rec := do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_3/similar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"incident_id":"INC_2026_3","similar":[]}`, stripSchema(t, rec.Body.Bytes()))

	rec = do(t, srv, http.MethodGet, "/api/v1/incidents/missing/similar", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, k := range []string{"0", "51"} {
		rec = do(t, srv, http.MethodGet, "/api/v1/incidents/INC_2026_3/similar?k="+k, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, k)
	}
}

func TestResetReturnsNoContent(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.reports = []*store.IncidentReport{sampleReport("INC_2026_7", "sess_7")}

	rec := do(t, srv, http.MethodDelete, "/api/v1/incidents", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, 1, sim.resets)
	assert.Empty(t, sim.reports)
}

func TestStatus(t *testing.T) {
	srv, sim := newTestServer(t, nil)
	sim.snap = simulation.Snapshot{ID: "sess_3", Status: simulation.StatusActive, RiskScore: 70}

	rec := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[simulation.StatusView](t, rec.Body.Bytes())
	assert.Equal(t, simulation.SystemElevated, view.Status)
	assert.Equal(t, 70, view.RiskScore)
	assert.Equal(t, "sess_3", view.SessionID)
	assert.Equal(t, simulation.StatusActive, view.SessionStatus)
}

func TestProviders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Providers []server.ProviderHealth `json:"providers"`
	}](t, rec.Body.Bytes())
	require.Len(t, out.Providers, 1)
	assert.Equal(t, "google", out.Providers[0].Name)
	assert.True(t, out.Providers[0].Default)
	assert.True(t, out.Providers[0].Available)
}

func TestProvidersWithoutService(t *testing.T) {
	srv, _ := newTestServer(t, func(c *server.Config) { c.Providers = nil })

	rec := do(t, srv, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"providers":[]}`, stripSchema(t, rec.Body.Bytes()))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, stripSchema(t, rec.Body.Bytes()))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "closed engine",
			err:        sxerr.New(sxerr.CodeSimulationClosed, "engine closed"),
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "engine closed",
		},
		{
			name:       "invalid listing",
			err:        sxerr.New(sxerr.CodeStoreInvalidInput, "negative offset"),
			wantStatus: http.StatusBadRequest,
			wantDetail: "negative offset",
		},
		{
			name:       "internal failure hides detail",
			err:        sxerr.New(sxerr.CodeStoreDatabaseFailure, "disk I/O error at page 7"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "listing incidents failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sim := newTestServer(t, nil)
			sim.err = tt.err

			rec := do(t, srv, http.MethodGet, "/api/v1/incidents", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			p := decode[problem](t, rec.Body.Bytes())
			assert.Contains(t, p.Detail, tt.wantDetail)
			assert.NotContains(t, p.Detail, "page 7")
		})
	}
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	paths := srv.API().OpenAPI().Paths
	for _, p := range []string{
		"/api/v1/simulation",
		"/api/v1/simulation/start",
		"/api/v1/simulation/kill",
		server.EventsPath,
		"/api/v1/incidents",
		"/api/v1/incidents/{id}",
		"/api/v1/incidents/{id}/export",
		"/api/v1/incidents/{id}/similar",
		"/api/v1/status",
		"/api/v1/providers",
		"/health",
	} {
		assert.Contains(t, paths, p)
	}
	require.NotNil(t, paths[server.EventsPath].Get)
	assert.Equal(t, "simulation-events", paths[server.EventsPath].Get.OperationID)
}

// stripSchema removes the $schema link huma adds to response bodies.
func stripSchema(t *testing.T, body []byte) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	delete(m, "$schema")
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}
