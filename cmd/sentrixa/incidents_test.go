// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// fakeLabAPI serves the incident routes from an in-memory list.
type fakeLabAPI struct {
	reports   []*store.IncidentReport
	lastQuery url.Values
	cleared   bool
}

func (f *fakeLabAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/incidents":
		f.lastQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]any{"incidents": f.reports, "count": len(f.reports)})
	case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/incidents":
		f.cleared = true
		f.reports = nil
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/similar"):
		f.lastQuery = r.URL.Query()
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/incidents/"), "/similar")
		similar := []store.SimilarIncident{}
		for i, rep := range f.reports {
			if rep.IncidentID != id {
				similar = append(similar, store.SimilarIncident{Report: rep, Distance: 0.25 * float64(i)})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"incident_id": id, "similar": similar})
	case r.Method == http.MethodGet:
		id := r.URL.Path[len("/api/v1/incidents/"):]
		for _, rep := range f.reports {
			if rep.IncidentID == id {
				_ = json.NewEncoder(w).Encode(rep)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"incident ` + id + ` not found"}`))
	case r.Method == http.MethodPost:
		_ = json.NewEncoder(w).Encode(map[string]string{
			"incident_id": "INC_1",
			"path":        "incidents/incident_INC_1.json",
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeLab(t *testing.T, reports ...*store.IncidentReport) (*fakeLabAPI, string) {
	t.Helper()
	api := &fakeLabAPI{reports: reports}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func TestIncidentsList(t *testing.T) {
	isolate(t)
	api, addr := newFakeLab(t, sampleReport("INC_2"), sampleReport("INC_1"))

	out, err := runRoot(t, "incidents", "list", "--address", addr, "-q", "bank", "--limit", "5", "--offset", "1")
	require.NoError(t, err)

	assert.Equal(t, "bank", api.lastQuery.Get("q"))
	assert.Equal(t, "5", api.lastQuery.Get("limit"))
	assert.Equal(t, "1", api.lastQuery.Get("offset"))
	assert.Contains(t, out, "INCIDENT")
	assert.Contains(t, out, "INC_2")
	assert.Contains(t, out, "bank_impersonation")
	assert.Contains(t, out, "SESSION_TERMINATED")
}

func TestIncidentsList_Empty(t *testing.T) {
	isolate(t)
	api, addr := newFakeLab(t)

	out, err := runRoot(t, "incidents", "list", "--address", addr)
	require.NoError(t, err)
	assert.Equal(t, "No incidents archived.\n", out)
	assert.False(t, api.lastQuery.Has("q"))
	assert.Equal(t, "50", api.lastQuery.Get("limit"))
}

func TestIncidentsShow(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"json", "json", `"incident_id": "INC_1"`},
		{"yaml", "yaml", "incident_id: INC_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, addr := newFakeLab(t, sampleReport("INC_1"))

			out, err := runRoot(t, "incidents", "show", "INC_1", "--address", addr, "-o", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestIncidentsShow_NotFound(t *testing.T) {
	isolate(t)
	_, addr := newFakeLab(t)

	_, err := runRoot(t, "incidents", "show", "INC_9", "--address", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incident INC_9 not found")
	assert.Equal(t, http.StatusNotFound, sxerr.FieldsOf(err)["status"])
}

func TestIncidentsShow_BadFormat(t *testing.T) {
	isolate(t)
	_, addr := newFakeLab(t, sampleReport("INC_1"))

	_, err := runRoot(t, "incidents", "show", "INC_1", "--address", addr, "-o", "xml")
	require.Error(t, err)
	assert.True(t, sxerr.HasCode(err, sxerr.CodeExportFormatInvalid))
}

func TestIncidentsExport(t *testing.T) {
	isolate(t)
	_, addr := newFakeLab(t, sampleReport("INC_1"))

	out, err := runRoot(t, "incidents", "export", "INC_1", "--address", addr)
	require.NoError(t, err)
	assert.Equal(t, "Exported INC_1 to incidents/incident_INC_1.json\n", out)
}

func TestIncidentsClear(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		isolate(t)
		api, addr := newFakeLab(t, sampleReport("INC_1"))

		_, err := runRoot(t, "incidents", "clear", "--address", addr)
		require.Error(t, err)
		assert.True(t, sxerr.HasCode(err, sxerr.CodeCLIInputInvalid))
		assert.False(t, api.cleared)
	})

	t.Run("confirmed", func(t *testing.T) {
		isolate(t)
		api, addr := newFakeLab(t, sampleReport("INC_1"))

		out, err := runRoot(t, "incidents", "clear", "--yes", "--address", addr)
		require.NoError(t, err)
		assert.True(t, api.cleared)
		assert.Equal(t, "Incident archive cleared.\n", out)
	})
}

func TestIncidentsSimilar(t *testing.T) {
	isolate(t)
	api, addr := newFakeLab(t, sampleReport("INC_3"), sampleReport("INC_2"), sampleReport("INC_1"))

	out, err := runRoot(t, "incidents", "similar", "INC_3", "--address", addr, "-k", "2")
	require.NoError(t, err)

	assert.Equal(t, "2", api.lastQuery.Get("k"))
	assert.Contains(t, out, "DISTANCE")
	assert.Contains(t, out, "INC_2")
	assert.Contains(t, out, "0.250")
	assert.Contains(t, out, "INC_1")
	assert.NotContains(t, out, "INC_3")
}

func TestIncidentsSimilar_NoNeighbours(t *testing.T) {
	isolate(t)
	_, addr := newFakeLab(t, sampleReport("INC_1"))

	out, err := runRoot(t, "incidents", "similar", "INC_1", "--address", addr)
	require.NoError(t, err)
	assert.Equal(t, "No incidents resemble INC_1.\n", out)
}

func TestIncidentsSimilar_RejectsBadK(t *testing.T) {
	isolate(t)
	_, addr := newFakeLab(t)

	for _, k := range []string{"0", "51"} {
		_, err := runRoot(t, "incidents", "similar", "INC_1", "--address", addr, "-k", k)
		require.Error(t, err, k)
		assert.True(t, sxerr.HasCode(err, sxerr.CodeCLIInputInvalid), k)
	}
}
