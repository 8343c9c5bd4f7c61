// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-simulation",
		Method:      http.MethodPost,
		Path:        "/api/v1/simulation/start",
		Summary:     "Start a new simulation session",
		Description: "Abandons any running session and starts a fresh one.",
		Tags:        []string{"simulation"},
	}, s.handleStart)

	huma.Register(s.api, huma.Operation{
		OperationID: "kill-simulation",
		Method:      http.MethodPost,
		Path:        "/api/v1/simulation/kill",
		Summary:     "Terminate the active session",
		Description: "Issues a manual kill switch and returns the synthesized incident report.",
		Tags:        []string{"simulation"},
	}, s.handleKill)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-simulation",
		Method:      http.MethodGet,
		Path:        "/api/v1/simulation",
		Summary:     "Current session snapshot",
		Tags:        []string{"simulation"},
	}, s.handleSnapshot)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-incidents",
		Method:      http.MethodGet,
		Path:        "/api/v1/incidents",
		Summary:     "List archived incident reports",
		Tags:        []string{"incidents"},
	}, s.handleListIncidents)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-incident",
		Method:      http.MethodGet,
		Path:        "/api/v1/incidents/{id}",
		Summary:     "Get an incident report",
		Tags:        []string{"incidents"},
	}, s.handleGetIncident)

	huma.Register(s.api, huma.Operation{
		OperationID: "export-incident",
		Method:      http.MethodPost,
		Path:        "/api/v1/incidents/{id}/export",
		Summary:     "Write an incident report to the export directory",
		Tags:        []string{"incidents"},
	}, s.handleExportIncident)

	huma.Register(s.api, huma.Operation{
		OperationID: "similar-incidents",
		Method:      http.MethodGet,
		Path:        "/api/v1/incidents/{id}/similar",
		Summary:     "Find archived incidents with a similar behavioral fingerprint",
		Tags:        []string{"incidents"},
	}, s.handleSimilarIncidents)

	huma.Register(s.api, huma.Operation{
		OperationID:   "reset-lab",
		Method:        http.MethodDelete,
		Path:          "/api/v1/incidents",
		Summary:       "Clear the archive and the live session",
		Tags:          []string{"incidents"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleReset)

	huma.Register(s.api, huma.Operation{
		OperationID: "lab-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Lab status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/api/v1/providers",
		Summary:     "Model provider health",
		Tags:        []string{"system"},
	}, s.handleProviders)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Tags:        []string{"system"},
	}, s.handleHealth)
}

// --- Request/Response types for huma ---

type snapshotOutput struct {
	Body simulation.Snapshot
}

type reportOutput struct {
	Body *store.IncidentReport
}

type incidentIDInput struct {
	ID string `path:"id" minLength:"1" doc:"Incident id, e.g. INC_2026_417"`
}

type listIncidentsInput struct {
	Query  string `query:"q" doc:"Case-insensitive match on incident id or scam category"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" default:"50" doc:"Maximum results; 0 means no limit"`
	Offset int    `query:"offset" minimum:"0" default:"0"`
}

type listIncidentsOutput struct {
	Body struct {
		Incidents []*store.IncidentReport `json:"incidents"`
		Count     int                     `json:"count"`
	}
}

type similarIncidentsInput struct {
	ID string `path:"id" minLength:"1" doc:"Incident id, e.g. INC_2026_417"`
	K  int    `query:"k" minimum:"1" maximum:"50" default:"5" doc:"Number of neighbours to return"`
}

type similarIncidentsOutput struct {
	Body struct {
		IncidentID string                  `json:"incident_id"`
		Similar    []store.SimilarIncident `json:"similar"`
	}
}

type exportOutput struct {
	Body struct {
		IncidentID string `json:"incident_id"`
		Path       string `json:"path"`
	}
}

type statusOutput struct {
	Body simulation.StatusView
}

type providersOutput struct {
	Body struct {
		Providers []ProviderHealth `json:"providers"`
	}
}

type healthOutput struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Version string `json:"version"`
	}
}

func (s *Server) handleStart(ctx context.Context, _ *struct{}) (*snapshotOutput, error) {
	snap, err := s.cfg.Simulation.Start(ctx)
	if err != nil {
		return nil, s.apiError(ctx, "starting simulation", err)
	}
	return &snapshotOutput{Body: snap}, nil
}

func (s *Server) handleKill(ctx context.Context, _ *struct{}) (*reportOutput, error) {
	report, err := s.cfg.Simulation.Kill(ctx)
	if err != nil {
		return nil, s.apiError(ctx, "killing simulation", err)
	}
	return &reportOutput{Body: report}, nil
}

func (s *Server) handleSnapshot(ctx context.Context, _ *struct{}) (*snapshotOutput, error) {
	snap, err := s.cfg.Simulation.Snapshot(ctx)
	if err != nil {
		return nil, s.apiError(ctx, "reading snapshot", err)
	}
	return &snapshotOutput{Body: snap}, nil
}

func (s *Server) handleListIncidents(ctx context.Context, input *listIncidentsInput) (*listIncidentsOutput, error) {
	reports, err := s.cfg.Simulation.Reports(ctx, store.ListOpts{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, s.apiError(ctx, "listing incidents", err)
	}
	if reports == nil {
		reports = []*store.IncidentReport{}
	}
	out := &listIncidentsOutput{}
	out.Body.Incidents = reports
	out.Body.Count = len(reports)
	return out, nil
}

func (s *Server) handleGetIncident(ctx context.Context, input *incidentIDInput) (*reportOutput, error) {
	report, err := s.cfg.Simulation.Report(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, "reading incident", err)
	}
	return &reportOutput{Body: report}, nil
}

func (s *Server) handleExportIncident(ctx context.Context, input *incidentIDInput) (*exportOutput, error) {
	path, err := s.cfg.Simulation.Export(ctx, input.ID)
	if err != nil {
		return nil, s.apiError(ctx, "exporting incident", err)
	}
	out := &exportOutput{}
	out.Body.IncidentID = input.ID
	out.Body.Path = path
	return out, nil
}

func (s *Server) handleSimilarIncidents(ctx context.Context, input *similarIncidentsInput) (*similarIncidentsOutput, error) {
	similar, err := s.cfg.Simulation.Similar(ctx, input.ID, input.K)
	if err != nil {
		return nil, s.apiError(ctx, "finding similar incidents", err)
	}
	if similar == nil {
		similar = []store.SimilarIncident{}
	}
	out := &similarIncidentsOutput{}
	out.Body.IncidentID = input.ID
	out.Body.Similar = similar
	return out, nil
}

func (s *Server) handleReset(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.cfg.Simulation.Reset(ctx); err != nil {
		return nil, s.apiError(ctx, "resetting lab", err)
	}
	return nil, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	view, err := s.cfg.Simulation.Status(ctx)
	if err != nil {
		return nil, s.apiError(ctx, "reading status", err)
	}
	return &statusOutput{Body: view}, nil
}

func (s *Server) handleProviders(ctx context.Context, _ *struct{}) (*providersOutput, error) {
	out := &providersOutput{}
	out.Body.Providers = []ProviderHealth{}
	if s.cfg.Providers != nil {
		if ps := s.cfg.Providers.Providers(ctx); ps != nil {
			out.Body.Providers = ps
		}
	}
	return out, nil
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	out.Body.Version = s.cfg.Version
	return out, nil
}

// apiError maps a domain error onto an HTTP problem response. Server-side
// failures are logged and reported without internal detail.
func (s *Server) apiError(ctx context.Context, op string, err error) error {
	status := sxerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway &&
		status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		s.log.ErrorContext(ctx, op+" failed", "error", err, "code", sxerr.CodeOf(err))
		return huma.NewError(status, op+" failed")
	}
	s.log.DebugContext(ctx, op+" rejected", "error", err, "code", sxerr.CodeOf(err), "status", status)
	return huma.NewError(status, err.Error())
}
