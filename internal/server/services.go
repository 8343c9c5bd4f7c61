// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import (
	"context"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
)

// SimulationService is the engine surface the API exposes.
// *simulation.Engine implements it.
type SimulationService interface {
	Start(ctx context.Context) (simulation.Snapshot, error)
	Kill(ctx context.Context) (*store.IncidentReport, error)
	Snapshot(ctx context.Context) (simulation.Snapshot, error)
	Subscribe() (<-chan simulation.Event, func())
	Reports(ctx context.Context, opts store.ListOpts) ([]*store.IncidentReport, error)
	Report(ctx context.Context, incidentID string) (*store.IncidentReport, error)
	Export(ctx context.Context, incidentID string) (string, error)
	Similar(ctx context.Context, incidentID string, k int) ([]store.SimilarIncident, error)
	Reset(ctx context.Context) error
	Status(ctx context.Context) (simulation.StatusView, error)
}

var _ SimulationService = (*simulation.Engine)(nil)

// ProviderHealth describes one registered model provider.
type ProviderHealth struct {
	Name    string `json:"name" doc:"Provider name"`
	Default bool   `json:"default" doc:"Whether the default model routes to this provider"`
	health.Metrics
}

// ProviderService reports provider health. Optional.
type ProviderService interface {
	Providers(ctx context.Context) []ProviderHealth
}
