// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import "context"

// IncidentStore is the archive of synthesized incident reports. Listings are
// ordered most recent first.
type IncidentStore interface {
	Prepend(ctx context.Context, report *IncidentReport) error
	Get(ctx context.Context, incidentID string) (*IncidentReport, error)
	List(ctx context.Context, opts ListOpts) ([]*IncidentReport, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}
