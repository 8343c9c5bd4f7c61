// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// MemoryIncidentStore keeps the archive for the lifetime of the process.
type MemoryIncidentStore struct {
	mu      sync.RWMutex
	reports []IncidentReport // most recent first
}

var (
	_ IncidentStore   = (*MemoryIncidentStore)(nil)
	_ SimilarityIndex = (*MemoryIncidentStore)(nil)
)

// NewMemoryIncidentStore returns an empty in-memory archive.
func NewMemoryIncidentStore() *MemoryIncidentStore {
	return &MemoryIncidentStore{}
}

func (s *MemoryIncidentStore) Prepend(_ context.Context, report *IncidentReport) error {
	if report == nil {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "incident: report is nil")
	}
	if err := report.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]IncidentReport{report.Clone()}, s.reports...)
	return nil
}

// Get returns the most recent report with the given id. Ids are not unique.
func (s *MemoryIncidentStore) Get(_ context.Context, incidentID string) (*IncidentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.IncidentID == incidentID {
			out := r.Clone()
			return &out, nil
		}
	}
	return nil, sxerr.Errorf(sxerr.CodeStoreIncidentGetNotFound, "incident %s: %w", incidentID, ErrNotFound)
}

func (s *MemoryIncidentStore) List(_ context.Context, opts ListOpts) ([]*IncidentReport, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, sxerr.Errorf(sxerr.CodeStoreInvalidInput, "list: negative limit or offset: %w", ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*IncidentReport, 0, len(s.reports))
	skipped := 0
	for _, r := range s.reports {
		if !MatchesQuery(r, opts.Query) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		c := r.Clone()
		out = append(out, &c)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryIncidentStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports), nil
}

func (s *MemoryIncidentStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = nil
	return nil
}

func (s *MemoryIncidentStore) Close() error { return nil }

// Similar ranks every other archived report by fingerprint distance.
func (s *MemoryIncidentStore) Similar(_ context.Context, incidentID string, k int) ([]SimilarIncident, error) {
	if k <= 0 {
		return nil, sxerr.Errorf(sxerr.CodeStoreInvalidInput, "similar: k must be positive, got %d: %w", k, ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target := slices.IndexFunc(s.reports, func(r IncidentReport) bool { return r.IncidentID == incidentID })
	if target < 0 {
		return nil, sxerr.Errorf(sxerr.CodeStoreIncidentGetNotFound, "incident %s: %w", incidentID, ErrNotFound)
	}
	query := Fingerprint(&s.reports[target])

	out := make([]SimilarIncident, 0, len(s.reports)-1)
	for i := range s.reports {
		if i == target {
			continue
		}
		c := s.reports[i].Clone()
		out = append(out, SimilarIncident{Report: &c, Distance: Distance(query, Fingerprint(&c))})
	}
	// Stable keeps archive order (most recent first) among equal distances.
	slices.SortStableFunc(out, func(a, b SimilarIncident) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// MatchesQuery reports whether a report's incident id or scam category
// contains query, ignoring case. An empty query matches everything.
func MatchesQuery(r IncidentReport, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.IncidentID), q) ||
		strings.Contains(strings.ToLower(r.Summary.ScamCategory), q)
}
