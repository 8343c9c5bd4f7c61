// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentrixa-lab/sentrixa/internal/store"
	"github.com/sentrixa-lab/sentrixa/internal/store/sqlite"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.IncidentStore {
	t.Helper()
	s, err := sqlite.NewIncidentStore(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(id, category string) *store.IncidentReport {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &store.IncidentReport{
		IncidentID:  id,
		SessionID:   "sess_1740830400000",
		Environment: "synthetic",
		Summary: store.Summary{
			ScamCategory:      category,
			RiskScore:         90,
			ContainmentAction: "session_terminated",
			PrivacyViolation:  true,
		},
		BehavioralSignals: store.BehavioralSignals{
			UrgencyLevel:          "high",
			PersuasionStyle:       "authority",
			ImpersonationType:     "bank",
			FakeLinkIndicator:     true,
			SyntheticPaymentToken: "TOKEN_SIM_123",
		},
		Timeline: []store.Message{
			{ID: "msg_1", Sender: store.SenderAttacker, Content: "Your account is locked.", Timestamp: now},
			{ID: "def_2", Sender: store.SenderDefender, Content: "I will call the bank directly.", Timestamp: now.Add(time.Second)},
		},
		Ethics:      store.Ethics{SimulationOnly: true, RealDataCollected: false, ResearchUse: true},
		GeneratedAt: now.Add(2 * time.Second),
	}
}

func TestIncidentStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	want := report("INC_2026_42", "Bank Impersonation")
	require.NoError(t, s.Prepend(ctx, want))

	got, err := s.Get(ctx, "INC_2026_42")
	require.NoError(t, err)
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.BehavioralSignals, got.BehavioralSignals)
	assert.Equal(t, want.Ethics, got.Ethics)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	require.Len(t, got.Timeline, 2)
	assert.Equal(t, "def_2", got.Timeline[1].ID)
	assert.Equal(t, store.SenderDefender, got.Timeline[1].Sender)
	assert.True(t, want.Timeline[1].Timestamp.Equal(got.Timeline[1].Timestamp))
}

func TestIncidentStore_ListMostRecentFirstAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	categories := []string{"Phishing", "Tech Support", "Bank Impersonation"}
	for i, c := range categories {
		require.NoError(t, s.Prepend(ctx, report(fmt.Sprintf("INC_2026_%d", i), c)))
	}

	all, err := s.List(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "INC_2026_2", all[0].IncidentID)
	assert.Len(t, all[0].Timeline, 2)

	hits, err := s.List(ctx, store.ListOpts{Query: "TECH"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "INC_2026_1", hits[0].IncidentID)

	hits, err = s.List(ctx, store.ListOpts{Query: "inc_2026_0"})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	page, err := s.List(ctx, store.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "INC_2026_1", page[0].IncidentID)
}

func TestIncidentStore_SearchFoldsNonASCIILikeMemory(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	mem := store.NewMemoryIncidentStore()

	categories := []string{"Überweisungsbetrug", "Фишинг", "Phishing", "ÜBERWEISUNG per Telefon"}
	for i, c := range categories {
		r := report(fmt.Sprintf("INC_2026_%d", i), c)
		require.NoError(t, s.Prepend(ctx, r))
		require.NoError(t, mem.Prepend(ctx, r))
	}

	tests := []struct {
		name string
		opts store.ListOpts
		want []string
	}{
		{"umlaut lower", store.ListOpts{Query: "überweisung"}, []string{"INC_2026_3", "INC_2026_0"}},
		{"cyrillic upper", store.ListOpts{Query: "ФИШИНГ"}, []string{"INC_2026_1"}},
		{"paged", store.ListOpts{Query: "überweisung", Limit: 1, Offset: 1}, []string{"INC_2026_0"}},
		{"offset past end", store.ListOpts{Query: "phishing", Offset: 5}, nil},
	}
	ids := func(rs []*store.IncidentReport) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.IncidentID)
		}
		return out
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))

			fromMem, err := mem.List(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, ids(fromMem), ids(got))
		})
	}
}

func TestIncidentStore_DuplicateIDsKeepBoth(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Prepend(ctx, report("INC_2026_7", "Older")))
	require.NoError(t, s.Prepend(ctx, report("INC_2026_7", "Newer")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Get(ctx, "INC_2026_7")
	require.NoError(t, err)
	assert.Equal(t, "Newer", got.Summary.ScamCategory)
}

func TestIncidentStore_ClearRemovesTimeline(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Prepend(ctx, report("INC_2026_1", "Phishing")))
	require.NoError(t, s.Clear(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Get(ctx, "INC_2026_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, sxerr.IsNotFound(err))
}

func TestIncidentStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "incidents.db")

	s, err := sqlite.NewIncidentStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Prepend(ctx, report("INC_2026_3", "Phishing")))
	require.NoError(t, s.Close())

	reopened, err := sqlite.NewIncidentStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "INC_2026_3")
	require.NoError(t, err)
	assert.Equal(t, "Phishing", got.Summary.ScamCategory)
}

func TestIncidentStore_RejectsInvalidReport(t *testing.T) {
	s := openStore(t)
	bad := report("INC_2026_1", "Phishing")
	bad.SessionID = ""
	err := s.Prepend(context.Background(), bad)
	assert.True(t, sxerr.IsInvalidInput(err))
}
