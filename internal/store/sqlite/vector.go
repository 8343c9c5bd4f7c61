// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

var _ store.SimilarityIndex = (*IncidentStore)(nil)

// migrateVectors creates the vec0 table holding one fingerprint per
// incident, keyed by the incident sequence as rowid.
func migrateVectors(db *sql.DB) error {
	ddl := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS incident_vectors USING vec0(embedding float[%d])`,
		store.FingerprintDims,
	)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating incident_vectors virtual table: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func storeVector(ctx context.Context, tx execer, seq int64, report *store.IncidentReport) error {
	blob, err := sqlite_vec.SerializeFloat32(store.Fingerprint(report))
	if err != nil {
		return fmt.Errorf("serializing fingerprint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO incident_vectors(rowid, embedding) VALUES (?, ?)`, seq, blob); err != nil {
		return fmt.Errorf("inserting fingerprint: %w", err)
	}
	return nil
}

// Similar runs a k-nearest-neighbour query over the stored fingerprints.
func (s *IncidentStore) Similar(ctx context.Context, incidentID string, k int) ([]store.SimilarIncident, error) {
	if k <= 0 {
		return nil, sxerr.Errorf(sxerr.CodeStoreInvalidInput, "similar: k must be positive, got %d: %w", k, store.ErrInvalidInput)
	}

	var (
		seq  int64
		blob []byte
	)
	const target = `SELECT i.seq, v.embedding FROM incidents i
JOIN incident_vectors v ON v.rowid = i.seq
WHERE i.incident_id = ? ORDER BY i.seq DESC LIMIT 1`
	err := s.db.QueryRowContext(ctx, target, incidentID).Scan(&seq, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sxerr.Errorf(sxerr.CodeStoreIncidentGetNotFound, "incident %s: %w", incidentID, store.ErrNotFound)
	}
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "loading fingerprint of %s: %w", incidentID, err)
	}

	// The target itself is always its own nearest neighbour; ask for one
	// more and drop it.
	const knn = `SELECT rowid, distance FROM incident_vectors
WHERE embedding MATCH ? AND k = ?
ORDER BY distance`
	rows, err := s.db.QueryContext(ctx, knn, blob, k+1)
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "searching fingerprints: %w", err)
	}
	type hit struct {
		seq      int64
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.seq, &h.distance); err != nil {
			_ = rows.Close()
			return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "scanning fingerprint match: %w", err)
		}
		if h.seq != seq {
			hits = append(hits, h)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "iterating fingerprint matches: %w", err)
	}
	_ = rows.Close()

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]store.SimilarIncident, 0, len(hits))
	for _, h := range hits {
		report, err := s.getBySeq(ctx, h.seq)
		if err != nil {
			return nil, err
		}
		out = append(out, store.SimilarIncident{Report: report, Distance: h.distance})
	}
	return out, nil
}

func (s *IncidentStore) getBySeq(ctx context.Context, seq int64) (*store.IncidentReport, error) {
	row := s.db.QueryRowContext(ctx, selectIncident+` WHERE seq = ?`, seq)
	_, report, err := scanIncident(row)
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "loading incident #%d: %w", seq, err)
	}
	if report.Timeline, err = s.timeline(ctx, seq); err != nil {
		return nil, err
	}
	return report, nil
}
