// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Compile-time interface check.
var _ store.IncidentStore = (*IncidentStore)(nil)

// IncidentStore implements store.IncidentStore backed by SQLite. Reports are
// keyed by an insertion sequence because incident ids may collide.
type IncidentStore struct {
	db *sql.DB
}

// NewIncidentStore opens (or creates) a SQLite database at dbPath and
// initialises the incident tables.
func NewIncidentStore(dbPath string) (*IncidentStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}
	if err := migrateVectors(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}

	return &IncidentStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS incidents (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	incident_id        TEXT NOT NULL,
	session_id         TEXT NOT NULL,
	environment        TEXT NOT NULL DEFAULT 'synthetic',
	scam_category      TEXT NOT NULL DEFAULT '',
	risk_score         INTEGER NOT NULL DEFAULT 0,
	containment_action TEXT NOT NULL,
	privacy_violation  INTEGER NOT NULL DEFAULT 0,
	signals            TEXT NOT NULL DEFAULT '{}',
	ethics             TEXT NOT NULL DEFAULT '{}',
	generated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_incident_id ON incidents(incident_id);

CREATE TABLE IF NOT EXISTS incident_messages (
	incident_seq INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	sender       TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL,
	PRIMARY KEY (incident_seq, position),
	FOREIGN KEY (incident_seq) REFERENCES incidents(seq) ON DELETE CASCADE
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *IncidentStore) Close() error {
	return s.db.Close()
}

func (s *IncidentStore) Prepend(ctx context.Context, report *store.IncidentReport) (retErr error) {
	if report == nil {
		return sxerr.New(sxerr.CodeStoreInvalidInput, "incident: report is nil")
	}
	if err := report.Validate(); err != nil {
		return err
	}

	signals, err := json.Marshal(report.BehavioralSignals)
	if err != nil {
		return fmt.Errorf("marshalling behavioral signals: %w", err)
	}
	ethics, err := json.Marshal(report.Ethics)
	if err != nil {
		return fmt.Errorf("marshalling ethics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	const insertIncident = `INSERT INTO incidents
(incident_id, session_id, environment, scam_category, risk_score, containment_action, privacy_violation, signals, ethics, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := tx.ExecContext(ctx, insertIncident,
		report.IncidentID,
		report.SessionID,
		report.Environment,
		report.Summary.ScamCategory,
		report.Summary.RiskScore,
		report.Summary.ContainmentAction,
		boolToInt(report.Summary.PrivacyViolation),
		string(signals),
		string(ethics),
		formatTime(report.GeneratedAt),
	)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "inserting incident %s: %w", report.IncidentID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "reading incident sequence: %w", err)
	}

	const insertMessage = `INSERT INTO incident_messages (incident_seq, position, id, sender, content, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`
	for i, m := range report.Timeline {
		if _, err := tx.ExecContext(ctx, insertMessage, seq, i, m.ID, string(m.Sender), m.Content, formatTime(m.Timestamp)); err != nil {
			return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "inserting timeline message %d: %w", i, err)
		}
	}
	if err := storeVector(ctx, tx, seq, report); err != nil {
		return sxerr.Wrapf(err, sxerr.CodeStoreDatabaseFailure, "indexing incident %s", report.IncidentID)
	}

	if err := tx.Commit(); err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "committing incident %s: %w", report.IncidentID, err)
	}
	return nil
}

const selectIncident = `SELECT seq, incident_id, session_id, environment, scam_category, risk_score,
containment_action, privacy_violation, signals, ethics, generated_at FROM incidents`

// Get returns the most recently archived report with the given id.
func (s *IncidentStore) Get(ctx context.Context, incidentID string) (*store.IncidentReport, error) {
	row := s.db.QueryRowContext(ctx, selectIncident+` WHERE incident_id = ? ORDER BY seq DESC LIMIT 1`, incidentID)
	seq, report, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sxerr.Errorf(sxerr.CodeStoreIncidentGetNotFound, "incident %s: %w", incidentID, store.ErrNotFound)
	}
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "getting incident %s: %w", incidentID, err)
	}
	if report.Timeline, err = s.timeline(ctx, seq); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *IncidentStore) List(ctx context.Context, opts store.ListOpts) ([]*store.IncidentReport, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, sxerr.Errorf(sxerr.CodeStoreInvalidInput, "list: negative limit or offset: %w", store.ErrInvalidInput)
	}

	// Matching runs in Go through store.MatchesQuery so that case folding
	// agrees with the memory backend; SQLite's lower() only folds ASCII.
	q := selectIncident + ` ORDER BY seq DESC`
	var args []any
	if opts.Query == "" {
		limit := opts.Limit
		if limit == 0 {
			limit = -1
		}
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "listing incidents: %w", err)
	}
	defer rows.Close()

	var (
		seqs    []int64
		reports []*store.IncidentReport
	)
	for rows.Next() {
		seq, report, err := scanIncident(rows)
		if err != nil {
			return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "scanning incident: %w", err)
		}
		if !store.MatchesQuery(*report, opts.Query) {
			continue
		}
		seqs = append(seqs, seq)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "iterating incidents: %w", err)
	}
	rows.Close()

	if opts.Query != "" {
		lo := min(opts.Offset, len(reports))
		hi := len(reports)
		if opts.Limit > 0 {
			hi = min(lo+opts.Limit, hi)
		}
		seqs, reports = seqs[lo:hi], reports[lo:hi]
	}

	for i, seq := range seqs {
		if reports[i].Timeline, err = s.timeline(ctx, seq); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *IncidentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "counting incidents: %w", err)
	}
	return n, nil
}

func (s *IncidentStore) Clear(ctx context.Context) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	// vec0 tables take no foreign keys, so fingerprints go explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM incident_vectors`); err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "clearing fingerprints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents`); err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "clearing incidents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "committing clear: %w", err)
	}
	return nil
}

func (s *IncidentStore) timeline(ctx context.Context, seq int64) ([]store.Message, error) {
	const q = `SELECT id, sender, content, timestamp FROM incident_messages WHERE incident_seq = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, q, seq)
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "loading timeline: %w", err)
	}
	defer rows.Close()

	msgs := []store.Message{}
	for rows.Next() {
		var m store.Message
		var sender, ts string
		if err := rows.Scan(&m.ID, &sender, &m.Content, &ts); err != nil {
			return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "scanning timeline message: %w", err)
		}
		m.Sender = store.Sender(sender)
		m.Timestamp = parseTime(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, sxerr.Errorf(sxerr.CodeStoreDatabaseFailure, "iterating timeline: %w", err)
	}
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (int64, *store.IncidentReport, error) {
	var (
		seq                      int64
		r                        store.IncidentReport
		privacy                  int
		signals, ethics, genTime string
	)
	err := row.Scan(
		&seq,
		&r.IncidentID,
		&r.SessionID,
		&r.Environment,
		&r.Summary.ScamCategory,
		&r.Summary.RiskScore,
		&r.Summary.ContainmentAction,
		&privacy,
		&signals,
		&ethics,
		&genTime,
	)
	if err != nil {
		return 0, nil, err
	}
	r.Summary.PrivacyViolation = privacy != 0
	if err := json.Unmarshal([]byte(signals), &r.BehavioralSignals); err != nil {
		return 0, nil, fmt.Errorf("unmarshalling signals: %w", err)
	}
	if err := json.Unmarshal([]byte(ethics), &r.Ethics); err != nil {
		return 0, nil, fmt.Errorf("unmarshalling ethics: %w", err)
	}
	r.GeneratedAt = parseTime(genTime)
	return seq, &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatTime serialises a time for storage in SQLite.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
