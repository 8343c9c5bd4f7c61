// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package export writes incident reports to disk.
package export

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// DefaultDir is where reports land when no directory is configured.
const DefaultDir = "./incidents"

// Config configures a FileExporter.
type Config struct {
	Dir    string
	Format Format
	Logger *slog.Logger
}

// FileExporter writes one file per report, named incident_<id>.<ext>.
type FileExporter struct {
	dir    string
	format Format
	log    *slog.Logger
}

var _ simulation.Exporter = (*FileExporter)(nil)

// New creates a FileExporter. The directory is created on first export.
func New(cfg Config) (*FileExporter, error) {
	format := cfg.Format
	if format == "" {
		format = FormatJSON
	}
	if !format.Valid() {
		return nil, sxerr.Errorf(sxerr.CodeExportFormatInvalid, "unsupported export format %q", format)
	}
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &FileExporter{dir: dir, format: format, log: log}, nil
}

// Dir returns the export directory.
func (e *FileExporter) Dir() string { return e.dir }

// FileName returns the file name a report with the given id is written to.
func FileName(incidentID string, f Format) string {
	return "incident_" + incidentID + "." + f.Ext()
}

// Export writes the report and returns the file path. An existing file for
// the same incident is replaced.
func (e *FileExporter) Export(ctx context.Context, report *store.IncidentReport) (string, error) {
	if report == nil {
		return "", sxerr.New(sxerr.CodeExportInvalidInput, "report is required")
	}
	if err := checkID(report.IncidentID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, report, e.format); err != nil {
		return "", sxerr.With(err, sxerr.FieldIncidentID(report.IncidentID))
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "creating export directory",
			sxerr.Field("dir", e.dir))
	}

	path := filepath.Join(e.dir, FileName(report.IncidentID, e.format))
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "writing incident report",
			sxerr.FieldIncidentID(report.IncidentID), sxerr.Field("path", path))
	}

	e.log.Debug("incident report written", "incident_id", report.IncidentID, "path", path, "bytes", buf.Len())
	return path, nil
}

// checkID keeps report ids from escaping the export directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return sxerr.Errorf(sxerr.CodeExportInvalidInput, "invalid incident id %q", id)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
