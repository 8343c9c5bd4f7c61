// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package scanner

import (
	"slices"
	"strings"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Mode defines what happens to content that matched a rule.
type Mode string

const (
	// ModeFlag reports the violation and keeps content as-is.
	ModeFlag Mode = "flag"
	// ModeRedact reports the violation and masks matched regions.
	ModeRedact Mode = "redact"
)

// Valid reports whether the mode is a known scanner mode.
func (m Mode) Valid() bool {
	return m == ModeFlag || m == ModeRedact
}

// ParseMode parses a mode string (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "flag":
		return ModeFlag, nil
	case "redact":
		return ModeRedact, nil
	default:
		return "", sxerr.Errorf(sxerr.CodeConfigValidateInvalidValue, "invalid scanner mode: %q", s)
	}
}

// ApplyMode applies mode to a scan result. Redaction always works on the
// normalized result.Content since match offsets index into it.
func ApplyMode(mode Mode, content string, result ScanResult) (string, error) {
	if !result.Threat {
		return content, nil
	}

	switch mode {
	case ModeFlag:
		return content, nil
	case ModeRedact:
		return redact(result.Content, result.Matches), nil
	default:
		return "", sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "unknown scanner mode %q", mode)
	}
}

// redact replaces matched regions with [REDACTED], merging overlaps.
func redact(content string, matches []Match) string {
	sorted := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Location < 0 || m.Length < 0 || m.Location > len(content)
	})
	if len(sorted) == 0 {
		return content
	}
	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
			continue
		}
		spans = append(spans, span{m.Location, end})
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range spans {
		b.WriteString(content[pos:s.start])
		b.WriteString("[REDACTED]")
		pos = min(s.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}
