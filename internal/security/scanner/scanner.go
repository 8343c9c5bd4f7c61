// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package scanner detects real-looking personal data and credentials in
// simulated conversation turns.
package scanner

import (
	"context"
	"regexp"
	"slices"
	"strings"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Stage identifies which side of the conversation produced the content.
type Stage string

const (
	StageAttacker Stage = "attacker"
	StageDefender Stage = "defender"
)

// Valid reports whether the stage is known.
func (s Stage) Valid() bool {
	switch s {
	case StageAttacker, StageDefender:
		return true
	default:
		return false
	}
}

// Severity indicates how critical a detection is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether the severity is a known severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// ScanContext provides context for the scan.
type ScanContext struct {
	Stage     Stage
	SessionID string
}

// ScanResult holds the outcome of a scan.
type ScanResult struct {
	Threat  bool
	Matches []Match
	// Content is the normalized content. Match offsets index into it, so
	// redaction must use it rather than the original input.
	Content string
}

// Rules returns the distinct rule names that matched, in match order.
func (r ScanResult) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// Highest returns the most severe match severity, or "" without matches.
func (r ScanResult) Highest() Severity {
	var out Severity
	for _, m := range r.Matches {
		if severityRank(m.Severity) > severityRank(out) {
			out = m.Severity
		}
	}
	return out
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Match describes a single rule match. Location and Length are byte
// offsets into ScanResult.Content and are never negative.
type Match struct {
	Rule     string
	Location int
	Length   int
	Severity Severity
}

// Scanner scans content for personal data.
type Scanner interface {
	Scan(ctx context.Context, content string, opts ScanContext) (ScanResult, error)
}

// Rule defines a detection pattern. When Check is set, a regex hit only
// counts if Check accepts the matched text.
type Rule struct {
	Stage    Stage
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
	Check    func(match string) bool
}

// DefaultMaxContentLength is the default maximum content size accepted by RegexScanner (1MB).
const DefaultMaxContentLength = 1 << 20

// RegexScanner implements Scanner using compiled regexes.
type RegexScanner struct {
	rules            []Rule
	maxContentLength int
}

// NewRegexScanner creates a scanner with the given rules.
func NewRegexScanner(rules []Rule) (*RegexScanner, error) {
	for i, r := range rules {
		if r.Pattern == nil {
			return nil, sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "rule %d (%s) has nil pattern", i, r.Name)
		}
		if !r.Stage.Valid() {
			return nil, sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "rule %d (%s) has invalid stage %q", i, r.Name, r.Stage)
		}
		if r.Name == "" {
			return nil, sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "rule %d has empty name", i)
		}
		if !r.Severity.Valid() {
			return nil, sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "rule %d (%s) has invalid severity %q", i, r.Name, r.Severity)
		}
	}
	return &RegexScanner{rules: rules, maxContentLength: DefaultMaxContentLength}, nil
}

// NewDefault returns a scanner loaded with DefaultRules.
func NewDefault() *RegexScanner {
	s, err := NewRegexScanner(DefaultRules())
	if err != nil {
		// Built-in rules are static; failing here is a programming error.
		panic(err)
	}
	return s
}

var invisibleCharReplacer = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // BOM
	"\u00ad", "", // soft hyphen
	"\u2060", "", // word joiner
	"\u2061", "",
	"\u2062", "",
	"\u2063", "",
	"\u2064", "",
)

// normalize strips invisible characters and applies NFKC so full-width
// digits and similar compatibility forms match the ASCII rules.
func normalize(s string) string {
	s = invisibleCharReplacer.Replace(s)
	return norm.NFKC.String(s)
}

// Scan checks content against rules for the given stage.
func (s *RegexScanner) Scan(ctx context.Context, content string, opts ScanContext) (ScanResult, error) {
	if !opts.Stage.Valid() {
		return ScanResult{}, sxerr.Errorf(sxerr.CodeSecurityScannerFailure, "invalid scan stage %q", opts.Stage)
	}
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	content = normalize(content)

	if len(content) > s.maxContentLength {
		return ScanResult{Threat: true, Content: content, Matches: []Match{{
			Rule:     "content_too_large",
			Location: 0,
			Length:   len(content),
			Severity: SeverityHigh,
		}}}, nil
	}

	result := ScanResult{Content: content}
	for _, rule := range s.rules {
		if rule.Stage != opts.Stage {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			if rule.Check != nil && !rule.Check(content[loc[0]:loc[1]]) {
				continue
			}
			result.Threat = true
			result.Matches = append(result.Matches, Match{
				Rule:     rule.Name,
				Location: loc[0],
				Length:   loc[1] - loc[0],
				Severity: rule.Severity,
			})
		}
	}
	return result, nil
}
