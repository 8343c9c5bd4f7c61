// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// FingerprintDims is the length of an incident fingerprint.
const FingerprintDims = 48

// Fingerprint layout. The structured block encodes the summary and the
// behavioral signals (8 category buckets, 4 persuasion, 4 impersonation);
// the lexical block is a hashed bag of attacker words.
const (
	fpRisk = iota
	fpPrivacy
	fpFakeLink
	fpUrgency
	fpCategory
	fpPersuasion    = fpCategory + 8
	fpImpersonation = fpPersuasion + 4
	fpLexical       = fpImpersonation + 4
)

// SimilarIncident is one neighbour returned by a similarity search. Lower
// distances are closer; 0 is an identical fingerprint.
type SimilarIncident struct {
	Report   *IncidentReport `json:"report"`
	Distance float64         `json:"distance"`
}

// SimilarityIndex is implemented by archives that can rank reports by how
// closely their fingerprints match a given incident.
type SimilarityIndex interface {
	// Similar returns up to k reports nearest to the most recent report
	// with incidentID, excluding that report itself.
	Similar(ctx context.Context, incidentID string, k int) ([]SimilarIncident, error)
}

// Fingerprint maps a report to a fixed-length vector so that incidents with
// the same scam pattern land close together under euclidean distance.
func Fingerprint(r *IncidentReport) []float32 {
	v := make([]float32, FingerprintDims)
	if r == nil {
		return v
	}

	v[fpRisk] = float32(min(max(r.Summary.RiskScore, 0), 100)) / 100
	if r.Summary.PrivacyViolation {
		v[fpPrivacy] = 1
	}
	if r.BehavioralSignals.FakeLinkIndicator {
		v[fpFakeLink] = 1
	}
	v[fpUrgency] = urgencyWeight(r.BehavioralSignals.UrgencyLevel)
	setBucket(v, fpCategory, 8, r.Summary.ScamCategory)
	setBucket(v, fpPersuasion, 4, r.BehavioralSignals.PersuasionStyle)
	setBucket(v, fpImpersonation, 4, r.BehavioralSignals.ImpersonationType)

	lex := v[fpLexical:]
	for _, m := range r.Timeline {
		if m.Sender != SenderAttacker {
			continue
		}
		for _, w := range words(m.Content) {
			lex[bucket(w, len(lex))]++
		}
	}
	normalize(lex)
	return v
}

// Distance is the euclidean distance between two fingerprints.
func Distance(a, b []float32) float64 {
	var sum float64
	for i := range min(len(a), len(b)) {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func urgencyWeight(level string) float32 {
	switch strings.ToLower(level) {
	case "low":
		return 1.0 / 3
	case "medium", "moderate":
		return 2.0 / 3
	case "high", "critical":
		return 1
	}
	return 0
}

func setBucket(v []float32, offset, n int, label string) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "none" || label == "unknown" {
		return
	}
	v[offset+bucket(label, n)] = 1
}

func bucket(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
