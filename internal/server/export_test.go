// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import "time"

// Limiter exposes the per-IP token bucket for tests.
type Limiter = limiter

func NewLimiter(cfg RateLimitConfig, now func() time.Time) *Limiter {
	l := newLimiter(cfg)
	l.now = now
	return l
}

func (l *limiter) Allow(ip string) bool { return l.allow(ip) }
func (l *limiter) Sweep() int           { return l.sweep() }
func (l *limiter) Size() int            { return l.size() }

func TokenMatches(tokens []string, candidate string) bool {
	return newTokenSet(tokens).match(candidate)
}
