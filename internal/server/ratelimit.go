// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

const (
	defaultMaxVisitors = 10000
	visitorStaleAfter  = 10 * time.Minute
	visitorSweepEvery  = 5 * time.Minute
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps tracked IPs; the least recently seen are evicted
	// on each sweep. Defaults to 10000.
	MaxVisitors int
}

// Validate checks the config and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return sxerr.Errorf(sxerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return sxerr.Errorf(sxerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return sxerr.Errorf(sxerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// limiter is a token bucket per client IP.
type limiter struct {
	rate        float64
	burst       float64
	maxVisitors int
	now         func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		rate:        cfg.RequestsPerSecond,
		burst:       float64(cfg.Burst),
		maxVisitors: cfg.MaxVisitors,
		now:         time.Now,
		visitors:    make(map[string]*visitor),
	}
}

// allow takes one token from ip's bucket.
func (l *limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: l.burst, lastSeen: now}
		l.visitors[ip] = v
	}
	v.tokens = min(l.burst, v.tokens+now.Sub(v.lastSeen).Seconds()*l.rate)
	v.lastSeen = now
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweep drops stale visitors and enforces the cap. Returns how many were
// evicted by the cap.
func (l *limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorStaleAfter {
			delete(l.visitors, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
	}
	if l.maxVisitors <= 0 || len(entries) <= l.maxVisitors {
		return 0
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
	evict := len(entries) - l.maxVisitors
	for _, e := range entries[:evict] {
		delete(l.visitors, e.ip)
	}
	return evict
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// rateLimitMiddleware enforces per-IP limits. It is a pass-through when
// cfg.RequestsPerSecond is zero. The sweep goroutine exits when done closes.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}, log *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)

	go func() {
		ticker := time.NewTicker(visitorSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := l.sweep(); n > 0 {
					log.Warn("rate limiter visitor cap enforced", "evicted", n, "max_visitors", cfg.MaxVisitors)
				}
			case <-done:
				return
			}
		}
	}()

	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/cfg.RequestsPerSecond))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				log.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port so that one client opening many connections
// shares a single bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
