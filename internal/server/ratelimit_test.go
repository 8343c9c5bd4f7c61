// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/server"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimitConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.RateLimitConfig
		wantErr bool
	}{
		{"disabled", server.RateLimitConfig{}, false},
		{"valid", server.RateLimitConfig{RequestsPerSecond: 5, Burst: 10}, false},
		{"negative rate", server.RateLimitConfig{RequestsPerSecond: -1}, true},
		{"rate without burst", server.RateLimitConfig{RequestsPerSecond: 5}, true},
		{"negative visitors", server.RateLimitConfig{RequestsPerSecond: 5, Burst: 1, MaxVisitors: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, sxerr.CodeServerConfigInvalid, sxerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10000, cfg.MaxVisitors)
		})
	}
}

func TestLimiterRefillsOverTime(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	l := server.NewLimiter(server.RateLimitConfig{RequestsPerSecond: 2, Burst: 2}, clock.now)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")

	clock.advance(500 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	clock.advance(time.Hour)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "refill is capped at burst")
}

func TestLimiterSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	l := server.NewLimiter(server.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 2}, clock.now)

	l.Allow("stale")
	clock.advance(11 * time.Minute)
	for i := range 3 {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
		clock.advance(time.Second)
	}
	require.Equal(t, 4, l.Size())

	assert.Equal(t, 1, l.Sweep(), "oldest live visitor evicted by the cap")
	assert.Equal(t, 2, l.Size())
	assert.True(t, l.Allow("10.0.0.0"), "evicted visitor starts with a fresh bucket")
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{RequestsPerSecond: 0.25, Burst: 2}
	})

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("192.0.2.1:1001").Code)
	rec := send("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "ports share one bucket")
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, send("192.0.2.2:1000").Code)
}

func TestNewRejectsBadRateLimit(t *testing.T) {
	_, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Simulation: newFakeSim(),
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 1},
	})
	require.Error(t, err)
	assert.Equal(t, sxerr.CodeServerConfigInvalid, sxerr.CodeOf(err))
}
