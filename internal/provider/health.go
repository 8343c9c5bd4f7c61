// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider

import (
	"sync"
	"time"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
)

// HealthTracker records provider failures. A provider is healthy until a
// failure, then unavailable for a cooldown, then eligible again.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

// DefaultHealthCooldown is how long a failed provider sits out of routing.
const DefaultHealthCooldown = 30 * time.Second

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, sxerr.Errorf(sxerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// MustHealthTracker is NewHealthTracker for the default cooldown, which is
// always valid.
func MustHealthTracker() *HealthTracker {
	h, err := NewHealthTracker(DefaultHealthCooldown)
	if err != nil {
		panic(err)
	}
	return h
}

// Caller must hold h.mu.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy reports whether the provider is healthy or its cooldown elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

// RecordSuccess marks the provider as healthy.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the provider as unhealthy and counts the failure.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a snapshot of the tracker state.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		FailureCount: h.failureCount,
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}

// MetricsReporter is implemented by providers exposing health metrics.
type MetricsReporter interface {
	Metrics() health.Metrics
}
