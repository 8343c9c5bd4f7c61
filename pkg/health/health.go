// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package health

import "time"

// Metrics is a point-in-time view of a model provider's health, as served
// by the status endpoint and `sentrixa doctor`.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}
