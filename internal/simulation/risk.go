// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import "math"

// MaxRisk is the ceiling of a session risk score.
const MaxRisk = 100

// IncrementRisk applies a collaborator-reported delta to current. Negative,
// NaN and infinite deltas never lower the score and the result never exceeds
// MaxRisk. A positive maxPerTurn caps a single delta.
func IncrementRisk(current int, delta float64, maxPerTurn int) int {
	if math.IsNaN(delta) || delta < 0 {
		delta = 0
	}
	if maxPerTurn > 0 && delta > float64(maxPerTurn) {
		delta = float64(maxPerTurn)
	}
	if delta >= MaxRisk {
		return MaxRisk
	}
	next := current + int(math.Round(delta))
	if next > MaxRisk {
		return MaxRisk
	}
	return next
}
