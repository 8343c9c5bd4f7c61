// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

// SystemStatus summarises lab pressure for dashboards.
type SystemStatus string

const (
	SystemStable   SystemStatus = "STABLE"
	SystemElevated SystemStatus = "ELEVATED"
)

// Thresholds above which the lab reports ELEVATED.
const (
	ElevatedReportCount = 5
	ElevatedRiskScore   = 60
)

// ComputeStatus is ELEVATED when more than ElevatedReportCount incidents are
// archived or the live risk exceeds ElevatedRiskScore.
func ComputeStatus(reportCount, riskScore int) SystemStatus {
	if reportCount > ElevatedReportCount || riskScore > ElevatedRiskScore {
		return SystemElevated
	}
	return SystemStable
}
