// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package google

// Exposed for white-box tests.
var (
	ConvertMessages = convertMessages
	BuildConfig     = buildConfig
)
