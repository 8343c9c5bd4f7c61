// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package anthropic

var BuildParams = buildParams
