// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package openai

var BuildParams = buildParams
