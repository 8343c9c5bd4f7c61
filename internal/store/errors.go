// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested incident does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase is the catch-all for unexpected backend failures.
	ErrDatabase = errors.New("database error")
)
