// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend string // "memory" (default) or "sqlite".
	Path    string // Database file for file-backed backends.
}
