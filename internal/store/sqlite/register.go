// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package sqlite

import (
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// BackendName is the storage.backend value that selects this package.
const BackendName = "sqlite"

func init() {
	store.RegisterBackend(BackendName, newIncidentStore)
}

func newIncidentStore(cfg *store.StorageConfig) (store.IncidentStore, error) {
	if cfg.Path == "" {
		return nil, sxerr.New(sxerr.CodeStoreInvalidInput, "sqlite backend requires storage.path")
	}
	return NewIncidentStore(cfg.Path)
}
