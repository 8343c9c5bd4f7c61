// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package store

import (
	"sort"
	"sync"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// BackendMemory is the default, process-lifetime archive.
const BackendMemory = "memory"

// IncidentStoreFactory opens an incident archive for the given config.
type IncidentStoreFactory func(cfg *StorageConfig) (IncidentStore, error)

var (
	factories = map[string]IncidentStoreFactory{
		BackendMemory: func(*StorageConfig) (IncidentStore, error) { return NewMemoryIncidentStore(), nil },
	}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f IncidentStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return BackendMemory
	}
	return cfg.Backend
}

// NewIncidentStore opens the archive selected by cfg.
func NewIncidentStore(cfg *StorageConfig) (IncidentStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sxerr.Errorf(sxerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}
	if cfg == nil {
		cfg = &StorageConfig{Backend: backend}
	}
	return factory(cfg)
}
