// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Registry manages provider registration, lookup and routing with
// failover. It implements the Router interface.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model"
	failover   []string // ordered "provider/model" refs
}

var _ Router = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry, replacing any provider with
// the same name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, sxerr.New(
			sxerr.CodeProviderNotFound,
			"provider not found: "+name,
			sxerr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the "provider/model" reference used when a request
// names no model. The provider must already be registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked("SetDefault", ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// Default returns the default "provider/model" reference.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRef
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked("SetFailover", ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// MaxAttempts returns 1 (primary) + len(failover chain), the number of
// distinct candidates a caller can try for one request.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects a provider for modelName. An empty name or "default"
// resolves to the default ref.
func (r *Registry) Route(ctx context.Context, modelName string) (Provider, string, error) {
	return r.RouteExcluding(ctx, modelName, nil)
}

// RouteExcluding is like Route but skips providers named in exclude, so a
// caller retrying after a stream failure progresses down the chain even for
// providers that do not track health.
func (r *Registry) RouteExcluding(ctx context.Context, modelName string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(modelName)
	if err != nil {
		return nil, "", err
	}
	if ref == "" {
		return nil, "", sxerr.New(sxerr.CodeProviderNoDefault, "no default provider configured")
	}

	for _, candidate := range append([]string{ref}, r.failover...) {
		name, _ := ParseRef(candidate)
		if slices.Contains(exclude, name) {
			continue
		}
		if p, model, err := r.tryRef(ctx, candidate); err == nil {
			return p, model, nil
		}
	}

	return nil, "", sxerr.New(
		sxerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found",
	)
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return sxerr.Join(errs...)
	}
	return nil
}

func (r *Registry) checkRefLocked(op, ref string) error {
	name, _ := ParseRef(ref)
	if _, ok := r.providers[name]; !ok {
		return sxerr.New(
			sxerr.CodeProviderNotFound,
			op+": provider not registered: "+name,
			sxerr.FieldProvider(name),
		)
	}
	return nil
}

// resolveRef requires explicit model names to be provider-qualified.
// Caller must hold r.mu.
func (r *Registry) resolveRef(modelName string) (string, error) {
	if modelName != "" && modelName != "default" {
		if !strings.Contains(modelName, "/") {
			return "", sxerr.Errorf(
				sxerr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelName,
			)
		}
		return modelName, nil
	}
	return r.defaultRef, nil
}

// tryRef looks up the provider for ref and checks availability.
// Caller must hold r.mu.
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	name, model := ParseRef(ref)

	p, ok := r.providers[name]
	if !ok {
		return nil, "", sxerr.New(
			sxerr.CodeProviderNotFound,
			"provider not found: "+name,
			sxerr.FieldProvider(name),
		)
	}
	if !p.Available(ctx) {
		return nil, "", sxerr.New(
			sxerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+name,
			sxerr.FieldProvider(name),
		)
	}
	return p, model, nil
}

// ParseRef splits a "provider/model" reference on the first "/".
func ParseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
