// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package secrets stores provider API keys outside the config file and
// resolves keyring:// references to them.
package secrets

// ServiceName is the keyring service sentrixa stores its keys under.
const ServiceName = "sentrixa"

// Store holds named secrets grouped by service.
type Store interface {
	// Store saves value under service/key, replacing any previous value.
	Store(service, key, value string) error
	// Retrieve returns the value for service/key. A missing secret yields
	// an error carrying secret.get.not_found.
	Retrieve(service, key string) (string, error)
	// Delete removes service/key. A missing secret yields
	// secret.get.not_found.
	Delete(service, key string) error
	// List returns the key names stored under service, sorted.
	List(service string) ([]string, error)
}

// ProviderKeyName is the key a provider's API key is stored under.
func ProviderKeyName(provider string) string {
	return provider + "-api-key"
}

// ProviderKeyURI is the config reference for a provider's stored API key.
func ProviderKeyURI(provider string) string {
	return keyringScheme + ServiceName + "/" + ProviderKeyName(provider)
}
