// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. The key may contain '/'.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", sxerr.Errorf(sxerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", sxerr.Errorf(sxerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns the secret a keyring:// value points to. Other values are
// returned unchanged.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", sxerr.Wrapf(err, sxerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViper replaces every keyring:// string in v with the secret it
// references. All failures are reported together, naming the config key.
func ResolveViper(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, sxerr.Wrapf(err, sxerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}
	if len(errs) > 0 {
		return sxerr.Join(errs...)
	}
	return nil
}
