// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/zalando/go-keyring"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// indexKey holds a JSON list of the keys stored for a service, since the
// OS keyrings cannot enumerate entries.
const indexKey = "::index"

// KeyringStore keeps secrets in the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	if service == "" || key == "" {
		return sxerr.Errorf(sxerr.CodeSecretInvalidInput, "secret %s: service and key must not be empty", op)
	}
	if key == indexKey {
		return sxerr.Errorf(sxerr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", sxerr.Errorf(sxerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return sxerr.Errorf(sxerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, sxerr.New(sxerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	keys, err := s.loadIndex(service)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "loading key index for %s", service)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, update func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = update(keys)

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "clearing key index for %s", service)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "saving key index for %s", service)
	}
	return nil
}
