// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sentrixa-lab/sentrixa/internal/secrets"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// isolate points HOME at a temp dir and resets the global viper so root
// commands never read or bootstrap a real user config.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

// runRoot executes the root command with args and returns combined output.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// mockSecretStore is an in-memory secrets.Store.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", sxerr.Errorf(sxerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return sxerr.Errorf(sxerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func useSecretStore(t *testing.T, s secrets.Store) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return s }
	t.Cleanup(func() { secretStoreFactory = orig })
}

func sampleReport(id string) *store.IncidentReport {
	return &store.IncidentReport{
		IncidentID:  id,
		SessionID:   "sess_" + id,
		Environment: "SIMULATION_LAB",
		Summary: store.Summary{
			ScamCategory:      "bank_impersonation",
			RiskScore:         86,
			ContainmentAction: "SESSION_TERMINATED",
		},
		GeneratedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}
