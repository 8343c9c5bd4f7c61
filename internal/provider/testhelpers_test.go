// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider_test

import (
	"context"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
)

// mockProvider is a scripted provider.Provider for registry tests.
type mockProvider struct {
	name      string
	available bool
	closeErr  error
	closed    bool
}

func newMockProvider(name string, available bool) *mockProvider {
	return &mockProvider{name: name, available: available}
}

func (m *mockProvider) Name() string                       { return m.name }
func (m *mockProvider) Available(context.Context) bool     { return m.available }
func (m *mockProvider) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (m *mockProvider) Chat(context.Context, provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ch := make(chan provider.ChatEvent, 3)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "hello"}
	ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: m.available, Provider: m.name, Message: "ok"}, nil
}

func (m *mockProvider) Close() error {
	m.closed = true
	return m.closeErr
}
