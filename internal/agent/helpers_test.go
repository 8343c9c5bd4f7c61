// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/stretchr/testify/require"
)

// reply is one scripted provider response: either text or a stream error.
type reply struct {
	text string
	err  string
}

// scriptedProvider answers Chat calls from a script and records requests.
type scriptedProvider struct {
	name    string
	mu      sync.Mutex
	replies []reply
	reqs    []provider.ChatRequest
}

func (p *scriptedProvider) Name() string                   { return p.name }
func (p *scriptedProvider) Available(context.Context) bool { return true }
func (p *scriptedProvider) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}
func (p *scriptedProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: p.name}, nil
}
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)

	r := reply{text: ""}
	if len(p.replies) > 0 {
		r = p.replies[0]
		if len(p.replies) > 1 {
			p.replies = p.replies[1:]
		}
	}

	ch := make(chan provider.ChatEvent, 3)
	if r.err != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: r.err}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: r.text}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) requests() []provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ChatRequest(nil), p.reqs...)
}

// registryWith registers providers in order; the first is the default and
// the rest form the failover chain.
func registryWith(t *testing.T, provs ...*scriptedProvider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	var chain []string
	for i, p := range provs {
		reg.Register(p.name, p)
		ref := p.name + "/model-" + p.name
		if i == 0 {
			require.NoError(t, reg.SetDefault(ref))
			continue
		}
		chain = append(chain, ref)
	}
	require.NoError(t, reg.SetFailover(chain))
	return reg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
