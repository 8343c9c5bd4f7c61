// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider_test

import (
	"context"
	"testing"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stream(events ...provider.ChatEvent) <-chan provider.ChatEvent {
	ch := make(chan provider.ChatEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestCollect_ConcatenatesDeltas(t *testing.T) {
	c, err := provider.Collect(context.Background(), stream(
		provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "Your parcel "},
		provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 12}},
		provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "is held."},
		provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 12, OutputTokens: 7}},
		provider.ChatEvent{Type: provider.EventTypeDone},
	))
	require.NoError(t, err)
	assert.Equal(t, "Your parcel is held.", c.Text)
	assert.Equal(t, provider.Usage{InputTokens: 12, OutputTokens: 7}, c.Usage)
}

func TestCollect_ErrorEvent(t *testing.T) {
	_, err := provider.Collect(context.Background(), stream(
		provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "partial"},
		provider.ChatEvent{Type: provider.EventTypeError, Error: "503 overloaded"},
	))
	require.Error(t, err)
	assert.True(t, sxerr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "503 overloaded")
}

func TestCollect_TruncatedStream(t *testing.T) {
	_, err := provider.Collect(context.Background(), stream(
		provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "partial"},
	))
	require.Error(t, err)
	assert.True(t, sxerr.HasCode(err, sxerr.CodeProviderResponseInvalid))
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := provider.Collect(ctx, make(chan provider.ChatEvent))
	assert.ErrorIs(t, err, context.Canceled)
}
