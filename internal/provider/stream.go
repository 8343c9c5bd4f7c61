// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider

import (
	"context"
	"strings"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Completion is a fully drained chat stream.
type Completion struct {
	Text  string
	Usage Usage
}

// Collect drains a chat stream into a Completion. An error event, a
// cancelled context or a stream that closes without a done event all
// return an error; text received before the failure is discarded.
func Collect(ctx context.Context, events <-chan ChatEvent) (Completion, error) {
	var (
		b   strings.Builder
		out Completion
	)
	for {
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return Completion{}, sxerr.New(sxerr.CodeProviderResponseInvalid, "stream closed before completion")
			}
			switch ev.Type {
			case EventTypeTextDelta:
				b.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					out.Usage.InputTokens = max(out.Usage.InputTokens, ev.Usage.InputTokens)
					out.Usage.OutputTokens = max(out.Usage.OutputTokens, ev.Usage.OutputTokens)
					out.Usage.CacheReadTokens = max(out.Usage.CacheReadTokens, ev.Usage.CacheReadTokens)
				}
			case EventTypeError:
				return Completion{}, sxerr.New(sxerr.CodeProviderUpstreamFailure, ev.Error)
			case EventTypeDone:
				out.Text = b.String()
				return out, nil
			}
		}
	}
}

// Emit sends ev on ch unless ctx is done first. Provider stream goroutines
// use it so an abandoned consumer never blocks them.
func Emit(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
