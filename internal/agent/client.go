// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package agent implements the attacker and defender roles on top of the
// model providers.
package agent

import (
	"context"
	"log/slog"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// failoverRouter is implemented by routers that can skip providers which
// already failed within one request, such as *provider.Registry.
type failoverRouter interface {
	RouteExcluding(ctx context.Context, modelName string, exclude []string) (provider.Provider, string, error)
	MaxAttempts() int
}

// chatClient sends one chat request, walking the failover chain when a
// provider fails mid-stream.
type chatClient struct {
	router provider.Router
	model  string
	log    *slog.Logger
}

func (c *chatClient) complete(ctx context.Context, req provider.ChatRequest) (provider.Completion, error) {
	attempts := 1
	fr, canExclude := c.router.(failoverRouter)
	if canExclude {
		attempts = max(1, fr.MaxAttempts())
	}

	var (
		tried   []string
		lastErr error
	)
	for attempt := range attempts {
		var (
			prov  provider.Provider
			model string
			err   error
		)
		if canExclude {
			prov, model, err = fr.RouteExcluding(ctx, c.model, tried)
		} else {
			prov, model, err = c.router.Route(ctx, c.model)
		}
		if err != nil {
			if lastErr != nil {
				return provider.Completion{}, sxerr.Join(lastErr, err)
			}
			return provider.Completion{}, err
		}

		req.Model = model
		comp, err := c.call(ctx, prov, req)
		if err == nil {
			return comp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return provider.Completion{}, ctxErr
		}

		c.log.Warn("provider call failed",
			"provider", prov.Name(),
			"model", model,
			"attempt", attempt+1,
			"error", err)
		tried = append(tried, prov.Name())
		lastErr = err
	}
	return provider.Completion{}, lastErr
}

func (c *chatClient) call(ctx context.Context, prov provider.Provider, req provider.ChatRequest) (provider.Completion, error) {
	events, err := prov.Chat(ctx, req)
	if err != nil {
		return provider.Completion{}, sxerr.Wrap(err, sxerr.CodeProviderUpstreamFailure,
			"chat call failed", sxerr.FieldProvider(prov.Name()))
	}
	comp, err := provider.Collect(ctx, events)
	hr, tracksHealth := prov.(provider.HealthReporter)
	if err != nil {
		// A cancelled caller says nothing about the provider.
		if tracksHealth && ctx.Err() == nil {
			hr.RecordFailure()
		}
		return provider.Completion{}, sxerr.With(err, sxerr.FieldProvider(prov.Name()))
	}
	if tracksHealth {
		hr.RecordSuccess()
	}
	return comp, nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
