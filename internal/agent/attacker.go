// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent

import (
	"context"
	"log/slog"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// DefaultAttackerTemperature keeps attacker lines varied between sessions.
const DefaultAttackerTemperature float32 = 0.9

// AttackerConfig configures an Attacker.
type AttackerConfig struct {
	Router provider.Router
	// Model is a "provider/model" ref; empty uses the router default.
	Model       string
	Temperature *float32
	MaxTokens   int
	Logger      *slog.Logger
}

// Attacker generates synthetic scam messages.
type Attacker struct {
	client      chatClient
	temperature float32
	maxTokens   int
	log         *slog.Logger
}

var _ simulation.Generator = (*Attacker)(nil)

// NewAttacker creates an Attacker.
func NewAttacker(cfg AttackerConfig) (*Attacker, error) {
	if cfg.Router == nil {
		return nil, sxerr.New(sxerr.CodeAgentInvalidInput, "attacker: router is required")
	}
	temp := DefaultAttackerTemperature
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	log := loggerOr(cfg.Logger).With("component", "attacker")
	return &Attacker{
		client:      chatClient{router: cfg.Router, model: cfg.Model, log: log},
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
		log:         log,
	}, nil
}

// Generate returns the next attacker line. It may return "" when the
// model produced no text.
func (a *Attacker) Generate(ctx context.Context, sessionID string, history []store.Message) (string, error) {
	temp := a.temperature
	comp, err := a.client.complete(ctx, provider.ChatRequest{
		SystemPrompt: attackerSystemPrompt,
		Messages:     attackerMessages(history),
		Options: provider.ChatOptions{
			Temperature: &temp,
			MaxTokens:   a.maxTokens,
		},
	})
	if err != nil {
		return "", sxerr.With(err, sxerr.FieldSessionID(sessionID))
	}

	a.log.Debug("attacker line generated",
		"session_id", sessionID,
		"turn", len(history),
		"output_tokens", comp.Usage.OutputTokens)
	return cleanAttackerText(comp.Text), nil
}
