// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/internal/security/scanner"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// DefaultDefenderTemperature keeps analyses close to deterministic.
const DefaultDefenderTemperature float32 = 0.2

// DefenderConfig configures a Defender.
type DefenderConfig struct {
	Router provider.Router
	// Model is a "provider/model" ref; empty uses the router default.
	Model       string
	Temperature *float32
	MaxTokens   int
	// Scanner, when set, flags real-looking personal data in the attacker
	// message and the defensive reply.
	Scanner scanner.Scanner
	// Mode decides what happens to a defensive reply that leaks data.
	// Defaults to flag.
	Mode   scanner.Mode
	Logger *slog.Logger
}

// Defender analyzes attacker messages and drafts the defensive reply.
type Defender struct {
	client      chatClient
	temperature float32
	maxTokens   int
	scanner     scanner.Scanner
	mode        scanner.Mode
	log         *slog.Logger
}

var _ simulation.Analyzer = (*Defender)(nil)

// NewDefender creates a Defender.
func NewDefender(cfg DefenderConfig) (*Defender, error) {
	if cfg.Router == nil {
		return nil, sxerr.New(sxerr.CodeAgentInvalidInput, "defender: router is required")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = scanner.ModeFlag
	}
	if !mode.Valid() {
		return nil, sxerr.Errorf(sxerr.CodeConfigValidateInvalidValue, "defender: invalid scanner mode %q", mode)
	}
	temp := DefaultDefenderTemperature
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	log := loggerOr(cfg.Logger).With("component", "defender")
	return &Defender{
		client:      chatClient{router: cfg.Router, model: cfg.Model, log: log},
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
		scanner:     cfg.Scanner,
		mode:        mode,
		log:         log,
	}, nil
}

// Analyze assesses latest and returns telemetry, a risk delta and the
// defender's reply.
func (d *Defender) Analyze(ctx context.Context, sessionID string, history []store.Message, latest string) (*simulation.Analysis, error) {
	temp := d.temperature
	comp, err := d.client.complete(ctx, provider.ChatRequest{
		SystemPrompt: defenderSystemPrompt,
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: defenderPrompt(history, latest)}},
		Options: provider.ChatOptions{
			Temperature:    &temp,
			MaxTokens:      d.maxTokens,
			ResponseFormat: provider.ResponseFormatJSON,
		},
	})
	if err != nil {
		return nil, sxerr.With(err, sxerr.FieldSessionID(sessionID))
	}

	res, err := ParseAnalysis(comp.Text)
	if err != nil {
		return nil, sxerr.With(err, sxerr.FieldSessionID(sessionID))
	}
	if len(res.Skipped) > 0 {
		d.log.Debug("skipped telemetry events", "session_id", sessionID, "types", res.Skipped)
	}

	analysis := res.Analysis
	if d.scanner != nil {
		if err := d.scan(ctx, sessionID, latest, analysis); err != nil {
			return nil, err
		}
	}
	return analysis, nil
}

// scan appends a privacy_violation event for each side that leaked data
// and applies the configured mode to the defensive reply.
func (d *Defender) scan(ctx context.Context, sessionID, latest string, a *simulation.Analysis) error {
	in, err := d.scanner.Scan(ctx, latest, scanner.ScanContext{Stage: scanner.StageAttacker, SessionID: sessionID})
	if err != nil {
		return sxerr.Wrap(err, sxerr.CodeSecurityScannerFailure, "scanning attacker message", sxerr.FieldSessionID(sessionID))
	}
	if in.Threat {
		a.Telemetry = append(a.Telemetry, violation(in, store.SenderAttacker))
		d.log.Warn("personal data in attacker message",
			"session_id", sessionID,
			"rules", in.Rules())
	}

	out, err := d.scanner.Scan(ctx, a.DefensiveResponse, scanner.ScanContext{Stage: scanner.StageDefender, SessionID: sessionID})
	if err != nil {
		return sxerr.Wrap(err, sxerr.CodeSecurityScannerFailure, "scanning defensive response", sxerr.FieldSessionID(sessionID))
	}
	if out.Threat {
		a.Telemetry = append(a.Telemetry, violation(out, store.SenderDefender))
		a.DefensiveResponse, err = scanner.ApplyMode(d.mode, a.DefensiveResponse, out)
		if err != nil {
			return err
		}
		d.log.Warn("personal data in defensive response",
			"session_id", sessionID,
			"rules", out.Rules(),
			"mode", d.mode)
	}
	return nil
}

func violation(r scanner.ScanResult, source store.Sender) store.TelemetryEvent {
	return store.TelemetryEvent{
		Type: store.EventPrivacyViolation,
		Data: store.PrivacyViolationData{
			Rule:     strings.Join(r.Rules(), ","),
			Severity: string(r.Highest()),
			Source:   source,
		},
	}
}
