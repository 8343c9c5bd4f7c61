// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sentrixa-lab/sentrixa/internal/agent"
	"github.com/sentrixa-lab/sentrixa/internal/config"
	"github.com/sentrixa-lab/sentrixa/internal/export"
	"github.com/sentrixa-lab/sentrixa/internal/provider"
	anthropicprov "github.com/sentrixa-lab/sentrixa/internal/provider/anthropic"
	googleprov "github.com/sentrixa-lab/sentrixa/internal/provider/google"
	openaiprov "github.com/sentrixa-lab/sentrixa/internal/provider/openai"
	"github.com/sentrixa-lab/sentrixa/internal/security/scanner"
	"github.com/sentrixa-lab/sentrixa/internal/server"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	_ "github.com/sentrixa-lab/sentrixa/internal/store/sqlite" // register sqlite backend
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Lab holds the wired simulation subsystems.
type Lab struct {
	Engine    *simulation.Engine
	Registry  *provider.Registry
	Incidents store.IncidentStore
	Exporter  *export.FileExporter
}

// providerFactory builds a provider from its config section.
type providerFactory func(pc config.ProviderConfig) (provider.Provider, error)

var providerFactories = map[string]providerFactory{
	provider.NameAnthropic: func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
	},
	provider.NameGoogle: func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
	},
	provider.NameOpenAI: func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
	},
	provider.NameOpenRouter: func(pc config.ProviderConfig) (provider.Provider, error) {
		base := pc.BaseURL
		if base == "" {
			base = provider.DefaultBaseURL(provider.NameOpenRouter)
		}
		return openaiprov.New(openaiprov.Config{Name: provider.NameOpenRouter, APIKey: pc.APIKey, BaseURL: base})
	},
}

// WireLab creates every subsystem the engine needs and wires them together.
func WireLab(cfg *config.Config, log *slog.Logger) (*Lab, error) {
	if log == nil {
		log = slog.Default()
	}

	reg := provider.NewRegistry()
	if err := registerProviders(cfg, reg, log); err != nil {
		return nil, err
	}
	if len(reg.Names()) == 0 {
		return nil, sxerr.New(sxerr.CodeCLISetupFailure,
			"no model provider has an API key; run 'sentrixa init' or set SENTRIXA_PROVIDERS_<NAME>_API_KEY")
	}
	if err := reg.SetDefault(cfg.Models.Default); err != nil {
		return nil, sxerr.Wrapf(err, sxerr.CodeCLISetupFailure, "setting default model %s", cfg.Models.Default)
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			return nil, sxerr.Wrap(err, sxerr.CodeCLISetupFailure, "setting failover chain")
		}
	}

	lab, err := wireWithRouter(cfg, reg, log)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	lab.Registry = reg
	return lab, nil
}

// wireWithRouter builds the agents, archive, exporter and engine on top of
// an already configured router.
func wireWithRouter(cfg *config.Config, router provider.Router, log *slog.Logger) (*Lab, error) {
	mode, err := scanner.ParseMode(cfg.Scanner.Mode)
	if err != nil {
		return nil, err
	}
	var sc scanner.Scanner
	if cfg.Scanner.Enabled {
		sc = scanner.NewDefault()
	}

	attackerTemp := float32(cfg.Agents.Attacker.Temperature)
	attacker, err := agent.NewAttacker(agent.AttackerConfig{
		Router:      router,
		Model:       cfg.Agents.Attacker.Model,
		Temperature: &attackerTemp,
		MaxTokens:   cfg.Agents.Attacker.MaxTokens,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	defenderTemp := float32(cfg.Agents.Defender.Temperature)
	defender, err := agent.NewDefender(agent.DefenderConfig{
		Router:      router,
		Model:       cfg.Agents.Defender.Model,
		Temperature: &defenderTemp,
		MaxTokens:   cfg.Agents.Defender.MaxTokens,
		Scanner:     sc,
		Mode:        mode,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(export.Config{Dir: cfg.Export.Dir, Format: format, Logger: log})
	if err != nil {
		return nil, err
	}

	incidents, err := store.NewIncidentStore(&store.StorageConfig{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
	})
	if err != nil {
		return nil, sxerr.Wrapf(err, sxerr.CodeCLISetupFailure, "opening %s incident store", cfg.Storage.Backend)
	}

	engine, err := simulation.New(simulation.Config{
		Generator:           attacker,
		Analyzer:            defender,
		Exporter:            exporter,
		Incidents:           incidents,
		Logger:              log,
		TurnDelay:           cfg.Simulation.TurnDelay,
		GraceDelay:          cfg.Simulation.GraceDelay,
		RiskThreshold:       cfg.Simulation.RiskThreshold,
		MaxRiskPerTurn:      cfg.Simulation.MaxRiskPerTurn,
		CollaboratorTimeout: cfg.Simulation.CollaboratorTimeout,
		DisableAutoExport:   !cfg.Export.Auto,
	})
	if err != nil {
		_ = incidents.Close()
		return nil, err
	}

	return &Lab{
		Engine:    engine,
		Incidents: incidents,
		Exporter:  exporter,
	}, nil
}

// registerProviders registers every provider that has an API key.
func registerProviders(cfg *config.Config, reg *provider.Registry, log *slog.Logger) error {
	for _, name := range cfg.ConfiguredProviders() {
		factory, ok := providerFactories[name]
		if !ok {
			log.Warn("skipping unknown provider", "provider", name)
			continue
		}
		p, err := factory(cfg.Providers[name])
		if err != nil {
			return sxerr.Wrapf(err, sxerr.CodeCLISetupFailure, "creating %s provider", name)
		}
		reg.Register(name, p)
		log.Debug("registered provider", "provider", name)
	}
	return nil
}

// Close releases the engine, the archive and the providers.
func (l *Lab) Close() error {
	var errs []error
	if l.Engine != nil {
		errs = append(errs, l.Engine.Close())
	}
	if l.Incidents != nil {
		errs = append(errs, l.Incidents.Close())
	}
	if l.Registry != nil {
		errs = append(errs, l.Registry.Close())
	}
	return errors.Join(errs...)
}

// Providers implements server.ProviderService.
func (l *Lab) Providers(_ context.Context) []server.ProviderHealth {
	if l.Registry == nil {
		return nil
	}
	defaultName, _ := provider.ParseRef(l.Registry.Default())
	var out []server.ProviderHealth
	for _, name := range l.Registry.Names() {
		p, err := l.Registry.Get(name)
		if err != nil {
			continue
		}
		ph := server.ProviderHealth{Name: name, Default: name == defaultName}
		if mr, ok := p.(provider.MetricsReporter); ok {
			ph.Metrics = mr.Metrics()
		} else {
			ph.Available = true
		}
		out = append(out, ph)
	}
	return out
}

var _ server.ProviderService = (*Lab)(nil)
