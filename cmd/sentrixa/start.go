// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentrixa-lab/sentrixa/internal/server"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the simulation lab server",
		Long:  "Load configuration, wire the model providers and the simulation engine, and serve the HTTP API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		viper.Set("server.listen", f.Value.String())
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := slog.Default()
	lab, err := WireLab(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := lab.Close(); err != nil {
			log.Warn("closing lab", "error", err)
		}
	}()

	if len(cfg.Server.Tokens) == 0 {
		log.Warn("authentication disabled: no server.tokens configured")
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		Tokens:      cfg.Server.Tokens,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RPS,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Simulation: lab.Engine,
		Providers:  lab,
		Version:    version,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting sentrixa",
		"listen", cfg.Server.Listen,
		"default_model", cfg.Models.Default,
		"providers", cfg.ConfiguredProviders(),
		"storage", cfg.Storage.Backend,
		"export_dir", lab.Exporter.Dir(),
	)
	return srv.Start(ctx)
}

// commandContext returns cmd's context, or Background when the command was
// run with Execute instead of ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
