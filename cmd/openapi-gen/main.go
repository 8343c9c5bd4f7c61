// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sentrixa-lab/sentrixa/internal/server"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI document huma builds from the handler types.
func generateSpec() ([]byte, error) {
	// The engine is never started; its collaborators only satisfy New.
	engine, err := simulation.New(simulation.Config{
		Generator: simulation.GeneratorFunc(func(context.Context, string, []store.Message) (string, error) {
			return "", nil
		}),
		Analyzer: simulation.AnalyzerFunc(func(context.Context, string, []store.Message, string) (*simulation.Analysis, error) {
			return &simulation.Analysis{}, nil
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeCLISetupFailure, "creating engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Simulation: engine,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, sxerr.Errorf(sxerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
