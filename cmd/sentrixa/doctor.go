// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/sentrixa-lab/sentrixa/internal/config"
	"github.com/sentrixa-lab/sentrixa/internal/provider"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// doctorHTTPClient is used for provider key checks. Tests replace it.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, provider API keys, storage, export directory disk space and the running server.",
		RunE:  runDoctor,
	}
	addServerFlags(cmd)
	cmd.Flags().Bool("offline", false, "skip checks that contact model providers")
	return cmd
}

type doctorCheck struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	offline, _ := cmd.Flags().GetBool("offline")
	ctx := commandContext(cmd)

	cfg, cfgErr := loadConfig()

	checks := []doctorCheck{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
	}
	if cfg != nil {
		checks = append(checks,
			doctorCheck{"Default model", func() string { return cfg.Models.Default }},
			doctorCheck{"Storage", func() string { return checkStorage(cfg) }},
			doctorCheck{"Disk Space", func() string { return checkDiskSpace(cfg.Export.Dir) }},
		)
		for _, name := range config.KnownProviders {
			pc := cfg.Providers[name]
			checks = append(checks, doctorCheck{
				"Provider " + name,
				func() string { return checkProvider(ctx, name, pc, offline) },
			})
		}
	}
	client := clientFromFlags(cmd)
	checks = append(checks, doctorCheck{"Server", func() string { return checkServer(ctx, client) }})

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("sentrixa %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(loadErr error) string {
	source := "using defaults (no config file found)"
	if f := viper.ConfigFileUsed(); f != "" {
		source = "loaded from " + f
		if insecure, err := config.InsecurePermissions(f); err == nil && insecure {
			source += " (warning: readable by group or others)"
		}
	}
	if loadErr != nil {
		return source + "; invalid: " + strings.ReplaceAll(loadErr.Error(), "\n", "; ")
	}
	return source
}

func checkStorage(cfg *config.Config) string {
	if cfg.Storage.Backend == "sqlite" {
		return "sqlite at " + cfg.Storage.Path
	}
	return cfg.Storage.Backend + " (reports are lost on restart)"
}

func checkProvider(ctx context.Context, name string, pc config.ProviderConfig, offline bool) string {
	if pc.APIKey == "" {
		return "not configured"
	}
	if offline {
		return "configured (not checked)"
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := provider.ValidateKey(ctx, doctorHTTPClient, name, pc.APIKey, pc.BaseURL); err != nil {
		if sxerr.HasCode(err, sxerr.CodeProviderKeyInvalid) {
			return "API key rejected"
		}
		return "check failed: " + err.Error()
	}
	return "ok"
}

func checkServer(ctx context.Context, c *labClient) string {
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/health", &body); err != nil {
		if sxerr.HasCode(err, sxerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'sentrixa start')", c.baseURL)
		}
		return "error: " + err.Error()
	}
	return fmt.Sprintf("%s at %s (version %s)", body.Status, c.baseURL, body.Version)
}

// checkDiskSpace reports free space where reports are exported, walking up
// to the nearest existing parent when the directory is not created yet.
func checkDiskSpace(dir string) string {
	path, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available at " + path
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
