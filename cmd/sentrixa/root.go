// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentrixa-lab/sentrixa/internal/config"
	"github.com/sentrixa-lab/sentrixa/internal/secrets"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// NewRootCmd creates the root sentrixa command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sentrixa",
		Short: "Sentrixa, a scam simulation lab",
		Long: "Sentrixa runs synthetic scam conversations between an attacker agent and a defender agent,\n" +
			"scores the risk turn by turn and archives an incident report for every terminated session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), viper.GetString("log.level"), viper.GetString("log.format")))
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")
	root.PersistentFlags().BoolP("verbose", "v", false, "shorthand for --log-level=debug")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newSimulateCmd(),
		newIncidentsCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings and the config file, so precedence is flag > env > file > defaults.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return sxerr.Errorf(sxerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset: with it, Viper also tries the bare
		// name, which collides with a ./sentrixa binary.
		v.SetConfigName("sentrixa")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sentrixa")
		v.AddConfigPath("/etc/sentrixa")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return sxerr.Errorf(sxerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return sxerr.Errorf(sxerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{"log.level": "log-level", "log.format": "log-format"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		v.Set("log.level", "debug")
	}
	return nil
}

// loadConfig resolves keyring:// references and decodes the validated config.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := secrets.ResolveViper(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
