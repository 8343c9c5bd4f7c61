// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentrixa-lab/sentrixa/internal/secrets"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. Tests substitute a mock.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store, list and delete secrets kept under the sentrixa service in the operating system keyring.\n" +
			"Reference them from the config as keyring://sentrixa/<name>.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin",
		Long: "Read the secret from the first line of stdin and store it.\n" +
			"Use --provider to store a model provider API key under its conventional name.",
		Args: cobra.RangeArgs(0, 1),
		RunE: runSecretSet,
	}
	cmd.Flags().String("provider", "", "store the API key of this provider (e.g. google)")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	prov, _ := cmd.Flags().GetString("provider")
	var name string
	switch {
	case prov != "" && len(args) == 0:
		name = secrets.ProviderKeyName(prov)
	case prov == "" && len(args) == 1:
		name = args[0]
	default:
		return sxerr.New(sxerr.CodeCLIInputInvalid, "pass either a secret name or --provider")
	}

	value, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if err := secretStoreFactory().Store(secrets.ServiceName, name, value); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\nReference it as keyring://%s/%s\n",
		name, secrets.ServiceName, name)
	return nil
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", sxerr.Errorf(sxerr.CodeCLIInputInvalid, "reading secret from stdin: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", sxerr.New(sxerr.CodeCLIInputInvalid, "secret must not be empty")
	}
	return value, nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.ServiceName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.ServiceName, name); err != nil {
		if sxerr.HasCode(err, sxerr.CodeSecretNotFound) {
			return sxerr.Errorf(sxerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
