// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show lab status",
		Long:  "Query a running server for the lab status, the archive size and the live session.",
		RunE:  runStatus,
	}
	addServerFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	client := clientFromFlags(cmd)

	var view simulation.StatusView
	if err := client.getJSON(commandContext(cmd), "/api/v1/status", &view); err != nil {
		if sxerr.HasCode(err, sxerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", client.baseURL)
			return nil
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Lab status:  %s\n", view.Status)
	_, _ = fmt.Fprintf(out, "Incidents:   %d\n", view.Reports)
	if view.SessionID == "" {
		_, _ = fmt.Fprintf(out, "Session:     none (%s)\n", view.SessionStatus)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Session:     %s (%s)\n", view.SessionID, view.SessionStatus)
	_, _ = fmt.Fprintf(out, "Risk score:  %d/%d\n", view.RiskScore, simulation.MaxRisk)
	return nil
}
