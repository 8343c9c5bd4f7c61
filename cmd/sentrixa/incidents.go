// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sentrixa-lab/sentrixa/internal/export"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

func newIncidentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "incidents",
		Aliases: []string{"incident"},
		Short:   "Browse the incident archive of a running server",
	}

	cmd.AddCommand(
		newIncidentsListCmd(),
		newIncidentsShowCmd(),
		newIncidentsExportCmd(),
		newIncidentsSimilarCmd(),
		newIncidentsClearCmd(),
	)
	return cmd
}

func newIncidentsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived incident reports, most recent first",
		Args:  cobra.NoArgs,
		RunE:  runIncidentsList,
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("query", "q", "", "filter by incident id or scam category")
	cmd.Flags().Int("limit", 50, "maximum number of incidents (0 = all)")
	cmd.Flags().Int("offset", 0, "number of incidents to skip")
	return cmd
}

func newIncidentsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <incident-id>",
		Short: "Print one incident report",
		Args:  cobra.ExactArgs(1),
		RunE:  runIncidentsShow,
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("output", "o", "json", "output format (json, yaml)")
	return cmd
}

func newIncidentsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <incident-id>",
		Short: "Write an incident report to the server's export directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runIncidentsExport,
	}
	addServerFlags(cmd)
	return cmd
}

func newIncidentsSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <incident-id>",
		Short: "List archived incidents whose behavior resembles the given one",
		Args:  cobra.ExactArgs(1),
		RunE:  runIncidentsSimilar,
	}
	addServerFlags(cmd)
	cmd.Flags().IntP("neighbours", "k", 5, "number of neighbours (1-50)")
	return cmd
}

func newIncidentsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived incident and reset the live session",
		Args:  cobra.NoArgs,
		RunE:  runIncidentsClear,
	}
	addServerFlags(cmd)
	cmd.Flags().Bool("yes", false, "confirm the reset")
	return cmd
}

func runIncidentsList(cmd *cobra.Command, _ []string) error {
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var body struct {
		Incidents []*store.IncidentReport `json:"incidents"`
		Count     int                     `json:"count"`
	}
	if err := clientFromFlags(cmd).getJSON(commandContext(cmd), "/api/v1/incidents?"+params.Encode(), &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Incidents) == 0 {
		_, _ = fmt.Fprintln(out, "No incidents archived.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INCIDENT\tCATEGORY\tRISK\tACTION\tGENERATED")
	for _, r := range body.Incidents {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.IncidentID,
			r.Summary.ScamCategory,
			r.Summary.RiskScore,
			r.Summary.ContainmentAction,
			r.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return tw.Flush()
}

func runIncidentsShow(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := export.ParseFormat(output)
	if err != nil {
		return err
	}

	var report store.IncidentReport
	if err := clientFromFlags(cmd).getJSON(commandContext(cmd), "/api/v1/incidents/"+url.PathEscape(args[0]), &report); err != nil {
		return err
	}
	return export.Encode(cmd.OutOrStdout(), &report, format)
}

func runIncidentsExport(cmd *cobra.Command, args []string) error {
	var body struct {
		IncidentID string `json:"incident_id"`
		Path       string `json:"path"`
	}
	if err := clientFromFlags(cmd).postJSON(commandContext(cmd), "/api/v1/incidents/"+url.PathEscape(args[0])+"/export", nil, &body); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", body.IncidentID, body.Path)
	return nil
}

func runIncidentsSimilar(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("neighbours")
	if k < 1 || k > 50 {
		return sxerr.Errorf(sxerr.CodeCLIInputInvalid, "-k must be between 1 and 50, got %d", k)
	}

	var body struct {
		IncidentID string                  `json:"incident_id"`
		Similar    []store.SimilarIncident `json:"similar"`
	}
	path := "/api/v1/incidents/" + url.PathEscape(args[0]) + "/similar?k=" + strconv.Itoa(k)
	if err := clientFromFlags(cmd).getJSON(commandContext(cmd), path, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Similar) == 0 {
		_, _ = fmt.Fprintf(out, "No incidents resemble %s.\n", body.IncidentID)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INCIDENT\tCATEGORY\tRISK\tDISTANCE")
	for _, s := range body.Similar {
		if s.Report == nil {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\n",
			s.Report.IncidentID,
			s.Report.Summary.ScamCategory,
			s.Report.Summary.RiskScore,
			s.Distance,
		)
	}
	return tw.Flush()
}

func runIncidentsClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return sxerr.New(sxerr.CodeCLIInputInvalid, "refusing to clear the archive without --yes")
	}
	if err := clientFromFlags(cmd).delete(commandContext(cmd), "/api/v1/incidents"); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Incident archive cleared.")
	return nil
}
