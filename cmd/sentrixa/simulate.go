// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sentrixa-lab/sentrixa/internal/export"
	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// defaultExportWait bounds how long simulate waits for the automatic export
// after a session ends on its own.
const defaultExportWait = 5 * time.Second

// sessionRunner is the part of the engine that simulate drives.
type sessionRunner interface {
	Start(ctx context.Context) (simulation.Snapshot, error)
	Kill(ctx context.Context) (*store.IncidentReport, error)
	Subscribe() (<-chan simulation.Event, func())
}

type simulateOptions struct {
	// MaxDuration kills the session when it is still running. Zero waits
	// for the engine to terminate it.
	MaxDuration time.Duration
	// ExportWait is how long to wait for the automatic export event after
	// a non-manual termination. Zero returns immediately.
	ExportWait time.Duration
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one simulation session in the foreground",
		Long: `Start a session in-process and stream the conversation until the engine
terminates it (risk threshold or privacy violation), --max-duration elapses
or you interrupt it, which issues the kill switch.

The incident report is archived and, unless export.auto is false, written
to the export directory.`,
		RunE: runSimulate,
	}

	cmd.Flags().Bool("tui", false, "show an interactive monitor (k to kill, q to quit)")
	cmd.Flags().Duration("max-duration", 0, "kill the session after this long (0 = no limit)")
	cmd.Flags().StringP("output", "o", "", "print the final report as json or yaml")

	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	useTUI, _ := cmd.Flags().GetBool("tui")
	maxDuration, _ := cmd.Flags().GetDuration("max-duration")
	output, _ := cmd.Flags().GetString("output")

	var format export.Format
	if output != "" {
		f, err := export.ParseFormat(output)
		if err != nil {
			return err
		}
		format = f
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
	defer func() { _ = lab.Close() }()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := simulateOptions{MaxDuration: maxDuration}
	if cfg.Export.Auto {
		opts.ExportWait = defaultExportWait
	}

	var report *store.IncidentReport
	if useTUI {
		report, err = runMonitor(ctx, lab.Engine, opts)
	} else {
		report, err = runSimulation(ctx, lab.Engine, opts, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	if report != nil && format != "" {
		return export.Encode(cmd.OutOrStdout(), report, format)
	}
	return nil
}

// runSimulation starts a session and writes its transcript to w until the
// session ends. It returns the incident report.
func runSimulation(ctx context.Context, eng sessionRunner, opts simulateOptions, w io.Writer) (*store.IncidentReport, error) {
	events, cancel := eng.Subscribe()
	defer cancel()

	snap, err := eng.Start(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range snap.Messages {
		_, _ = fmt.Fprintf(w, "%s %s %s\n", m.Timestamp.Format("15:04:05"), senderLabel(m.Sender), m.Content)
	}

	var deadline <-chan time.Time
	if opts.MaxDuration > 0 {
		t := time.NewTimer(opts.MaxDuration)
		defer t.Stop()
		deadline = t.C
	}

	var (
		report     *store.IncidentReport
		exportWait <-chan time.Time
	)
	kill := func() (*store.IncidentReport, error) {
		r, err := eng.Kill(context.Background())
		if err != nil {
			if sxerr.HasCode(err, sxerr.CodeSimulationSessionInactive) && report != nil {
				return report, nil
			}
			return r, err
		}
		_, _ = fmt.Fprintf(w, "%s session killed, incident %s\n", alertStyle.Render("■"), r.IncidentID)
		return r, nil
	}

	for {
		select {
		case <-ctx.Done():
			return kill()
		case <-deadline:
			return kill()
		case <-exportWait:
			return report, nil
		case ev, ok := <-events:
			if !ok {
				if report != nil {
					return report, nil
				}
				return nil, sxerr.New(sxerr.CodeSimulationClosed, "event stream closed before the session ended")
			}
			if ev.SessionID != "" && ev.SessionID != snap.ID {
				continue
			}
			if ev.Kind == simulation.EventMessage && ev.Message != nil && ev.Message.Sender == store.SenderSystem &&
				containsMessage(snap.Messages, ev.Message.ID) {
				continue
			}
			if line := renderEvent(ev); line != "" {
				_, _ = fmt.Fprintln(w, line)
			}
			switch ev.Kind {
			case simulation.EventSessionTerminated:
				report = ev.Report
				if opts.ExportWait <= 0 || ev.Reason == simulation.ReasonManualKill {
					return report, nil
				}
				exportWait = time.After(opts.ExportWait)
				deadline = nil
			case simulation.EventReportExported, simulation.EventExportFailed:
				if report != nil {
					return report, nil
				}
			}
		}
	}
}

func containsMessage(msgs []store.Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

// runMonitor drives a session through the interactive monitor.
func runMonitor(ctx context.Context, eng sessionRunner, opts simulateOptions) (*store.IncidentReport, error) {
	events, cancel := eng.Subscribe()
	defer cancel()

	snap, err := eng.Start(ctx)
	if err != nil {
		return nil, err
	}

	m := newMonitorModel(snap, events, eng.Kill, opts.MaxDuration)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return nil, sxerr.Errorf(sxerr.CodeCLISetupFailure, "monitor: %w", err)
	}

	fm, ok := final.(monitorModel)
	if !ok || fm.report == nil {
		// Quit or interrupted while the session was still running.
		r, err := eng.Kill(context.Background())
		if err != nil && !sxerr.HasCode(err, sxerr.CodeSimulationSessionInactive) {
			return nil, err
		}
		return r, nil
	}
	return fm.report, nil
}
