// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sentrixa-lab/sentrixa/internal/simulation"
	"github.com/sentrixa-lab/sentrixa/internal/store"
)

var (
	attackerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	defenderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

func senderLabel(s store.Sender) string {
	switch s {
	case store.SenderAttacker:
		return attackerStyle.Render("ATTACKER")
	case store.SenderDefender:
		return defenderStyle.Render("DEFENDER")
	default:
		return systemStyle.Render("SYSTEM")
	}
}

// renderEvent formats one engine event as a single transcript line.
// It returns "" for events that have nothing worth printing.
func renderEvent(ev simulation.Event) string {
	ts := ev.Time.Format("15:04:05")
	switch ev.Kind {
	case simulation.EventSessionStarted:
		return fmt.Sprintf("%s %s session %s started", ts, systemStyle.Render("●"), ev.SessionID)
	case simulation.EventMessage:
		if ev.Message == nil {
			return ""
		}
		return fmt.Sprintf("%s %s %s", ts, senderLabel(ev.Message.Sender), ev.Message.Content)
	case simulation.EventTelemetry:
		var parts []string
		for _, t := range ev.Telemetry {
			parts = append(parts, describeTelemetry(t))
		}
		if len(parts) == 0 {
			return ""
		}
		return fmt.Sprintf("%s %s %s", ts, systemStyle.Render("telemetry"), strings.Join(parts, "; "))
	case simulation.EventRisk:
		return fmt.Sprintf("%s %s %d/%d", ts, systemStyle.Render("risk"), ev.RiskScore, simulation.MaxRisk)
	case simulation.EventTurnFailed:
		if ev.Stage != "" {
			return fmt.Sprintf("%s %s turn failed (%s): %s", ts, alertStyle.Render("!"), ev.Stage, ev.Error)
		}
		return fmt.Sprintf("%s %s turn failed: %s", ts, alertStyle.Render("!"), ev.Error)
	case simulation.EventSessionTerminated:
		line := fmt.Sprintf("%s %s session terminated (%s, risk %d)", ts, alertStyle.Render("■"), ev.Reason, ev.RiskScore)
		if ev.Report != nil {
			line += " incident " + ev.Report.IncidentID
		}
		return line
	case simulation.EventReportExported:
		return fmt.Sprintf("%s %s report written to %s", ts, systemStyle.Render("export"), ev.Location)
	case simulation.EventExportFailed:
		return fmt.Sprintf("%s %s export failed: %s", ts, alertStyle.Render("!"), ev.Error)
	case simulation.EventReset:
		return fmt.Sprintf("%s %s lab reset", ts, systemStyle.Render("●"))
	}
	return ""
}

func describeTelemetry(t store.TelemetryEvent) string {
	switch d := t.Data.(type) {
	case store.DetectionData:
		line := "detected " + orDash(d.ScamCategory)
		if d.Confidence > 0 {
			line += fmt.Sprintf(" (%.0f%%)", d.Confidence*100)
		}
		if d.FakeLinkIndicator {
			line += ", fake link"
		}
		return line
	case store.BehavioralData:
		var signals []string
		for _, s := range []string{d.UrgencyLevel, d.PersuasionStyle, d.ImpersonationType} {
			if s != "" {
				signals = append(signals, s)
			}
		}
		if d.SyntheticPaymentToken != "" {
			signals = append(signals, "token "+d.SyntheticPaymentToken)
		}
		if len(signals) == 0 {
			return "no behavioral indicators"
		}
		return "indicators: " + strings.Join(signals, ", ")
	case store.PrivacyViolationData:
		return fmt.Sprintf("privacy violation %s (%s)", d.Rule, d.Severity)
	case store.SessionEndData:
		return "session end: " + d.Reason
	}
	return string(t.Type)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
