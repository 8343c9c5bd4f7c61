// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sentrixa-lab/sentrixa/internal/config"
	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/internal/secrets"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// initHTTPClient is used for provider key validation. Tests replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepDone
	stepError
)

// initResult holds what the wizard collected.
type initResult struct {
	Provider string
	APIKey   string
}

type (
	validationSuccessMsg struct{}
	validationErrorMsg   struct{ err error }
	configWrittenMsg     struct{ path string }
)

var selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipValidation bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.step {
		case stepProvider:
			return m.handleProviderKey(msg)
		case stepAPIKey:
			return m.handleAPIKeyInput(msg)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(config.KnownProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = config.KnownProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		if m.skipValidation {
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(m.result.Provider, key),
		)
	case "esc":
		m.step = stepProvider
		m.validationErr = ""
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Sentrixa Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Choose the model provider for the attacker and defender agents") + "\n\n")
		for i, p := range config.KnownProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+p) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+p) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render(m.result.Provider+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  esc to go back  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + m.result.Provider + " API key…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("sentrixa simulate") + " for a session in the terminal, or " +
			promptStyle.Render("sentrixa start") + " to serve the API.\n")
		b.WriteString("Run " + promptStyle.Render("sentrixa doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func validateProviderKeyCmd(name, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, name, key, ""); err != nil {
			return validationErrorMsg{err: err}
		}
		return validationSuccessMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// defaultModelForProvider returns the model the generated config starts with.
func defaultModelForProvider(p string) string {
	switch p {
	case provider.NameAnthropic:
		return "anthropic/claude-sonnet-4-5"
	case provider.NameOpenAI:
		return "openai/gpt-4o-mini"
	case provider.NameGoogle:
		return "google/gemini-2.5-flash"
	case provider.NameOpenRouter:
		return "openrouter/google/gemini-2.5-flash"
	default:
		return p + "/default"
	}
}

// GenerateConfigYAML produces a minimal sentrixa.yaml. The API key is
// referenced by keyring URI; the secret itself never lands in the file.
func GenerateConfigYAML(result initResult, dbPath string) string {
	var sb strings.Builder
	sb.WriteString("# Sentrixa configuration, generated by `sentrixa init`.\n")
	sb.WriteString("# See `sentrixa doctor` to check it.\n\n")

	sb.WriteString("server:\n")
	sb.WriteString("  listen: \"127.0.0.1:8480\"\n\n")

	sb.WriteString("models:\n")
	fmt.Fprintf(&sb, "  default: %q\n\n", defaultModelForProvider(result.Provider))

	sb.WriteString("providers:\n")
	fmt.Fprintf(&sb, "  %s:\n", result.Provider)
	fmt.Fprintf(&sb, "    api_key: %q\n\n", secrets.ProviderKeyURI(result.Provider))

	sb.WriteString("export:\n")
	sb.WriteString("  dir: \"./incidents\"\n")
	sb.WriteString("  format: json\n")
	sb.WriteString("  auto: true\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString("  backend: sqlite\n")
	fmt.Fprintf(&sb, "  path: %q\n", dbPath)

	return sb.String()
}

// storeSecretAndWriteConfig saves the API key to the keyring and writes the
// config file. An existing file is only replaced when forceOverwrite is set.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", sxerr.Errorf(sxerr.CodeCLIInputInvalid,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	// The key is stored first; a failed config write leaves an orphaned
	// keyring entry that the next successful run overwrites.
	if err := store.Store(secrets.ServiceName, secrets.ProviderKeyName(result.Provider), result.APIKey); err != nil {
		return "", sxerr.Wrapf(err, sxerr.CodeSecretStoreFailure, "storing %s API key", result.Provider)
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", sxerr.Errorf(sxerr.CodeCLISetupFailure, "creating config directory %s: %w", dir, err)
	}
	yaml := GenerateConfigYAML(result, filepath.Join(dir, "incidents.db"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		return "", sxerr.Errorf(sxerr.CodeCLISetupFailure, "writing config to %s: %w", cfgPath, err)
	}
	return cfgPath, nil
}

// configPathForWrite returns where init writes the config. Tests override it.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive wizard that picks a model provider, validates its API key,
stores the key in the OS keyring and writes ~/.config/sentrixa/sentrixa.yaml.

The config references the key as a keyring:// URI. No secret is written in
plain text.

After completion, run:
  sentrixa simulate   run a session in the terminal
  sentrixa start      serve the HTTP API
  sentrixa doctor     verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-validation", false, "store the key without contacting the provider")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"sentrixa init requires an interactive terminal.\n"+
				"To configure sentrixa non-interactively, use 'sentrixa secret set --provider <name>' and edit ~/.config/sentrixa/sentrixa.yaml.")
		return sxerr.New(sxerr.CodeCLISetupFailure, "sentrixa init: not an interactive terminal")
	}

	skipValidation, _ := cmd.Flags().GetBool("skip-validation")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.skipValidation = skipValidation
	m.forceOverwrite = forceOverwrite

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return sxerr.Errorf(sxerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}
	fm, ok := finalModel.(initModel)
	if !ok {
		return sxerr.New(sxerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return sxerr.Errorf(sxerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
