// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package config loads the sentrixa configuration from file, environment
// and defaults.
package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SENTRIXA_SIMULATION_RISK_THRESHOLD.
const EnvPrefix = "SENTRIXA"

// KnownProviders are the provider names accepted under providers.<name>.
var KnownProviders = []string{"anthropic", "google", "openai", "openrouter"}

// Config is the top-level sentrixa configuration.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Log        LogConfig                 `mapstructure:"log"`
	Simulation SimulationConfig          `mapstructure:"simulation"`
	Models     ModelsConfig              `mapstructure:"models"`
	Agents     AgentsConfig              `mapstructure:"agents"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Export     ExportConfig              `mapstructure:"export"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Scanner    ScannerConfig             `mapstructure:"scanner"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string          `mapstructure:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	Tokens      []string        `mapstructure:"tokens"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig sets the per-IP request budget. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SimulationConfig tunes the engine.
type SimulationConfig struct {
	TurnDelay           time.Duration `mapstructure:"turn_delay"`
	GraceDelay          time.Duration `mapstructure:"grace_delay"`
	RiskThreshold       int           `mapstructure:"risk_threshold"`
	MaxRiskPerTurn      int           `mapstructure:"max_risk_per_turn"`
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`
}

// ModelsConfig selects the default model and its failover chain.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
}

// AgentsConfig tunes the attacker and defender roles.
type AgentsConfig struct {
	Attacker AgentConfig `mapstructure:"attacker"`
	Defender AgentConfig `mapstructure:"defender"`
}

// AgentConfig tunes one role. An empty model uses models.default.
type AgentConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider. The
// API key may be a keyring://service/key reference.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ExportConfig controls where incident reports are written.
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
	Auto   bool   `mapstructure:"auto"`
}

// StorageConfig selects the incident archive backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ScannerConfig controls the privacy scanner.
type ScannerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Mode    string `mapstructure:"mode"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8480")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.tokens", []string{})
	v.SetDefault("server.rate_limit.rps", 0)
	v.SetDefault("server.rate_limit.burst", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("simulation.turn_delay", "2s")
	v.SetDefault("simulation.grace_delay", "1s")
	v.SetDefault("simulation.risk_threshold", 80)
	v.SetDefault("simulation.max_risk_per_turn", 0)
	v.SetDefault("simulation.collaborator_timeout", "0s")

	v.SetDefault("models.default", "google/gemini-2.5-flash")
	v.SetDefault("models.failover", []string{})

	v.SetDefault("agents.attacker.model", "")
	v.SetDefault("agents.attacker.temperature", 0.9)
	v.SetDefault("agents.attacker.max_tokens", 0)
	v.SetDefault("agents.defender.model", "")
	v.SetDefault("agents.defender.temperature", 0.2)
	v.SetDefault("agents.defender.max_tokens", 1024)

	// Registering every provider key lets AutomaticEnv pick up
	// SENTRIXA_PROVIDERS_<NAME>_API_KEY without a config file.
	for _, name := range KnownProviders {
		v.SetDefault("providers."+name+".api_key", "")
		v.SetDefault("providers."+name+".base_url", "")
	}

	v.SetDefault("export.dir", "./incidents")
	v.SetDefault("export.format", "json")
	v.SetDefault("export.auto", true)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.path", "sentrixa.db")

	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.mode", "flag")
}

// SetupEnv binds SENTRIXA_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from path (optional) with defaults and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sxerr.Errorf(sxerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sxerr.Errorf(sxerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sxerr.Errorf(sxerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// ConfiguredProviders returns the names of providers that have an API key,
// sorted.
func (c *Config) ConfiguredProviders() []string {
	var names []string
	for name, pc := range c.Providers {
		if pc.APIKey != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Validate checks the configuration for logical errors. Every problem is
// reported, not only the first.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateSimulation()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateAgents()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateExport()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateScanner()...)
	return errs
}

func invalid(format string, args ...any) error {
	return sxerr.Errorf(sxerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func oneOf(key, got string, allowed ...string) error {
	if slices.Contains(allowed, got) {
		return nil
	}
	return invalid("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), got)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 0 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be a number between 0 and 65535, got %q", portStr))
	}

	for i, tok := range c.Server.Tokens {
		if strings.TrimSpace(tok) == "" {
			errs = append(errs, invalid("server.tokens[%d] must not be empty", i))
		}
	}

	rl := c.Server.RateLimit
	if rl.RPS < 0 {
		errs = append(errs, invalid("server.rate_limit.rps must not be negative, got %g", rl.RPS))
	}
	if rl.RPS > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be positive when rps is set, got %d", rl.Burst))
	}
	return errs
}

func (c *Config) validateLog() []error {
	var errs []error
	if err := oneOf("log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "error"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("log.format", c.Log.Format, "text", "json"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) validateSimulation() []error {
	var errs []error
	s := c.Simulation

	if s.TurnDelay < 0 {
		errs = append(errs, invalid("simulation.turn_delay must not be negative, got %s", s.TurnDelay))
	}
	if s.GraceDelay < 0 {
		errs = append(errs, invalid("simulation.grace_delay must not be negative, got %s", s.GraceDelay))
	}
	if s.CollaboratorTimeout < 0 {
		errs = append(errs, invalid("simulation.collaborator_timeout must not be negative, got %s", s.CollaboratorTimeout))
	}
	if s.RiskThreshold < 1 || s.RiskThreshold > 100 {
		errs = append(errs, invalid("simulation.risk_threshold must be between 1 and 100, got %d", s.RiskThreshold))
	}
	if s.MaxRiskPerTurn < 0 {
		errs = append(errs, invalid("simulation.max_risk_per_turn must not be negative, got %d", s.MaxRiskPerTurn))
	}
	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, invalid("models.default must not be empty"))
	} else if err := checkModelRef("models.default", c.Models.Default); err != nil {
		errs = append(errs, err)
	}

	for i, ref := range c.Models.Failover {
		if err := checkModelRef("models.failover["+strconv.Itoa(i)+"]", ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (c *Config) validateAgents() []error {
	var errs []error
	for role, a := range map[string]AgentConfig{"attacker": c.Agents.Attacker, "defender": c.Agents.Defender} {
		key := "agents." + role
		if a.Model != "" {
			if err := checkModelRef(key+".model", a.Model); err != nil {
				errs = append(errs, err)
			}
		}
		if a.Temperature < 0 || a.Temperature > 2 {
			errs = append(errs, invalid("%s.temperature must be between 0 and 2, got %g", key, a.Temperature))
		}
		if a.MaxTokens < 0 {
			errs = append(errs, invalid("%s.max_tokens must not be negative, got %d", key, a.MaxTokens))
		}
	}
	// Map iteration order is random; keep the report stable.
	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !slices.Contains(KnownProviders, name) {
			errs = append(errs, invalid("providers.%s is not a supported provider (want one of [%s])",
				name, strings.Join(KnownProviders, ", ")))
		}
	}
	return errs
}

func (c *Config) validateExport() []error {
	var errs []error
	if c.Export.Dir == "" {
		errs = append(errs, invalid("export.dir must not be empty"))
	}
	if err := oneOf("export.format", c.Export.Format, "json", "yaml"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	if err := oneOf("storage.backend", c.Storage.Backend, "memory", "sqlite"); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, invalid("storage.path must be set for the sqlite backend"))
	}
	return errs
}

func (c *Config) validateScanner() []error {
	if err := oneOf("scanner.mode", c.Scanner.Mode, "flag", "redact"); err != nil {
		return []error{err}
	}
	return nil
}

// checkModelRef requires "provider/model" with a known provider.
func checkModelRef(key, ref string) error {
	name, model, ok := strings.Cut(ref, "/")
	if !ok || name == "" || model == "" {
		return invalid("%s must be in \"provider/model\" format, got %q", key, ref)
	}
	if !slices.Contains(KnownProviders, name) {
		return invalid("%s %q references unknown provider %q", key, ref, name)
	}
	return nil
}
