// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, for proxies and tests
}

// Provider implements provider.Provider using the Messages API.
type Provider struct {
	client anthropicsdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.HealthReporter  = (*Provider)(nil)
	_ provider.MetricsReporter = (*Provider)(nil)
)

// defaultMaxTokens is sent when the request sets no limit; the API
// requires one.
const defaultMaxTokens = 1024

// jsonInstruction is appended to the system prompt for JSON requests since
// the Messages API has no response format switch.
const jsonInstruction = "\n\nRespond with a single JSON object and nothing else."

// New creates an Anthropic provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sxerr.New(sxerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", sxerr.FieldProvider(provider.NameAnthropic))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		health: provider.MustHealthTracker(),
	}, nil
}

func (p *Provider) Name() string { return provider.NameAnthropic }

func (p *Provider) Available(_ context.Context) bool { return p.health.IsHealthy() }

func (p *Provider) RecordFailure()          { p.health.RecordFailure() }
func (p *Provider) RecordSuccess()          { p.health.RecordSuccess() }
func (p *Provider) Metrics() health.Metrics { return p.health.Metrics() }

func knownModels() []provider.ModelInfo {
	caps := func(out int) provider.ModelCapabilities {
		return provider.ModelCapabilities{SupportsStreaming: true, MaxContextTokens: 200000, MaxOutputTokens: out}
	}
	return []provider.ModelInfo{
		{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: provider.NameAnthropic, Capabilities: caps(16000)},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Provider: provider.NameAnthropic, Capabilities: caps(8192)},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	eventCh := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()
	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  provider.NameAnthropic,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	system := req.SystemPrompt
	if req.Options.ResponseFormat == provider.ResponseFormatJSON {
		system += jsonInstruction
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.StopSequences = req.Options.StopSequences
	}
	return params, nil
}

// convertMessages maps provider messages onto Messages API params. System
// messages travel via the top-level system param.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, error) {
	var result []anthropicsdk.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, sxerr.Errorf(sxerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}

func (p *Provider) streamChat(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var usage provider.Usage
	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)
			usage.CacheReadTokens = int(event.Message.Usage.CacheReadInputTokens)

		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}) {
					return
				}
			}

		case "message_delta":
			usage.OutputTokens = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() == nil {
			p.health.RecordFailure()
		}
		provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
		return
	}

	p.health.RecordSuccess()
	u := usage
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &u})
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
