// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package openai implements the Chat Completions provider. It also serves
// OpenAI-compatible gateways such as OpenRouter through Config.BaseURL.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Config holds OpenAI provider configuration.
type Config struct {
	// Name registers the provider under a different name, e.g. "openrouter".
	// Defaults to "openai".
	Name    string
	APIKey  string
	BaseURL string
}

// Provider implements provider.Provider using the Chat Completions API.
type Provider struct {
	name   string
	client openaisdk.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.HealthReporter  = (*Provider)(nil)
	_ provider.MetricsReporter = (*Provider)(nil)
)

// New creates an OpenAI provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	name := cfg.Name
	if name == "" {
		name = provider.NameOpenAI
	}
	if cfg.APIKey == "" {
		return nil, sxerr.New(sxerr.CodeProviderRequestInvalid, name+": missing api_key in config", sxerr.FieldProvider(name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		name:   name,
		client: openaisdk.NewClient(opts...),
		health: provider.MustHealthTracker(),
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Available(_ context.Context) bool { return p.health.IsHealthy() }

func (p *Provider) RecordFailure()          { p.health.RecordFailure() }
func (p *Provider) RecordSuccess()          { p.health.RecordSuccess() }
func (p *Provider) Metrics() health.Metrics { return p.health.Metrics() }

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	if p.name != provider.NameOpenAI {
		// Gateways route arbitrary model ids; nothing useful to advertise.
		return nil, nil
	}
	caps := func(out int) provider.ModelCapabilities {
		return provider.ModelCapabilities{SupportsJSONMode: true, SupportsStreaming: true, MaxContextTokens: 128000, MaxOutputTokens: out}
	}
	return []provider.ModelInfo{
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: p.name, Capabilities: caps(32768)},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: p.name, Capabilities: caps(16384)},
	}, nil
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
		Provider:  p.name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{OfStringArray: req.Options.StopSequences}
	}
	if req.Options.ResponseFormat == provider.ResponseFormatJSON {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

// convertMessages prepends the system prompt as a system message.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case provider.MessageRoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, sxerr.Errorf(sxerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}

func (p *Provider) streamChat(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: choice.Delta.Content}) {
				return
			}
		}
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			provider.Emit(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(chunk.Usage.PromptTokens),
					OutputTokens:    int(chunk.Usage.CompletionTokens),
					CacheReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
				},
			})
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
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
