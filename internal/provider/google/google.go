// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sentrixa-lab/sentrixa/internal/provider"
	"github.com/sentrixa-lab/sentrixa/pkg/health"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, for proxies and tests
}

// Provider implements provider.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	health *provider.HealthTracker
}

var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.HealthReporter  = (*Provider)(nil)
	_ provider.MetricsReporter = (*Provider)(nil)
)

// New creates a Google provider. The API key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sxerr.New(sxerr.CodeProviderRequestInvalid, "google: missing api_key in config", sxerr.FieldProvider(provider.NameGoogle))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, sxerr.Wrapf(err, sxerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{client: client, health: provider.MustHealthTracker()}, nil
}

func (p *Provider) Name() string { return provider.NameGoogle }

func (p *Provider) Available(_ context.Context) bool { return p.health.IsHealthy() }

func (p *Provider) RecordFailure()          { p.health.RecordFailure() }
func (p *Provider) RecordSuccess()          { p.health.RecordSuccess() }
func (p *Provider) Metrics() health.Metrics { return p.health.Metrics() }

func knownModels() []provider.ModelInfo {
	caps := func(out int) provider.ModelCapabilities {
		return provider.ModelCapabilities{
			SupportsJSONMode:  true,
			SupportsStreaming: true,
			MaxContextTokens:  1000000,
			MaxOutputTokens:   out,
		}
	}
	return []provider.ModelInfo{
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: provider.NameGoogle, Capabilities: caps(65536)},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: provider.NameGoogle, Capabilities: caps(65536)},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: provider.NameGoogle, Capabilities: caps(8192)},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	eventCh := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(eventCh)
		p.streamChat(ctx, req.Model, contents, config, eventCh)
	}()
	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  provider.NameGoogle,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildConfig maps request options onto a GenerateContentConfig. JSON
// responses use the API's native MIME type constraint.
func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}
	if req.Options.ResponseFormat == provider.ResponseFormatJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	return cfg
}

// convertMessages maps provider messages onto genai contents. System
// messages travel via SystemInstruction and are skipped here.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case provider.MessageRoleUser:
			role = string(genai.RoleUser)
		case provider.MessageRoleAssistant:
			role = string(genai.RoleModel)
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, sxerr.Errorf(sxerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
		result = append(result, &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}})
	}
	return result, nil
}

func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			if ctx.Err() == nil {
				p.health.RecordFailure()
			}
			provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				if !provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}) {
					return
				}
			}
		}

		if result.UsageMetadata != nil {
			provider.Emit(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(result.UsageMetadata.PromptTokenCount),
					OutputTokens:    int(result.UsageMetadata.CandidatesTokenCount),
					CacheReadTokens: int(result.UsageMetadata.CachedContentTokenCount),
				},
			})
		}
	}

	p.health.RecordSuccess()
	provider.Emit(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
