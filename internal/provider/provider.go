// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

// Package provider abstracts the language model backends that play the
// attacker and defender roles.
package provider

import (
	"context"
)

// Provider is the core interface for LLM providers.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// HealthReporter is implemented by providers that track their own health.
// Callers report stream-level failures the provider cannot observe itself.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
}

// Router routes chat requests to the appropriate provider based on model name.
type Router interface {
	Route(ctx context.Context, modelName string) (Provider, string, error)
	Close() error
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ResponseFormat constrains the shape of the model output.
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = ""
	ResponseFormatJSON ResponseFormat = "json"
)

// ChatOptions contains model configuration. A nil Temperature leaves the
// provider default in place.
type ChatOptions struct {
	Temperature    *float32
	MaxTokens      int
	StopSequences  []string
	ResponseFormat ResponseFormat
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// ModelInfo describes a model's capabilities.
type ModelInfo struct {
	ID           string
	Name         string
	Provider     string
	Capabilities ModelCapabilities
}

// ModelCapabilities declares what a model supports.
type ModelCapabilities struct {
	SupportsJSONMode  bool
	SupportsStreaming bool
	MaxContextTokens  int
	MaxOutputTokens   int
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool
	Provider  string
	Message   string
}
