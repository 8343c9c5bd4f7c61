// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Supported provider names.
const (
	NameAnthropic  = "anthropic"
	NameOpenAI     = "openai"
	NameGoogle     = "google"
	// NameOpenRouter speaks the OpenAI wire protocol.
	NameOpenRouter = "openrouter"
)

var defaultModelsURL = map[string]string{
	NameAnthropic:  "https://api.anthropic.com/v1",
	NameOpenAI:     "https://api.openai.com/v1",
	NameGoogle:     "https://generativelanguage.googleapis.com/v1beta",
	NameOpenRouter: "https://openrouter.ai/api/v1",
}

// DefaultBaseURL returns the public API root for a known provider.
func DefaultBaseURL(name string) string {
	return defaultModelsURL[name]
}

// ValidateKey makes a lightweight call to the provider's models endpoint
// to confirm the API key is accepted. baseURL overrides the public
// endpoint, e.g. for OpenAI-compatible gateways.
func ValidateKey(ctx context.Context, client *http.Client, name, key, baseURL string) error {
	base, ok := defaultModelsURL[name]
	if !ok {
		return sxerr.Errorf(sxerr.CodeProviderRequestInvalid, "unknown provider: %s", name)
	}
	if baseURL != "" {
		base = baseURL
	}
	url := strings.TrimRight(base, "/") + "/models"

	headers := map[string]string{}
	switch name {
	case NameAnthropic:
		headers["x-api-key"] = key
		headers["anthropic-version"] = "2023-06-01"
	case NameOpenAI, NameOpenRouter:
		headers["Authorization"] = "Bearer " + key
	case NameGoogle:
		headers["x-goog-api-key"] = key
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return sxerr.Errorf(sxerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return sxerr.Errorf(sxerr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
