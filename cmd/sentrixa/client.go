// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Tests replace it.
var defaultHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}

// labClient talks to a running sentrixa server.
type labClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newLabClient(addr, token string) *labClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &labClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    defaultHTTPClient,
	}
}

// addServerFlags registers --address and --token on cmd.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "server address (default: server.listen from config)")
	cmd.Flags().String("token", "", "bearer token (default: first of server.tokens from config)")
}

// clientFromFlags builds a labClient from --address/--token, falling back
// to the loaded configuration.
func clientFromFlags(cmd *cobra.Command) *labClient {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("server.listen")
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		if tokens := viper.GetStringSlice("server.tokens"); len(tokens) > 0 {
			token = tokens[0]
		}
	}
	return newLabClient(addr, token)
}

func (c *labClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *labClient) postJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *labClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends a request and decodes a 2xx JSON response into dest. A refused
// connection maps to CodeCLIServerNotRunning; API problems keep their
// detail and HTTP status.
func (c *labClient) do(ctx context.Context, method, path string, body, dest any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return sxerr.Errorf(sxerr.CodeCLIRequestFailure, "encoding request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return sxerr.Errorf(sxerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return sxerr.Errorf(sxerr.CodeCLIServerNotRunning, "server at %s is not running: %w", c.baseURL, err)
		}
		return sxerr.Errorf(sxerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return sxerr.Errorf(sxerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// responseError extracts the problem detail from an error response.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &problem) == nil {
		switch {
		case problem.Detail != "":
			msg = problem.Detail
		case problem.Error != "":
			msg = problem.Error
		}
	}
	return sxerr.New(sxerr.CodeCLIRequestFailure,
		fmt.Sprintf("server returned %d: %s", resp.StatusCode, msg),
		sxerr.Field("status", resp.StatusCode))
}

// isDialError reports whether err is a dial failure such as connection refused.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
