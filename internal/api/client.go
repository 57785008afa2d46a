// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCanceled is returned when the request descriptor's canceling flag was
// already set by the time the transport was about to issue the call.
var ErrCanceled = errors.New("request canceled by client")

// sessionCallTimeout bounds short control-plane calls (login, renew, logout,
// heartbeat, version). Query submission is bounded by the descriptor's own
// network timeout instead, since queries may legitimately run for minutes.
const sessionCallTimeout = 30 * time.Second

// Client implements the protocol over REST endpoints.
type Client struct {
	// baseURL is the account base URL (e.g. "https://acme.frostline.io")
	baseURL string
	// endpoints contains the URL paths for the protocol endpoints
	endpoints Endpoints
	// client is the underlying HTTP client; calls are bounded per request
	client *http.Client
}

// New creates a protocol client for the given account base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: DefaultEndpoints(),
		client:    &http.Client{},
	}
}

// BaseURL returns the account base URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Submit sends one query execution request and returns the raw result data.
// A service-reported failure comes back as *ProtocolError; anything below the
// protocol (dial, TLS, malformed envelope) is an ordinary error.
func (c *Client) Submit(ctx context.Context, req *ExecRequest) (*RawResult, error) {
	if req.Canceling != nil && req.Canceling.Load() {
		return nil, ErrCanceled
	}

	if req.NetworkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.NetworkTimeout)
		defer cancel()
	}

	body := execRequestBody{
		SQLText:      req.SQL,
		DescribeOnly: req.DescribeOnly,
		Bindings:     req.Bindings,
		Parameters:   req.Parameters,
		SequenceID:   req.SequenceID,
		IsRetry:      req.Retry,
	}

	env, err := c.postJSON(ctx, req.ServerURL, c.endpoints.Query+"?requestId="+url.QueryEscape(req.RequestID), req.Token, req.MediaType, body)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &ProtocolError{Code: env.Code, Message: env.Message}
	}
	return &RawResult{Data: env.Data}, nil
}

// CancelQuery issues the out-of-band abort call for an in-flight request.
// The abort call carries its own fresh request id; the id of the query being
// aborted travels in the body.
func (c *Client) CancelQuery(ctx context.Context, requestID, sqlText, token string) error {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	body := abortRequestBody{
		SQLText:   sqlText,
		RequestID: requestID,
	}

	env, err := c.postJSON(ctx, "", c.endpoints.Abort+"?requestId="+url.QueryEscape(uuid.NewString()), token, "", body)
	if err != nil {
		return err
	}
	if !env.Success {
		return &ProtocolError{Code: env.Code, Message: env.Message}
	}
	return nil
}

// postJSON performs one enveloped protocol POST. serverURL overrides the
// client's base URL when non-empty (the request descriptor may carry its own
// endpoint).
func (c *Client) postJSON(ctx context.Context, serverURL, path, token, mediaType string, body any) (*envelope, error) {
	base := c.baseURL
	if serverURL != "" {
		base = strings.TrimRight(serverURL, "/")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if mediaType != "" {
		req.Header.Set("Accept", mediaType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	return &env, nil
}
