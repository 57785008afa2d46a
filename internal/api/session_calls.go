// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// LoginResult carries the tokens and identity issued by a successful login.
type LoginResult struct {
	SessionToken string `json:"sessionToken"`
	MasterToken  string `json:"masterToken"`
	DisplayName  string `json:"displayUserName"`
}

// Login opens a session with account credentials and returns the issued
// tokens.
func (c *Client) Login(ctx context.Context, account, user, password string) (*LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	body := map[string]string{
		"account":  account,
		"user":     user,
		"password": password,
	}

	env, err := c.postJSON(ctx, "", c.endpoints.Login, "", "", body)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &ProtocolError{Code: env.Code, Message: env.Message}
	}

	var out LoginResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding login data: %w", err)
	}
	if out.SessionToken == "" || out.MasterToken == "" {
		return nil, fmt.Errorf("login succeeded but tokens are missing")
	}
	return &out, nil
}

// RenewSession exchanges the master token for a fresh session token after the
// service reported the current one expired.
func (c *Client) RenewSession(ctx context.Context, oldSessionToken, masterToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	body := map[string]string{
		"oldSessionToken": oldSessionToken,
		"requestType":     "RENEW",
	}

	env, err := c.postJSON(ctx, "", c.endpoints.RenewToken, masterToken, "", body)
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", &ProtocolError{Code: env.Code, Message: env.Message}
	}

	var out struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return "", fmt.Errorf("decoding renew data: %w", err)
	}
	if out.SessionToken == "" {
		return "", fmt.Errorf("renew succeeded but no session token returned")
	}
	return out.SessionToken, nil
}

// Logout invalidates the session on the service. Best effort; callers
// typically ignore the error.
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	env, err := c.postJSON(ctx, "", c.endpoints.Logout, sessionToken, "", map[string]string{})
	if err != nil {
		return err
	}
	if !env.Success {
		return &ProtocolError{Code: env.Code, Message: env.Message}
	}
	return nil
}

// Heartbeat validates the session token and returns the associated user name
// when the service reports one.
func (c *Client) Heartbeat(ctx context.Context, sessionToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.endpoints.Heartbeat, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("heartbeat returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", &ProtocolError{Code: env.Code, Message: env.Message}
	}

	var out struct {
		User string `json:"user"`
	}
	_ = json.Unmarshal(env.Data, &out)
	return out.User, nil
}

// ServerVersion calls the unauthenticated version endpoint. This can be used
// to check connectivity to the service.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.endpoints.Version, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "unknown", nil
	}
	var out struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Version) == "" {
		return "unknown", nil
	}
	return out.Version, nil
}
