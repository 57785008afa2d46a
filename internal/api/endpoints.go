// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package api implements the HTTP JSON protocol client for the Frostline
// compute service. It is the transport façade the statement layer talks to:
// given a fully populated request descriptor it performs the network call and
// returns a raw result or a typed protocol error, and it exposes the
// out-of-band cancel-by-request-id call.
package api

// Endpoints contains the protocol endpoint paths, all relative to the
// account base URL.
type Endpoints struct {
	Query      string `json:"query_request"`   // e.g. "/queries/v1/query-request"
	Abort      string `json:"abort_request"`   // e.g. "/queries/v1/abort-request"
	Login      string `json:"login_request"`   // e.g. "/session/v1/login-request"
	RenewToken string `json:"token_request"`   // e.g. "/session/token-request"
	Logout     string `json:"logout_request"`  // e.g. "/session/logout-request"
	Heartbeat  string `json:"heartbeat"`       // e.g. "/session/v1/heartbeat"
	Stage      string `json:"stage_files"`     // e.g. "/stage/v1/files"
	Version    string `json:"service_version"` // e.g. "/service/version"
}

// DefaultEndpoints returns the fixed endpoint table of the current protocol
// version.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Query:      "/queries/v1/query-request",
		Abort:      "/queries/v1/abort-request",
		Login:      "/session/v1/login-request",
		RenewToken: "/session/token-request",
		Logout:     "/session/logout-request",
		Heartbeat:  "/session/v1/heartbeat",
		Stage:      "/stage/v1/files",
		Version:    "/service/version",
	}
}
