// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Binding carries one named parameter binding: the bound value (or values)
// and its declared type tag. The type is opaque to the client; validation is
// the service's responsibility.
type Binding struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// ExecRequest is the request descriptor for one remote execution attempt.
// The statement layer populates it once per attempt sequence; only Token and
// Retry change across session-renewal retries.
type ExecRequest struct {
	SQL            string
	MediaType      string
	Bindings       map[string]Binding
	DescribeOnly   bool
	ServerURL      string
	RequestID      string
	SequenceID     int64
	Parameters     map[string]any
	Token          string
	NetworkTimeout time.Duration
	Retry          bool

	// Canceling is the statement's live cancellation flag. The transport may
	// consult it to short-circuit a call that is already doomed.
	Canceling *atomic.Bool
}

// RawResult is the undecoded data section of a successful query response.
// Turning it into a structured row view is the result materializer's job.
type RawResult struct {
	Data json.RawMessage
}

// execRequestBody is the wire shape of a query submission.
type execRequestBody struct {
	SQLText      string             `json:"sqlText"`
	DescribeOnly bool               `json:"describeOnly,omitempty"`
	Bindings     map[string]Binding `json:"bindings,omitempty"`
	Parameters   map[string]any     `json:"parameters,omitempty"`
	SequenceID   int64              `json:"sequenceId"`
	IsRetry      bool               `json:"isRetry,omitempty"`
}

// abortRequestBody is the wire shape of an out-of-band cancel.
type abortRequestBody struct {
	SQLText   string `json:"sqlText"`
	RequestID string `json:"requestId"`
}

// envelope is the common response wrapper of every protocol call.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
}
