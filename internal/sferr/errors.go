// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sferr defines typed errors with categories for statement execution
// and session handling. It provides a structured approach to error handling
// with machine-readable error kinds and human-friendly messages, so callers
// can branch on what went wrong without string matching.
//
// The package supports wrapping underlying errors while maintaining error
// kind information, and carries the server-provided code for failures that
// originated on the compute service.
package sferr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// StatementClosed indicates an operation on a closed statement handle.
	StatementClosed Kind = "statement_closed"
	// AlreadyRunningQuery indicates an execute while a request is outstanding.
	AlreadyRunningQuery Kind = "already_running_query"
	// QueryCanceled indicates the execution observed the canceling flag,
	// whether set by a user cancel or by the query timeout.
	QueryCanceled Kind = "query_canceled"
	// TooManyStatementOptions indicates the statement option cap was hit.
	TooManyStatementOptions Kind = "too_many_statement_options"
	// InvalidStatement indicates empty or blank statement text.
	InvalidStatement Kind = "invalid_statement"
	// InvalidOptionValue indicates a recognized option was given a value of
	// the wrong shape (for example a non-integer query timeout).
	InvalidOptionValue Kind = "invalid_option_value"
	// SessionClosed indicates the owning session was closed before execute.
	SessionClosed Kind = "session_closed"
	// SessionExpired indicates the service rejected the session token.
	// Execution retries this transparently after renewal; it surfaces only
	// when renewal itself fails.
	SessionExpired Kind = "session_expired"
	// TransportFailure indicates a terminal protocol or network failure.
	TransportFailure Kind = "transport_failure"
	// MalformedResponse indicates the service returned a result the client
	// could not validate (row/column shape mismatch and the like).
	MalformedResponse Kind = "malformed_response"
	// MemoryExhausted indicates the result was too large to materialize.
	MemoryExhausted Kind = "memory_exhausted"
	// InternalError indicates a client bug: an empty result from a
	// successful exchange, or an unexpected failure building the result view.
	InternalError Kind = "internal_error"
	// NotLoggedIn indicates no stored session is available to the CLI.
	NotLoggedIn Kind = "not_logged_in"
)

// E wraps an error with kind, human-friendly message and an optional
// server-provided code.
type E struct {
	Kind    Kind
	Message string
	Code    string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// WithCode attaches the server-provided code to the error.
func (e *E) WithCode(code string) *E {
	e.Code = code
	return e
}

// KindOf returns the Kind of err, or the empty Kind when err carries none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// CodeOf returns the server-provided code of err, if any.
func CodeOf(err error) string {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
