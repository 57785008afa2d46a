// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package statement implements the client-side execution engine for one
// logical SQL statement handle: it turns a query string and its bound
// parameters into a single in-flight remote request, enforces that at most
// one request is outstanding per handle, and coordinates the issuing caller,
// the optional timeout timer, and explicit cancellation into one consistent
// lifecycle.
//
// Three kinds of goroutines touch a Statement concurrently: the caller
// running Execute, the timeout timer, and anyone calling Cancel. The
// request identity (request id, sequence id, statement text, held attempt
// resource) lives under one mutex; the canceling flag is an independent
// atomic so Cancel never blocks behind a slow network call.
package statement

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/result"
	"frostline/cli/internal/session"
	"frostline/cli/internal/sferr"
	"frostline/cli/internal/transfer"
)

// mediaType is the content negotiation tag of the query protocol.
const mediaType = "application/frostline"

// MaxStatementOptions caps the statement option map to bound request size.
const MaxStatementOptions = 1000

// Transport is the narrow contract the statement needs from the protocol
// client: submit a request descriptor, and cancel by request id out of band.
type Transport interface {
	Submit(ctx context.Context, req *api.ExecRequest) (*api.RawResult, error)
	CancelQuery(ctx context.Context, requestID, sqlText, token string) error
}

// Session is what the statement needs from its owning session. The session
// is shared and outlives any one statement; the statement never mutates it
// beyond triggering token renewal and applying client-property commands.
type Session interface {
	Token() string
	RenewToken(ctx context.Context, oldToken string) (string, error)
	NextSequenceID() int64
	BaseURL() string
	NetworkTimeout() time.Duration
	IsClosed() bool
	Property(name string) (any, bool)
	SetProperty(name string, value any)
}

// TransferAgent is the file transfer delegate for PUT/GET pseudo-commands.
// While a statement is in the transfer path, cancellation and result
// retrieval are forwarded to it instead of the remote-execution path.
type TransferAgent interface {
	Execute(ctx context.Context) (*result.Result, error)
	Cancel()
}

// Statement is one logical SQL execution handle.
//
// A handle survives successful executions and can run another statement; any
// terminal failure (including cancellation) permanently retires it, and a
// new handle must be created to retry.
type Statement struct {
	sess      Session
	transport Transport
	newAgent  func(sql string, owner *Statement) TransferAgent

	// canceling is the one-way cancellation signal for the current
	// execution. It is atomic, not mutex-guarded, so Cancel never waits for
	// an in-flight network call.
	canceling atomic.Bool

	// mu guards the request identity and lifecycle state below.
	mu           sync.Mutex
	requestID    string
	sequenceID   int64
	sqlText      string
	closed       bool
	release      context.CancelFunc
	fileTransfer bool
	agent        TransferAgent
	lastResult   *result.Result

	// Caller-owned configuration; set between executions, not synchronized
	// against an in-flight Execute.
	queryTimeout time.Duration
	bindings     map[string]api.Binding
	options      map[string]any

	xferDone  atomic.Int64
	xferTotal atomic.Int64
}

// New creates a statement handle owned by the given session.
func New(sess *session.Session) *Statement {
	st := &Statement{
		sess:       sess,
		transport:  sess.Client(),
		sequenceID: -1,
		bindings:   make(map[string]api.Binding),
		options:    make(map[string]any),
	}
	st.newAgent = func(sql string, owner *Statement) TransferAgent {
		return transfer.New(sql, sess, owner)
	}
	return st
}

// Close retires the statement handle. Idempotent; a statement with no
// outstanding request simply transitions to closed with no network
// interaction.
func (s *Statement) Close() {
	s.mu.Lock()
	s.lastResult = nil
	s.closed = true
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.fileTransfer = false
	s.agent = nil
	s.mu.Unlock()
}

// Result returns the most recent execution result and clears it from the
// handle. Returns nil when no result is pending.
func (s *Statement) Result() *result.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lastResult
	s.lastResult = nil
	return r
}

// TransferProgress implements transfer.StatusReporter so transfer status can
// be observed through the statement handle.
func (s *Statement) TransferProgress(transferred, total int64) {
	s.xferDone.Store(transferred)
	s.xferTotal.Store(total)
}

// TransferStatus reports bytes moved by the current or last file transfer.
func (s *Statement) TransferStatus() (transferred, total int64) {
	return s.xferDone.Load(), s.xferTotal.Load()
}

// resetState clears all per-execution state ahead of a new execution
// attempt sequence. It refuses to reset while a request is outstanding, so a
// concurrent execute cannot clobber the in-flight identity. It does not
// reopen a closed handle, and it must not run between session-renewal
// retries: identity is preserved across those.
func (s *Statement) resetState() error {
	s.mu.Lock()
	if s.requestID != "" {
		s.mu.Unlock()
		return sferr.New(sferr.AlreadyRunningQuery, "statement is already running a query")
	}
	s.lastResult = nil
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.sequenceID = -1
	s.sqlText = ""
	s.fileTransfer = false
	s.agent = nil
	s.canceling.Store(false)
	s.mu.Unlock()
	s.xferDone.Store(0)
	s.xferTotal.Store(0)
	return nil
}

// retire permanently closes the handle after a terminal failure.
func (s *Statement) retire() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// releaseAttempt frees the resource held for the current attempt, if any.
// Runs on every exit path of an execution.
func (s *Statement) releaseAttempt() {
	s.mu.Lock()
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.mu.Unlock()
}
