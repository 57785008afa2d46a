// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"frostline/cli/internal/api"
	"frostline/cli/internal/result"
	"frostline/cli/internal/sferr"
)

// Execute runs one statement. Client-side pseudo-commands (PUT/GET file
// transfer, set-client-property) are routed away from the remote-execution
// path; everything else is submitted to the compute service.
//
// Execute returns the structured result, or nil for commands that produce no
// result set. Any terminal failure permanently retires the handle.
func (s *Statement) Execute(ctx context.Context, sql string) (*result.Result, error) {
	return s.execute(ctx, sql, false)
}

// Describe submits the statement in describe-only mode: the service returns
// result metadata (row types, bind count) without executing the query.
func (s *Statement) Describe(ctx context.Context, sql string) (*result.Result, error) {
	return s.execute(ctx, sql, true)
}

func (s *Statement) execute(ctx context.Context, sql string, describeOnly bool) (*result.Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, sferr.New(sferr.InvalidStatement, "statement text is empty")
	}

	if isClientProperty(sql) {
		s.applyClientProperty(strings.TrimSpace(sql))
		return nil, nil
	}

	if isFileTransfer(sql) {
		// The agent parses the command text; hand it the same comment-free
		// form the classifier matched on.
		return s.executeFileTransfer(ctx, stripLeadingComments(sql))
	}

	return s.executeQuery(ctx, sql, describeOnly)
}

func (s *Statement) executeQuery(ctx context.Context, sql string, describeOnly bool) (*result.Result, error) {
	if err := s.resetState(); err != nil {
		s.retire()
		return nil, err
	}

	if s.sess.IsClosed() {
		return nil, sferr.New(sferr.SessionClosed, "session is closed")
	}

	raw, err := s.executeHelper(ctx, sql, describeOnly)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		s.retire()
		return nil, sferr.New(sferr.InternalError, "transport returned an empty result")
	}

	sortEnabled := false
	if v, ok := s.sess.Property("sort"); ok {
		sortEnabled, _ = v.(bool)
	}

	res, err := s.buildResult(raw, sortEnabled)
	if err != nil {
		s.retire()
		return nil, err
	}

	s.mu.Lock()
	s.lastResult = res
	s.mu.Unlock()
	return res, nil
}

// executeHelper owns the request identity for one execution attempt
// sequence: it mints the request id and sequence id under the lock, runs the
// transport call outside any lock, retries transparently on session expiry,
// and clears the identity on completion. Every terminal failure retires the
// handle.
func (s *Statement) executeHelper(ctx context.Context, sql string, describeOnly bool) (raw *api.RawResult, err error) {
	defer func() {
		if err != nil {
			s.retire()
		}
	}()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, sferr.New(sferr.StatementClosed, "statement is closed")
	}
	if s.canceling.Load() {
		// Nothing to do if canceled before we even minted an id.
		s.mu.Unlock()
		return nil, sferr.New(sferr.QueryCanceled, "query canceled")
	}
	if s.requestID != "" {
		s.mu.Unlock()
		return nil, sferr.New(sferr.AlreadyRunningQuery, "statement is already running a query")
	}

	attemptCtx, release := context.WithCancel(ctx)
	s.requestID = uuid.NewString()
	s.sequenceID = s.sess.NextSequenceID()
	s.sqlText = sql
	s.release = release
	reqID, seqID := s.requestID, s.sequenceID
	s.mu.Unlock()

	defer s.releaseAttempt()

	req := &api.ExecRequest{
		SQL:            sql,
		MediaType:      mediaType,
		Bindings:       cloneBindings(s.bindings),
		DescribeOnly:   describeOnly,
		ServerURL:      s.sess.BaseURL(),
		RequestID:      reqID,
		SequenceID:     seqID,
		Parameters:     cloneOptions(s.options),
		Token:          s.sess.Token(),
		NetworkTimeout: s.sess.NetworkTimeout(),
		Retry:          false,
		Canceling:      &s.canceling,
	}

	// A cancel that slipped in between releasing the lock above and this
	// point saw our request id but had nothing remote to abort. Fail fast
	// here rather than issue a call that is already doomed.
	if s.canceling.Load() {
		return nil, sferr.New(sferr.QueryCanceled, "query canceled")
	}

	// If a timeout is set, arm a timer to cancel the request when it is
	// reached. It goes through the same Cancel entry point as a user cancel
	// and is torn down on every exit path.
	if s.queryTimeout > 0 {
		timer := time.AfterFunc(s.queryTimeout, func() {
			_ = s.Cancel(context.Background())
		})
		defer timer.Stop()
	}

	for {
		raw, err = s.transport.Submit(attemptCtx, req)
		if err == nil {
			break
		}
		if errors.Is(err, api.ErrCanceled) {
			return nil, sferr.New(sferr.QueryCanceled, "query canceled")
		}

		var perr *api.ProtocolError
		if errors.As(err, &perr) && perr.SessionExpired() {
			// Renew the session and retry the same request under the fresh
			// token. Identity is preserved across the retry.
			newToken, rerr := s.sess.RenewToken(ctx, req.Token)
			if rerr != nil {
				return nil, rerr
			}
			req.Token = newToken
			req.Retry = true

			if s.canceling.Load() {
				// Cancellation arrived during renewal; do not retry.
				return nil, sferr.New(sferr.QueryCanceled, "query canceled")
			}
			continue
		}

		if perr != nil {
			return nil, sferr.Wrap(sferr.TransportFailure, "query failed", err).WithCode(perr.Code)
		}
		return nil, sferr.Wrap(sferr.TransportFailure, "query submission failed", err)
	}

	// Done with the remote execution. Clear the identity so a late cancel
	// does not try to abort a finished request.
	s.mu.Lock()
	s.sequenceID = -1
	s.requestID = ""
	s.sqlText = ""
	s.mu.Unlock()

	if s.canceling.Load() {
		// This is the context of the query being canceled. Surface the
		// cancellation even though the server completed the request.
		return nil, sferr.New(sferr.QueryCanceled, "query canceled")
	}

	return raw, nil
}

// buildResult hands the raw result to the materializer. Its own validation
// failures and resource exhaustion propagate as-is; anything else, including
// a panic, is wrapped as an internal incident carrying the original cause.
// Statement text is deliberately kept out of the incident detail.
func (s *Statement) buildResult(raw *api.RawResult, sortEnabled bool) (res *result.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = sferr.Wrap(sferr.InternalError, "building result view", fmt.Errorf("panic: %v", r))
		}
	}()

	res, err = result.Build(raw, sortEnabled)
	if err != nil {
		switch sferr.KindOf(err) {
		case sferr.MalformedResponse, sferr.MemoryExhausted:
			return nil, err
		}
		return nil, sferr.Wrap(sferr.InternalError, "building result view", err)
	}
	return res, nil
}

func (s *Statement) executeFileTransfer(ctx context.Context, sql string) (*result.Result, error) {
	if err := s.resetState(); err != nil {
		s.retire()
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, sferr.New(sferr.StatementClosed, "statement is closed")
	}
	agent := s.newAgent(sql, s)
	s.fileTransfer = true
	s.agent = agent
	s.mu.Unlock()

	res, err := agent.Execute(ctx)
	if err != nil {
		s.retire()
		return nil, err
	}

	s.mu.Lock()
	s.lastResult = res
	s.mu.Unlock()
	return res, nil
}
