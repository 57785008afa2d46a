// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session manages one authenticated session with the Frostline
// compute service: the session and master tokens, the monotonic sequence id
// counter the service uses to order requests, and session-level properties.
//
// A session outlives any one statement. Statements hold a non-owning
// reference to it and never mutate session state other than triggering token
// renewal.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/sferr"
)

// Session is one open session with the service. Safe for concurrent use by
// multiple statements.
type Session struct {
	cl *api.Client

	// tokenMu guards the token pair. Renewal is single-flight: a renewal
	// request carrying a stale "old" token returns the already-renewed token
	// instead of renewing twice.
	tokenMu      sync.Mutex
	sessionToken string
	masterToken  string

	seq    atomic.Int64
	closed atomic.Bool

	propMu sync.RWMutex
	props  map[string]any

	networkTimeout time.Duration
	user           string
}

// Open logs in with account credentials and returns a live session.
func Open(ctx context.Context, cl *api.Client, account, user, password string) (*Session, error) {
	res, err := cl.Login(ctx, account, user, password)
	if err != nil {
		return nil, err
	}
	s := newSession(cl, res.SessionToken, res.MasterToken)
	s.user = res.DisplayName
	return s, nil
}

// Resume reconstructs a session from previously stored tokens, without a
// login round trip. The tokens are validated lazily: the first request using
// an expired session token triggers renewal.
func Resume(cl *api.Client, sessionToken, masterToken string) *Session {
	return newSession(cl, sessionToken, masterToken)
}

func newSession(cl *api.Client, sessionToken, masterToken string) *Session {
	return &Session{
		cl:           cl,
		sessionToken: sessionToken,
		masterToken:  masterToken,
		props:        make(map[string]any),
	}
}

// Client returns the protocol client this session rides on.
func (s *Session) Client() *api.Client { return s.cl }

// BaseURL returns the account endpoint of the session.
func (s *Session) BaseURL() string { return s.cl.BaseURL() }

// User returns the display name reported at login, if any.
func (s *Session) User() string { return s.user }

// Token returns the current session token.
func (s *Session) Token() string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	return s.sessionToken
}

// MasterToken returns the current master token.
func (s *Session) MasterToken() string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	return s.masterToken
}

// RenewToken obtains a fresh session token after the service reported oldToken
// expired. Renewal is single-flight: when a concurrent caller already renewed,
// the newer token is returned without another round trip.
func (s *Session) RenewToken(ctx context.Context, oldToken string) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.sessionToken != oldToken && s.sessionToken != "" {
		// Someone else renewed while we were waiting on the lock.
		return s.sessionToken, nil
	}

	newToken, err := s.cl.RenewSession(ctx, oldToken, s.masterToken)
	if err != nil {
		return "", sferr.Wrap(sferr.SessionExpired, "session renewal failed", err)
	}
	s.sessionToken = newToken
	return newToken, nil
}

// NextSequenceID returns the next session-scoped sequence id. Ids are
// monotonically increasing and unique within the session.
func (s *Session) NextSequenceID() int64 {
	return s.seq.Add(1)
}

// NetworkTimeout bounds each protocol round trip; zero means no bound.
func (s *Session) NetworkTimeout() time.Duration { return s.networkTimeout }

// SetNetworkTimeout configures the per-round-trip bound. Call before issuing
// statements; it is not synchronized against in-flight executions.
func (s *Session) SetNetworkTimeout(d time.Duration) { s.networkTimeout = d }

// IsClosed reports whether Close was called.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// Close invalidates the session on the service (best effort) and marks it
// closed locally. Statements created from a closed session fail to execute.
func (s *Session) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.cl.Logout(ctx, s.Token())
}

// Property returns a session-level property.
func (s *Session) Property(name string) (any, bool) {
	s.propMu.RLock()
	defer s.propMu.RUnlock()
	v, ok := s.props[name]
	return v, ok
}

// SetProperty sets a session-level property, e.g. the client-side sort mode
// toggled by "set-client-property sort on|off".
func (s *Session) SetProperty(name string, value any) {
	s.propMu.Lock()
	defer s.propMu.Unlock()
	s.props[name] = value
}
