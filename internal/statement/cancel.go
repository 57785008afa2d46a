// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"context"

	"frostline/cli/internal/sferr"
)

// Cancel requests cancellation of the current execution. It is safe to call
// concurrently with an in-flight Execute and from any number of goroutines:
// only the first caller does work, the rest return immediately. Calling
// Cancel on a statement with nothing running is a no-op.
//
// Cancellation is cooperative. Cancel sets the canceling flag and, when a
// remote request has been minted, issues the out-of-band abort call; the
// in-flight Execute observes the flag at its next checkpoint and surfaces
// QueryCanceled to its own caller. Cancel never interrupts the transport
// call itself.
func (s *Statement) Cancel(ctx context.Context) error {
	// One-way transition; only the transition owner proceeds.
	if !s.canceling.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.fileTransfer {
		agent := s.agent
		s.mu.Unlock()
		if agent != nil {
			agent.Cancel()
		}
		return nil
	}

	requestID, sqlText := s.requestID, s.sqlText
	s.mu.Unlock()

	if requestID == "" {
		// The query has not been sent yet; the execute path will observe
		// the flag before issuing it. Nothing to cancel remotely.
		return nil
	}

	return s.cancelHelper(ctx, requestID, sqlText)
}

// cancelHelper issues the remote abort for a minted request. It runs
// independently of the primary execute call's network wait; whatever the
// abort outcome, the execute path owns surfacing QueryCanceled.
func (s *Statement) cancelHelper(ctx context.Context, requestID, sqlText string) error {
	err := s.transport.CancelQuery(ctx, requestID, sqlText, s.sess.Token())

	// Done with the remote abort; clear the identity so we don't try to
	// abort the same request again. Guarded against the execute path having
	// already moved on.
	s.mu.Lock()
	if s.requestID == requestID {
		s.sequenceID = -1
		s.requestID = ""
	}
	s.mu.Unlock()

	if err != nil {
		return sferr.Wrap(sferr.TransportFailure, "remote cancel failed", err)
	}
	return nil
}
