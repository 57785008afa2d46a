// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import "fmt"

// SessionExpiredCode is the service code reported when the session token is
// no longer valid. It is the only retryable protocol failure: the caller is
// expected to renew the session token and reissue the same request.
const SessionExpiredCode = "390112"

// ProtocolError is a failure reported by the compute service itself, as
// opposed to a network-level failure reaching it.
type ProtocolError struct {
	// Code is the service-assigned numeric error code, as a string.
	Code string
	// Message is the service-provided failure description.
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("service error %s: %s", e.Code, e.Message)
}

// SessionExpired reports whether the error is the renewable
// session-token-expired condition.
func (e *ProtocolError) SessionExpired() bool {
	return e.Code == SessionExpiredCode
}
