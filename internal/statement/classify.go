// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package statement

import (
	"strings"
)

// clientPropertyPrefix introduces the session-property pseudo-command,
// e.g. "set-client-property sort on".
const clientPropertyPrefix = "set-client-property"

// stripLeadingComments removes any leading "//" line comments and "/* */"
// block comments, greedily, from the start of the trimmed statement text.
func stripLeadingComments(sql string) string {
	trimmed := strings.TrimSpace(sql)

	for strings.HasPrefix(trimmed, "//") {
		nl := strings.IndexByte(trimmed, '\n')
		if nl < 0 {
			break
		}
		trimmed = strings.TrimSpace(trimmed[nl:])
	}

	for strings.HasPrefix(trimmed, "/*") {
		end := strings.Index(trimmed, "*/")
		if end < 0 {
			break
		}
		trimmed = strings.TrimSpace(trimmed[end+2:])
	}

	return trimmed
}

// isFileTransfer reports whether the statement is a client-side PUT/GET
// upload or download command, allowing for comments in front of the keyword.
func isFileTransfer(sql string) bool {
	trimmed := stripLeadingComments(sql)
	if len(trimmed) < 4 {
		return false
	}
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "put ") || strings.HasPrefix(lower, "get ")
}

// isClientProperty reports whether the statement is the client-side
// property-assignment pseudo-command.
func isClientProperty(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) <= len(clientPropertyPrefix) {
		return false
	}
	return strings.HasPrefix(strings.ToLower(trimmed), clientPropertyPrefix)
}

// applyClientProperty tokenizes the pseudo-command and applies it to
// session-local state. It never reaches the transport and yields no result
// set. Unrecognized or truncated commands are silently ignored.
func (s *Statement) applyClientProperty(sql string) {
	tokens := strings.Fields(sql)
	if len(tokens) < 2 {
		return
	}

	if strings.EqualFold(tokens[1], "sort") {
		on := len(tokens) >= 3 && strings.EqualFold(tokens[2], "on")
		s.sess.SetProperty("sort", on)
	}
}
