// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package transfer implements the client-side file transfer path for PUT and
// GET pseudo-commands. These commands never reach the remote-execution
// protocol; the agent moves file bytes between the local machine and the
// service's stage endpoints and reports a fixed client-side result view.
package transfer

import (
	"strings"

	"frostline/cli/internal/sferr"
)

// Direction says which way the bytes flow.
type Direction int

const (
	// Upload is a PUT: local file to stage.
	Upload Direction = iota
	// Download is a GET: stage file to local path.
	Download
)

// Command is one parsed PUT/GET pseudo-command.
type Command struct {
	Direction Direction
	// LocalPath is the local file, from the file:// operand.
	LocalPath string
	// StagePath is the stage-relative path, e.g. "@mystage/dir/file.csv".
	StagePath string
}

const localScheme = "file://"

// ParseCommand parses the transfer pseudo-command from the statement text.
// Grammar:
//
//	PUT file://<local-path> <stage-path>
//	GET <stage-path> file://<local-path>
//
// Keywords are case-insensitive. The caller has already classified the text
// as a transfer command; a malformed one is an invalid statement.
func ParseCommand(sql string) (*Command, error) {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) != 3 {
		return nil, sferr.New(sferr.InvalidStatement, "transfer command needs exactly a source and a target")
	}

	switch strings.ToLower(fields[0]) {
	case "put":
		if !strings.HasPrefix(strings.ToLower(fields[1]), localScheme) {
			return nil, sferr.New(sferr.InvalidStatement, "PUT source must be a file:// path")
		}
		local := fields[1][len(localScheme):]
		if local == "" {
			return nil, sferr.New(sferr.InvalidStatement, "PUT source path is empty")
		}
		return &Command{Direction: Upload, LocalPath: local, StagePath: fields[2]}, nil
	case "get":
		if !strings.HasPrefix(strings.ToLower(fields[2]), localScheme) {
			return nil, sferr.New(sferr.InvalidStatement, "GET target must be a file:// path")
		}
		local := fields[2][len(localScheme):]
		if local == "" {
			return nil, sferr.New(sferr.InvalidStatement, "GET target path is empty")
		}
		return &Command{Direction: Download, LocalPath: local, StagePath: fields[1]}, nil
	}
	return nil, sferr.New(sferr.InvalidStatement, "not a transfer command")
}
