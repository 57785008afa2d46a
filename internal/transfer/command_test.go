// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transfer

import (
	"testing"

	"frostline/cli/internal/sferr"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			"put",
			"put file:///tmp/data.csv @mystage/dir",
			Command{Direction: Upload, LocalPath: "/tmp/data.csv", StagePath: "@mystage/dir"},
		},
		{
			"put uppercase",
			"PUT FILE:///tmp/data.csv @mystage",
			Command{Direction: Upload, LocalPath: "/tmp/data.csv", StagePath: "@mystage"},
		},
		{
			"get",
			"get @mystage/data.csv file:///tmp/out.csv",
			Command{Direction: Download, LocalPath: "/tmp/out.csv", StagePath: "@mystage/data.csv"},
		},
		{
			"surrounding whitespace",
			"  put file:///a/b @s  ",
			Command{Direction: Upload, LocalPath: "/a/b", StagePath: "@s"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCommand(tc.in)
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tc.in, err)
			}
			if *got != tc.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tc.in, *got, tc.want)
			}
		})
	}
}

func TestParseCommandInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing operand", "put file:///tmp/data.csv"},
		{"extra operand", "put file:///a @s extra"},
		{"put without file scheme", "put /tmp/data.csv @s"},
		{"put empty path", "put file:// @s"},
		{"get without file scheme", "get @s /tmp/out.csv"},
		{"get empty path", "get @s file://"},
		{"unknown keyword", "move file:///a @s"},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCommand(tc.in)
			if err == nil {
				t.Fatalf("ParseCommand(%q): want error, got nil", tc.in)
			}
			if kind := sferr.KindOf(err); kind != sferr.InvalidStatement {
				t.Errorf("error kind = %v, want %v", kind, sferr.InvalidStatement)
			}
		})
	}
}
