// Package main is the entry point for the Frostline CLI application.
// It provides interactive SQL execution against the Frostline compute service.
package main

import (
	"frostline/cli/cmd"
)

// main is the entry point for the Frostline CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
