// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Frostline CLI
// application. It implements subcommands for connecting to the compute
// service, running and canceling queries, and managing stored credentials,
// using the Cobra CLI framework with a rich terminal UI.
package cmd

import (
	"context"
	"fmt"
	"os"

	"frostline/cli/internal/api"
	"frostline/cli/internal/config"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
)

// rootCmd represents the base command when called without any subcommands.
// It serves as the entry point for the Frostline CLI application.
var rootCmd = &cobra.Command{
	Use:           "frostline",
	Short:         "Frostline CLI for running SQL on the Frostline compute service",
	Long:          `Frostline is a command-line tool for executing SQL statements against the Frostline compute service, with support for file transfers to and from stages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			ctx := context.Background()

			serverVersion := "unknown"
			if cfg, err := config.Load(); err == nil && cfg.AccountURL != "" {
				if v, err := api.New(cfg.AccountURL).ServerVersion(ctx); err == nil {
					serverVersion = v
				}
			}

			fmt.Printf("frostline %s\nservice %s\n", Version, serverVersion)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and service version information")
}
