// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"frostline/cli/internal/keychain"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command for closing the stored session.
// It invalidates the session on the service (best-effort) and removes the
// stored tokens and connection state from the local system.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Close the session and remove stored tokens",
	Long: `The logout command closes the current session with the Frostline service
(best-effort) and clears all stored credentials from the local system.

This command removes:
- Session and master tokens from the OS keychain
- The stored connection snapshot`,

	RunE: func(cmd *cobra.Command, args []string) error {
		// Try to close the session on the service (best effort - don't fail if offline)
		if sess, err := resumeSession(); err == nil {
			_ = sess.Close(cmd.Context())
		}

		// Always clear local credentials regardless of the service response
		if km, err := keychain.GetManager(); err == nil {
			_ = km.ClearAuth()
		}

		fmt.Println("✅ Session closed and stored tokens removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
