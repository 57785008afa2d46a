package cmd

import (
	"fmt"

	"frostline/cli/internal/config"

	"github.com/spf13/cobra"
)

// whoamiCmd represents the whoami command for displaying the current session.
// It validates the stored session with a heartbeat against the service and
// shows the associated user when the session is still valid.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user of the current session",
	Long: `The whoami command displays the user associated with the stored session.
It validates the session by sending a heartbeat to the Frostline service.

If no valid session exists, it will indicate that you are not connected.
This is useful for verifying the session before running queries.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := resumeSession()
		if err != nil {
			fmt.Println("🔒 You're not connected yet!")
			fmt.Println("   Run 'frostline connect' to get started.")
			return nil
		}

		user, err := sess.Client().Heartbeat(cmd.Context(), sess.Token())
		if err != nil {
			// An expired session token may still be renewable.
			if tok, rerr := sess.RenewToken(cmd.Context(), sess.Token()); rerr == nil {
				user, err = sess.Client().Heartbeat(cmd.Context(), tok)
				persistTokens(sess)
			}
			if err != nil {
				fmt.Println("🔒 Your session is no longer valid.")
				fmt.Println("   Run 'frostline connect' to open a new one.")
				return nil
			}
		}

		if user == "" {
			// Service accepted the token but gave no name; fall back to the
			// login name recorded at connect time.
			if cfg, cerr := config.Load(); cerr == nil && cfg.User != "" {
				user = cfg.User
			}
		}
		if user == "" {
			user = "(unknown)"
		}
		fmt.Printf("👤 Current user: %s\n", user)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
