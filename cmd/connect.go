// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/config"
	"frostline/cli/internal/httperrors"
	"frostline/cli/internal/keychain"
	"frostline/cli/internal/logging"
	"frostline/cli/internal/session"
	"frostline/cli/internal/terminal"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	connectAccount string
	connectUser    string
)

// connState is the serialized connection snapshot kept in the OS keychain
// next to the tokens, so a session can be resumed without the config file.
type connState struct {
	AccountURL string `json:"account_url"`
	User       string `json:"user"`
}

// connectCmd represents the connect command for opening a session with the
// Frostline compute service. It prompts for credentials, logs in, and stores
// the issued tokens securely in the OS keychain for future commands.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a session with the Frostline compute service",
	Long: `The connect command logs in to the Frostline compute service with account
credentials and stores the issued session tokens securely in the OS keychain.
Subsequent commands (query, whoami) reuse the stored session; an expired
session token is renewed transparently.

Example account URL: https://acme.frostline.io`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reader := bufio.NewReader(os.Stdin)

		account := strings.TrimSpace(connectAccount)
		if account == "" {
			promptText := "Account URL (e.g., https://acme.frostline.io): "
			fmt.Print(promptText)
			line, _ := reader.ReadString('\n')
			account = strings.TrimSpace(line)
			terminal.ClearPreviousLines(len(promptText) + len(account))
		}
		if account == "" {
			return errors.New("account URL is required")
		}
		u, err := url.Parse(account)
		if err != nil || u.Scheme == "" || u.Host == "" {
			fmt.Println("❌ Invalid account URL. Please check it and try again.")
			fmt.Println("   Example: https://acme.frostline.io")
			return errors.New("invalid account URL")
		}

		user := strings.TrimSpace(connectUser)
		if user == "" {
			promptText := "User: "
			fmt.Print(promptText)
			line, _ := reader.ReadString('\n')
			user = strings.TrimSpace(line)
			terminal.ClearPreviousLines(len(promptText) + len(user))
		}
		if user == "" {
			return errors.New("user is required")
		}

		fmt.Print("Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if len(pw) == 0 {
			return errors.New("password is required")
		}

		stopSpinner := startInlineSpinner(os.Stdout, "opening session",
			[]string{"-", "\\", "|", "/"}, 100*time.Millisecond)

		cl := api.New(account)
		sess, err := session.Open(ctx, cl, accountName(u), user, string(pw))
		stopSpinner()
		if err != nil {
			var perr *api.ProtocolError
			if errors.As(err, &perr) {
				fmt.Println("❌ Login failed. Please check your credentials and account URL.")
				fmt.Println("   " + logging.PresentError("login", err))
				return err
			}
			return httperrors.FormatNetworkError(err, "opening session")
		}

		// Save tokens securely in the OS keychain
		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			fmt.Println("   Keychain is only supported on macOS and Windows.")
			fmt.Println("   Session opened but not saved.")
			return err
		}
		if err := km.SaveSessionTokens(sess.Token(), sess.MasterToken()); err != nil {
			fmt.Println("❌ Failed to save session tokens securely.")
			return err
		}
		if b, err := json.Marshal(connState{AccountURL: account, User: user}); err == nil {
			_ = km.SaveConnState(b)
		}

		cfg, _ := config.Load()
		cfg.AccountURL = account
		cfg.User = user
		if err := config.Save(cfg); err != nil {
			fmt.Println("⚠️  Session saved, but writing the config file failed:")
			fmt.Println("   " + logging.PresentError("config", err))
		}

		name := sess.User()
		if name == "" {
			name = user
		}
		fmt.Printf("✅ Connected as %s\n", name)
		fmt.Println("   You're ready to run 'frostline query'")
		return nil
	},
}

// accountName derives the account identifier from the account URL host,
// e.g. "acme" from "https://acme.frostline.io".
func accountName(u *url.URL) string {
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().StringVar(&connectAccount, "account", "", "Account base URL")
	connectCmd.Flags().StringVarP(&connectUser, "user", "u", "", "Login name")
}
