// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"time"

	"frostline/cli/internal/api"
	"frostline/cli/internal/config"
	"frostline/cli/internal/keychain"
	"frostline/cli/internal/session"
	"frostline/cli/internal/sferr"
)

// resumeSession reconstructs the stored session from the config file and the
// OS keychain. The account URL comes from config, falling back to the
// connection snapshot saved next to the tokens.
func resumeSession() (*session.Session, error) {
	km, err := keychain.GetManager()
	if err != nil {
		return nil, sferr.Wrap(sferr.NotLoggedIn, "secure storage unavailable", err)
	}

	sessionToken, err := km.LoadSessionToken()
	if err != nil {
		return nil, sferr.Wrap(sferr.NotLoggedIn, "no stored session", err)
	}
	masterToken, err := km.LoadMasterToken()
	if err != nil {
		return nil, sferr.Wrap(sferr.NotLoggedIn, "no stored session", err)
	}

	cfg, _ := config.Load()
	accountURL := cfg.AccountURL
	if accountURL == "" {
		if b, err := km.LoadConnState(); err == nil {
			var st connState
			if json.Unmarshal(b, &st) == nil {
				accountURL = st.AccountURL
			}
		}
	}
	if accountURL == "" {
		return nil, sferr.New(sferr.NotLoggedIn, "no account configured")
	}

	sess := session.Resume(api.New(accountURL), sessionToken, masterToken)
	if cfg.NetworkTimeoutSeconds > 0 {
		sess.SetNetworkTimeout(time.Duration(cfg.NetworkTimeoutSeconds) * time.Second)
	}
	if cfg.ClientSort {
		sess.SetProperty("sort", true)
	}
	return sess, nil
}

// persistTokens writes the session's current token pair back to the keychain,
// so a renewal that happened during a command survives the process.
func persistTokens(sess *session.Session) {
	if km, err := keychain.GetManager(); err == nil {
		_ = km.SaveSessionTokens(sess.Token(), sess.MasterToken())
	}
}
