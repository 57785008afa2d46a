// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"frostline/cli/internal/xdg"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	// AccountURL is the base URL of the Frostline account endpoint,
	// e.g. "https://acme.frostline.io".
	AccountURL string `json:"account_url"`
	// User is the login name of the connected user (display only).
	User     string `json:"user"`
	LogLevel string `json:"log_level"`
	// NetworkTimeoutSeconds bounds each protocol round trip; 0 means the
	// client default.
	NetworkTimeoutSeconds int `json:"network_timeout_seconds"`
	// ClientSort enables client-side sorting of result rows by default.
	// It can be toggled per session with "set-client-property sort on|off".
	ClientSort bool `json:"client_sort"`
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
func Load() (Config, error) {
	var c Config
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Defaults (account URL must come from 'frostline connect')
			c.LogLevel = "info"
			c.NetworkTimeoutSeconds = 0
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
