// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for
// frostline. This module manages all interactions with the OS keychain or
// credential store, providing a unified interface for storing and retrieving
// sensitive data such as session tokens and connection state.
//
// The package supports multiple operating systems including macOS Keychain and
// Windows Credential Manager, with thread-safe operations and proper error
// handling.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "frostline"

// Keys used for storing secrets in the OS keychain.
const (
	// KeySessionToken is the short-lived token sent with every request.
	KeySessionToken = "session_token"
	// KeyMasterToken is the long-lived token used to renew the session token.
	KeyMasterToken = "master_token"
	// KeyConnState is the serialized connection state (account, user).
	KeyConnState = "conn_state"
)

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}

	return &Manager{
		ring: ring,
	}, nil
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}

	return globalManager, nil
}

// MustGetManager returns the global keychain manager instance.
// Panics if initialization fails. Use only when you're sure initialization will succeed.
func MustGetManager() *Manager {
	manager, err := GetManager()
	if err != nil {
		panic(err)
	}
	return manager
}

// openRing opens the OS keyring using native platform backends only.
// Forces use of macOS Keychain or Windows Credential Manager - no file fallback.
func openRing() (keyring.Keyring, error) {
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		return nil, errors.New("secure storage not supported on this OS (macOS/Windows only)")
	}

	var allowedBackends []keyring.BackendType
	if runtime.GOOS == "darwin" {
		// Try macOS Keychain first, then pass (password store) as fallback.
		// Pass requires the 'pass' utility installed: brew install pass
		allowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.PassBackend,
		}
	} else if runtime.GOOS == "windows" {
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
	}

	// Hint prefixes where supported to minimize namespace collisions
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}

	return ring, nil
}

// SaveSessionTokens stores session and master tokens in the OS keychain.
// Empty values leave the corresponding entry untouched.
// This method is thread-safe.
func (m *Manager) SaveSessionTokens(sessionToken, masterToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if sessionToken != "" {
			if err := m.backend.Set(KeySessionToken, sessionToken); err != nil {
				return err
			}
		}
		if masterToken != "" {
			if err := m.backend.Set(KeyMasterToken, masterToken); err != nil {
				return err
			}
		}
		return nil
	}

	if sessionToken != "" {
		if err := m.ring.Set(keyring.Item{Key: KeySessionToken, Data: []byte(sessionToken)}); err != nil {
			return err
		}
	}
	if masterToken != "" {
		if err := m.ring.Set(keyring.Item{Key: KeyMasterToken, Data: []byte(masterToken)}); err != nil {
			return err
		}
	}
	return nil
}

// LoadSessionToken retrieves the session token from the keychain.
// This method is thread-safe.
func (m *Manager) LoadSessionToken() (string, error) {
	return m.load(KeySessionToken)
}

// LoadMasterToken retrieves the master token from the keychain.
// This method is thread-safe.
func (m *Manager) LoadMasterToken() (string, error) {
	return m.load(KeyMasterToken)
}

func (m *Manager) load(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		v, err := m.backend.Get(key)
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", errors.New("empty " + key)
		}
		return v, nil
	}

	it, err := m.ring.Get(key)
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", errors.New("empty " + key)
	}
	return string(it.Data), nil
}

// SaveConnState stores serialized connection state in the keychain.
// This method is thread-safe.
func (m *Manager) SaveConnState(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(KeyConnState, string(data))
	}

	return m.ring.Set(keyring.Item{Key: KeyConnState, Data: data})
}

// LoadConnState retrieves serialized connection state from the keychain.
// This method is thread-safe.
func (m *Manager) LoadConnState() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		data, err := m.backend.Get(KeyConnState)
		if err != nil {
			return nil, err
		}
		return []byte(data), nil
	}

	it, err := m.ring.Get(KeyConnState)
	if err != nil {
		return nil, err
	}
	return it.Data, nil
}

// ClearAuth removes all session-related secrets from the keychain.
// This method is thread-safe.
func (m *Manager) ClearAuth() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		_ = m.backend.Delete(KeySessionToken)
		_ = m.backend.Delete(KeyMasterToken)
		_ = m.backend.Delete(KeyConnState)
		return nil
	}

	_ = m.ring.Remove(KeySessionToken)
	_ = m.ring.Remove(KeyMasterToken)
	_ = m.ring.Remove(KeyConnState)
	return nil
}
