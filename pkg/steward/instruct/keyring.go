// Package instruct – keyring.go stores the generator API key in the
// operating system's native keyring (Linux: Secret Service, macOS:
// Keychain, Windows: Credential Manager).
//
// Secret resolution order: encrypted vault → OS keyring → environment
// (including .env) → config value.
package instruct

import (
	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "steward"

	// KeyAPIKey is the stored secret name for the generator API key.
	KeyAPIKey = "api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring. Returns empty
// string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks whether the OS keyring is accessible, via a
// write+delete cycle on a throwaway key.
func KeyringAvailable() bool {
	testKey := "__steward_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}
