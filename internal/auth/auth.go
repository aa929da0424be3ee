// Package auth handles credential storage and retrieval for Lookout.
//
// Credentials are sourced in the following priority order:
//  1. Environment variable: LOOKOUT_TOKEN
//  2. OS Keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
//  3. Config file fallback: <user config dir>/lookout/token (for non-interactive environments)
//
// The special token NoAuthToken records that the backend runs with authentication
// disabled. It is stored like any other token but never sent on the wire.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/musher-dev/lookout/internal/paths"
)

const (
	// keyringService is the service name used in OS keyring storage.
	keyringService = "lookout"
	// keyringUser is the user/account name used in OS keyring storage.
	keyringUser = "bearer-token"
	// EnvVarName is the environment variable for the bearer token.
	EnvVarName = "LOOKOUT_TOKEN"

	// NoAuthToken marks a backend that runs without authentication.
	NoAuthToken = "no-auth-required"
)

// CredentialSource indicates where credentials were found.
type CredentialSource string

// Credential source constants identify where credentials were loaded from.
const (
	SourceEnv     CredentialSource = "environment variable"
	SourceKeyring CredentialSource = "keyring"
	SourceFile    CredentialSource = "config file"
	SourceNone    CredentialSource = ""
)

// IsNoAuth reports whether token is the authentication-disabled sentinel.
func IsNoAuth(token string) bool {
	return token == NoAuthToken
}

// GetCredentials returns the bearer token and its source.
// Returns empty strings if no credentials are found.
func GetCredentials() (source CredentialSource, token string) {
	// Priority 1: Environment variable
	if key := strings.TrimSpace(os.Getenv(EnvVarName)); key != "" {
		return SourceEnv, key
	}

	// Priority 2: OS Keyring
	if key, err := keyring.Get(keyringService, keyringUser); err == nil && key != "" {
		return SourceKeyring, key
	}

	// Priority 3: Config file fallback
	if key := readCredentialsFile(); key != "" {
		return SourceFile, key
	}

	return SourceNone, ""
}

// StoreToken stores the bearer token in the OS keyring.
// Falls back to file storage if keyring is unavailable.
func StoreToken(token string) error {
	err := keyring.Set(keyringService, keyringUser, token)
	if err == nil {
		return nil
	}

	return writeCredentialsFile(token)
}

// DisableAuth records that the backend runs without authentication.
func DisableAuth() error {
	return StoreToken(NoAuthToken)
}

// DeleteToken removes the stored bearer token.
func DeleteToken() error {
	keyringErr := keyring.Delete(keyringService, keyringUser)
	fileErr := deleteCredentialsFile()

	// Return error only if both failed and nothing was deleted
	if keyringErr != nil && fileErr != nil {
		return fmt.Errorf("no stored credentials found")
	}

	return nil
}

// credentialsFilePath returns the path to the credentials file.
func credentialsFilePath() string {
	path, err := paths.CredentialsFile()
	if err != nil {
		return ""
	}

	return filepath.Clean(path)
}

// readCredentialsFile reads the token from the file fallback.
func readCredentialsFile() string {
	path := credentialsFilePath()
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

// writeCredentialsFile writes the token to the file fallback.
func writeCredentialsFile(token string) error {
	path := credentialsFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// deleteCredentialsFile removes the credentials file.
func deleteCredentialsFile() error {
	path := credentialsFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found")
	}

	if err != nil {
		return fmt.Errorf("remove credentials file: %w", err)
	}

	return nil
}
