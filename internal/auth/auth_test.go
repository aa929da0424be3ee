package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetCredentials_FromEnv(t *testing.T) {
	t.Setenv(EnvVarName, "  test-token-123  ")

	source, token := GetCredentials()

	if source != SourceEnv {
		t.Errorf("source = %v, want %v", source, SourceEnv)
	}

	if token != "test-token-123" {
		t.Errorf("token = %q, want %q", token, "test-token-123")
	}
}

func TestCredentialsFilePath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := credentialsFilePath()

	want := filepath.Join(tmpDir, "lookout", "token")
	if path != want {
		t.Errorf("credentialsFilePath() = %q, want %q", path, want)
	}
}

func TestCredentialSource_String(t *testing.T) {
	tests := []struct {
		source CredentialSource
		want   string
	}{
		{SourceEnv, "environment variable"},
		{SourceKeyring, "keyring"},
		{SourceFile, "config file"},
		{SourceNone, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			if got := string(tt.source); got != tt.want {
				t.Errorf("CredentialSource = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteAndReadCredentialsFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	testToken := "test-token-xyz"

	if err := writeCredentialsFile(testToken); err != nil {
		t.Fatalf("writeCredentialsFile() error = %v", err)
	}

	if got := readCredentialsFile(); got != testToken {
		t.Errorf("readCredentialsFile() = %q, want %q", got, testToken)
	}

	info, err := os.Stat(credentialsFilePath())
	if err != nil {
		t.Fatalf("os.Stat() error = %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("credentials file permissions = %o, want 0600", perm)
	}
}

func TestDeleteCredentialsFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := writeCredentialsFile("test-token"); err != nil {
		t.Fatalf("writeCredentialsFile() error = %v", err)
	}

	if err := deleteCredentialsFile(); err != nil {
		t.Fatalf("deleteCredentialsFile() error = %v", err)
	}

	if _, err := os.Stat(credentialsFilePath()); !os.IsNotExist(err) {
		t.Errorf("credentials file should not exist after delete, stat err = %v", err)
	}

	if err := deleteCredentialsFile(); err == nil {
		t.Error("deleteCredentialsFile() on missing file should error")
	}
}

func TestIsNoAuth(t *testing.T) {
	if !IsNoAuth(NoAuthToken) {
		t.Errorf("IsNoAuth(%q) = false, want true", NoAuthToken)
	}

	for _, token := range []string{"", "eyJhbGciOi", "no-auth"} {
		if IsNoAuth(token) {
			t.Errorf("IsNoAuth(%q) = true, want false", token)
		}
	}
}
