package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAssertGolden_Matches(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("testdata", 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile("testdata/test.golden", []byte("expected output\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	AssertGolden(t, "expected output\n", "test.golden")
}

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "ok", "ok"},
		{"color", "\x1b[32m✓\x1b[0m healthy", "✓ healthy"},
		{"timestamp", "checked 2026-03-01T10:00:00Z", "checked <timestamp>"},
		{"offset timestamp", "at 2026-03-01T10:00:00.123+02:00.", "at <timestamp>."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plain(tt.in); got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsolateUserDirs(t *testing.T) {
	t.Setenv("LOOKOUT_TOKEN", "real-token")

	root := IsolateUserDirs(t)

	if got := os.Getenv("XDG_CONFIG_HOME"); got != filepath.Join(root, "config") {
		t.Errorf("XDG_CONFIG_HOME = %q", got)
	}

	if got := os.Getenv("XDG_STATE_HOME"); got != filepath.Join(root, "state") {
		t.Errorf("XDG_STATE_HOME = %q", got)
	}

	if _, ok := os.LookupEnv("LOOKOUT_TOKEN"); ok {
		t.Error("LOOKOUT_TOKEN should be unset")
	}
}

func TestGoldenPath(t *testing.T) {
	if got, want := GoldenPath("test.golden"), filepath.Join("testdata", "test.golden"); got != want {
		t.Errorf("GoldenPath() = %q, want %q", got, want)
	}
}
