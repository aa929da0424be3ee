package paths

import (
	"path/filepath"
	"testing"
)

func TestConfigRoot_UsesXDGConfigHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	got, err := ConfigRoot()
	if err != nil {
		t.Fatalf("ConfigRoot() error = %v", err)
	}

	want := filepath.Join(tmp, "lookout")
	if got != want {
		t.Fatalf("ConfigRoot() = %q, want %q", got, want)
	}
}

func TestStateRoot_UsesXDGStateHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmp)

	got, err := StateRoot()
	if err != nil {
		t.Fatalf("StateRoot() error = %v", err)
	}

	want := filepath.Join(tmp, "lookout")
	if got != want {
		t.Fatalf("StateRoot() = %q, want %q", got, want)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := t.TempDir()
	state := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfg)
	t.Setenv("XDG_STATE_HOME", state)

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{name: "config file", fn: ConfigFile, want: filepath.Join(cfg, "lookout", "config.yaml")},
		{name: "credentials file", fn: CredentialsFile, want: filepath.Join(cfg, "lookout", "token")},
		{name: "logs dir", fn: LogsDir, want: filepath.Join(state, "lookout", "logs")},
		{name: "default log file", fn: DefaultLogFile, want: filepath.Join(state, "lookout", "logs", "lookout.log")},
		{name: "update state", fn: UpdateStateFile, want: filepath.Join(state, "lookout", "update-check.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}

			if got != tt.want {
				t.Fatalf("%s = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
