package main

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/musher-dev/lookout/internal/buildinfo"
	"github.com/musher-dev/lookout/internal/testutil"
	"github.com/musher-dev/lookout/internal/update"
)

func setVersion(t *testing.T, v string) {
	t.Helper()

	old := buildinfo.Version
	buildinfo.Version = v

	t.Cleanup(func() { buildinfo.Version = old })
}

func TestUpdateCmd_DisabledByEnv(t *testing.T) {
	testutil.IsolateUserDirs(t)
	t.Setenv("LOOKOUT_UPDATE_DISABLED", "1")

	out, stdout, _ := testWriter()

	cmd := newUpdateCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "disabled") {
		t.Errorf("stdout = %q, want a disabled notice", stdout.String())
	}
}

func TestUpdateCmd_DevBuild(t *testing.T) {
	testutil.IsolateUserDirs(t)
	t.Setenv("LOOKOUT_UPDATE_DISABLED", "")
	setVersion(t, "dev")

	out, stdout, _ := testWriter()

	cmd := newUpdateCmd()
	cmd.SetArgs([]string{"--check"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(out.WithContext(t.Context()))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "Development build") {
		t.Errorf("stdout = %q, want a development build notice", stdout.String())
	}
}

func TestShowUpdateNotice(t *testing.T) {
	testutil.IsolateUserDirs(t)

	if err := update.SaveState(&update.State{LastCheckedAt: time.Now(), LatestVersion: "2.0.0"}); err != nil {
		t.Fatal(err)
	}

	out, stdout, _ := testWriter()
	showUpdateNotice(out, "1.0.0")

	if !strings.Contains(stdout.String(), "v1.0.0 -> v2.0.0") {
		t.Errorf("stdout = %q, want the version transition", stdout.String())
	}

	if got := cachedLatestRelease(); got != "2.0.0" {
		t.Errorf("cachedLatestRelease() = %q, want 2.0.0", got)
	}

	stdout.Reset()
	showUpdateNotice(out, "2.0.0")

	if stdout.Len() != 0 {
		t.Errorf("up-to-date notice printed %q", stdout.String())
	}
}

func TestShouldCheckForUpdates(t *testing.T) {
	t.Setenv("LOOKOUT_UPDATE_DISABLED", "")

	root := newRootCmd()

	tests := []struct {
		name    string
		args    []string
		version string
		quiet   bool
		json    bool
		want    bool
	}{
		{name: "release build", args: []string{"status"}, version: "1.0.0", want: true},
		{name: "dev build", args: []string{"status"}, version: "dev"},
		{name: "quiet", args: []string{"status"}, version: "1.0.0", quiet: true},
		{name: "json", args: []string{"status"}, version: "1.0.0", json: true},
		{name: "update itself", args: []string{"update"}, version: "1.0.0"},
		{name: "watch", args: []string{"watch"}, version: "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := root.Find(tt.args)
			if err != nil {
				t.Fatal(err)
			}

			if got := shouldCheckForUpdates(cmd, tt.version, tt.quiet, tt.json); got != tt.want {
				t.Errorf("shouldCheckForUpdates() = %v, want %v", got, tt.want)
			}
		})
	}
}
