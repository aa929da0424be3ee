// Package testutil provides testing utilities for the Lookout CLI.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

// update is a flag to update golden files instead of comparing.
// Usage: go test ./... -update
var update = flag.Bool("update", false, "update golden files")

var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})`)

// AssertGolden compares got against testdata/<goldenFile>.
// With -update it rewrites the golden file instead.
func AssertGolden(t *testing.T, got, goldenFile string) {
	t.Helper()

	goldenPath := GoldenPath(goldenFile)

	if *update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			t.Fatalf("failed to create testdata directory: %v", err)
		}

		if err := os.WriteFile(goldenPath, []byte(got), 0o644); err != nil {
			t.Fatalf("failed to update golden file %s: %v", goldenPath, err)
		}

		t.Logf("updated golden file: %s", goldenPath)

		return
	}

	want, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file %s does not exist; run with -update to create it", goldenPath)
		}

		t.Fatalf("failed to read golden file %s: %v", goldenPath, err)
	}

	if got != string(want) {
		t.Errorf("output mismatch for %s\n\ngot:\n%s\n\nwant:\n%s\n\nrun with -update to refresh golden files", goldenPath, got, string(want))
	}
}

// AssertGoldenPlain strips terminal escape sequences and masks RFC 3339
// timestamps before comparing, so styled renderers can share golden files
// with their plain counterparts.
func AssertGoldenPlain(t *testing.T, got, goldenFile string) {
	t.Helper()
	AssertGolden(t, Plain(got), goldenFile)
}

// Plain removes ANSI sequences and replaces timestamps with a fixed marker.
func Plain(s string) string {
	return timestampPattern.ReplaceAllString(ansi.Strip(s), "<timestamp>")
}

// GoldenPath returns the full path to a golden file in testdata.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", filename)
}

// IsolateUserDirs points HOME and the XDG roots at a fresh temp dir and clears
// the token override, so tests never read or write the real user's config,
// credentials or logs. It returns the temp root.
func IsolateUserDirs(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	t.Setenv("LOOKOUT_TOKEN", "")
	os.Unsetenv("LOOKOUT_TOKEN")

	return root
}
