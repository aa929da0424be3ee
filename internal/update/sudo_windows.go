//go:build windows

package update

import (
	"fmt"
	"path/filepath"
)

// NeedsElevation reports whether lookout.exe's folder rejects a scratch write,
// as it does under Program Files for a non-Administrator shell.
func NeedsElevation(binaryPath string) bool {
	return !canReplaceIn(filepath.Dir(binaryPath))
}

// ReExecWithSudo always fails on Windows. UAC prompts cannot be raised for
// an already running console process.
func ReExecWithSudo() error {
	return fmt.Errorf("re-run from an Administrator terminal: %w", ErrElevationUnsupported)
}
