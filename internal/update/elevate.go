package update

import (
	"errors"
	"os"
)

// ErrElevationUnsupported is returned by ReExecWithSudo where the platform
// has no way to re-run lookout with more privileges.
var ErrElevationUnsupported = errors.New("automatic elevation is not supported on this platform")

// canReplaceIn reports whether a new binary can be staged in dir. It creates
// and removes a scratch file, which also catches ACLs that permission bits
// alone do not show.
func canReplaceIn(dir string) bool {
	f, err := os.CreateTemp(dir, ".lookout-update-*")
	if err != nil {
		return false
	}

	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return true
}
