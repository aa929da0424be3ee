package update

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/musher-dev/lookout/internal/paths"
)

// CheckInterval is how long a cached release check stays fresh.
const CheckInterval = 24 * time.Hour

// State is the cached result of the last release check.
type State struct {
	LastCheckedAt  time.Time `json:"lastCheckedAt"`
	LatestVersion  string    `json:"latestVersion,omitempty"`
	CurrentVersion string    `json:"currentVersion,omitempty"`
	ReleaseURL     string    `json:"releaseURL,omitempty"`
}

// LoadState reads the cached check. A missing or corrupt file yields an empty State.
func LoadState() (*State, error) {
	path, err := paths.UpdateStateFile()
	if err != nil {
		return &State{}, nil //nolint:nilerr // no state dir means nothing cached
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path under the lookout state root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{}, nil
		}

		return nil, fmt.Errorf("read update state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return &State{}, nil //nolint:nilerr // corrupt cache is discarded
	}

	return &state, nil
}

// SaveState writes the cached check via a temp file and rename.
func SaveState(state *State) error {
	path, err := paths.UpdateStateFile()
	if err != nil {
		return fmt.Errorf("resolve update state path: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal update state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp update state: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp update state: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp update state: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		// Windows refuses to rename over an existing file.
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			return fmt.Errorf("replace update state: %w", removeErr)
		}

		if err := os.Rename(tmpName, path); err != nil {
			return fmt.Errorf("replace update state: %w", err)
		}
	}

	return nil
}

// Record saves the outcome of a check performed now.
func Record(info *Info) error {
	return SaveState(&State{
		LastCheckedAt:  time.Now(),
		LatestVersion:  info.LatestVersion,
		CurrentVersion: info.CurrentVersion,
		ReleaseURL:     info.ReleaseURL,
	})
}

// ShouldCheck reports whether the cache is older than CheckInterval.
func (s *State) ShouldCheck() bool {
	return s.LastCheckedAt.IsZero() || time.Since(s.LastCheckedAt) >= CheckInterval
}

// HasUpdate reports whether the cached release is newer than currentVersion.
// Dev builds never report a cached update.
func (s *State) HasUpdate(currentVersion string) bool {
	return newer(s.LatestVersion, currentVersion, false)
}
