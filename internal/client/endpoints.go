package client

import "strings"

// Profile tells the classifier how to treat a deadline expiry on an endpoint.
type Profile int

const (
	// ProfileStandard endpoints treat a deadline expiry as a hard failure.
	ProfileStandard Profile = iota
	// ProfileLongRunning endpoints may legitimately outlive the deadline;
	// expiry means the work is still pending server-side.
	ProfileLongRunning
)

// String returns the profile name.
func (p Profile) String() string {
	if p == ProfileLongRunning {
		return "long-running"
	}

	return "standard"
}

// DefaultLongRunning lists the path substrings of model-backed endpoints.
var DefaultLongRunning = []string{
	"/tools/predict",
	"/tools/scan_all",
	"/tools/analyze",
	"/tools/train_rl",
	"/tools/fetch_data",
}

// Profiles is a static allow-list of long-running path substrings.
type Profiles struct {
	longRunning []string
}

// NewProfiles builds an allow-list. Blank entries are ignored.
func NewProfiles(longRunning []string) Profiles {
	patterns := make([]string, 0, len(longRunning))

	for _, p := range longRunning {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}

	return Profiles{longRunning: patterns}
}

// Profile classifies path.
func (p Profiles) Profile(path string) Profile {
	for _, pattern := range p.longRunning {
		if strings.Contains(path, pattern) {
			return ProfileLongRunning
		}
	}

	return ProfileStandard
}

// Patterns returns a copy of the configured substrings.
func (p Profiles) Patterns() []string {
	return append([]string(nil), p.longRunning...)
}
