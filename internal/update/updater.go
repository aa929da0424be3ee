// Package update checks GitHub Releases for newer lookout builds and
// replaces the running binary with a checksum-verified release.
package update

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	selfupdate "github.com/creativeprojects/go-selfupdate"
)

const (
	repoSlug = "musher-dev/lookout"

	// ReleasesURL is where published builds are listed.
	ReleasesURL = "https://github.com/" + repoSlug + "/releases"
)

// IsDisabled reports whether LOOKOUT_UPDATE_DISABLED turns release checks off.
func IsDisabled() bool {
	v := os.Getenv("LOOKOUT_UPDATE_DISABLED")
	return v == "1" || strings.EqualFold(v, "true")
}

// Info is the outcome of a release check.
type Info struct {
	CurrentVersion  string `json:"currentVersion"`
	LatestVersion   string `json:"latestVersion"`
	UpdateAvailable bool   `json:"updateAvailable"`
	ReleaseURL      string `json:"releaseURL,omitempty"`

	release *selfupdate.Release
}

// Installable reports whether a release asset exists for this platform.
func (i *Info) Installable() bool {
	return i.release != nil
}

// Updater checks for and installs releases.
type Updater struct {
	updater *selfupdate.Updater
}

// Option configures an Updater.
type Option func(*selfupdate.GitHubConfig)

// WithBaseURL points the release source at a GitHub Enterprise style API root.
func WithBaseURL(url string) Option {
	return func(c *selfupdate.GitHubConfig) {
		c.EnterpriseBaseURL = url
	}
}

// NewUpdater creates an Updater backed by GitHub Releases. GITHUB_TOKEN is
// used when set to lift the anonymous API rate limit.
func NewUpdater(opts ...Option) (*Updater, error) {
	cfg := selfupdate.GitHubConfig{APIToken: os.Getenv("GITHUB_TOKEN")}
	for _, opt := range opts {
		opt(&cfg)
	}

	source, err := selfupdate.NewGitHubSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("create github source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:    source,
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}

	return &Updater{updater: updater}, nil
}

// CheckLatest compares currentVersion with the newest published release.
// An unparseable current version (a dev build) always reports an update.
func (u *Updater) CheckLatest(ctx context.Context, currentVersion string) (*Info, error) {
	latest, found, err := u.updater.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return nil, fmt.Errorf("detect latest release: %w", err)
	}

	info := &Info{CurrentVersion: currentVersion, LatestVersion: currentVersion}
	if !found {
		return info, nil
	}

	info.LatestVersion = latest.Version()
	info.ReleaseURL = latest.URL
	info.release = latest
	info.UpdateAvailable = newer(latest.Version(), currentVersion, true)

	return info, nil
}

// Apply installs the release found by CheckLatest over the running binary.
func (u *Updater) Apply(ctx context.Context, info *Info) error {
	if info.release == nil {
		return fmt.Errorf("no release asset for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	return u.install(ctx, info.release)
}

// ApplyVersion installs a specific release and returns its version.
func (u *Updater) ApplyVersion(ctx context.Context, version string) (string, error) {
	version = strings.TrimPrefix(version, "v")

	release, found, err := u.updater.DetectVersion(ctx, selfupdate.ParseSlug(repoSlug), version)
	if err != nil {
		return "", fmt.Errorf("detect version %s: %w", version, err)
	}

	if !found {
		return "", fmt.Errorf("version %s not found", version)
	}

	if err := u.install(ctx, release); err != nil {
		return "", err
	}

	return release.Version(), nil
}

func (u *Updater) install(ctx context.Context, release *selfupdate.Release) error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("find executable path: %w", err)
	}

	if err := u.updater.UpdateTo(ctx, release, execPath); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	return nil
}

// ExecutablePath resolves the running binary, following symlinks.
func ExecutablePath() (string, error) {
	path, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", fmt.Errorf("find executable path: %w", err)
	}

	return path, nil
}

// newer reports whether latest is a higher semver than current. onBadCurrent
// is returned when current does not parse.
func newer(latest, current string, onBadCurrent bool) bool {
	if latest == "" || current == "" {
		return false
	}

	cur, err := semver.NewVersion(current)
	if err != nil {
		return onBadCurrent
	}

	lat, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	return lat.GreaterThan(cur)
}
