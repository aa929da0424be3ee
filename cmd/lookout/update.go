package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/buildinfo"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		targetVersion string
		checkOnly     bool
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update lookout to the latest release",
		Long: `Update lookout from GitHub Releases.

Downloads the release for this platform, verifies it against the published
checksums, and replaces the running binary. When the install directory is not
writable the command re-runs itself under sudo.

Set LOOKOUT_UPDATE_DISABLED=1 to turn off update checks and notices.`,
		Example: `  lookout update
  lookout update --check
  lookout update --version 1.4.0
  lookout update --check --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			return runUpdate(cmd.Context(), out, targetVersion, checkOnly, force)
		},
	}

	cmd.Flags().StringVar(&targetVersion, "version", "", "Install a specific version (e.g. 1.2.3)")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinstall even when already up to date")

	return cmd
}

func runUpdate(ctx context.Context, out *output.Writer, targetVersion string, checkOnly, force bool) error {
	if update.IsDisabled() {
		out.Warning("Updates are disabled (LOOKOUT_UPDATE_DISABLED is set)")
		return nil
	}

	current := buildinfo.Version

	if current == "dev" && targetVersion == "" {
		out.Warning("Development build, cannot determine the current version")
		out.Info("Install a release build: %s", update.ReleasesURL)

		return nil
	}

	updater, err := update.NewUpdater()
	if err != nil {
		return fmt.Errorf("initialize updater: %w", err)
	}

	if targetVersion != "" {
		return installVersion(ctx, out, updater, targetVersion)
	}

	var spin *output.Spinner
	if !out.JSON {
		spin = out.Spinner("Checking for updates")
		spin.Start()
	}

	info, err := updater.CheckLatest(ctx, current)
	if err != nil {
		if spin != nil {
			spin.StopWithFailure("Update check failed")
		}

		hint := "Check your network connection and try again"
		if strings.Contains(err.Error(), "403") {
			hint = "Set GITHUB_TOKEN to avoid GitHub API rate limits"
		}

		return &clierrors.CLIError{
			Message: "Could not check for updates",
			Hint:    hint,
			Cause:   err,
			Code:    clierrors.ExitNetwork,
		}
	}

	_ = update.Record(info)

	if out.JSON {
		if err := out.PrintJSON(info); err != nil {
			return fmt.Errorf("print update info as json: %w", err)
		}

		return nil
	}

	switch {
	case !info.UpdateAvailable && !force:
		spin.StopWithSuccess(fmt.Sprintf("Already up to date (v%s)", strings.TrimPrefix(current, "v")))
		return nil
	case checkOnly:
		spin.StopWithSuccess(fmt.Sprintf("Update available: v%s -> v%s", strings.TrimPrefix(current, "v"), info.LatestVersion))
		out.Muted("Run 'lookout update' to install it")

		return nil
	case !info.Installable():
		spin.StopWithFailure("No release found for this platform")
		return &clierrors.CLIError{
			Message: "No release found for this platform",
			Hint:    "Download a build manually from " + update.ReleasesURL,
			Code:    clierrors.ExitGeneral,
		}
	case info.UpdateAvailable:
		spin.StopWithSuccess(fmt.Sprintf("Update available: v%s -> v%s", strings.TrimPrefix(current, "v"), info.LatestVersion))
	default:
		spin.StopWithSuccess(fmt.Sprintf("Reinstalling v%s", info.LatestVersion))
	}

	if elevated, err := elevateIfNeeded(); elevated || err != nil {
		return err
	}

	spin = out.Spinner(fmt.Sprintf("Downloading v%s", info.LatestVersion))
	spin.Start()

	if err := updater.Apply(ctx, info); err != nil {
		spin.StopWithFailure("Update failed")
		return fmt.Errorf("update failed: %w", err)
	}

	spin.StopWithSuccess(fmt.Sprintf("Updated to v%s", info.LatestVersion))

	if info.ReleaseURL != "" {
		out.Muted("Release notes: %s", info.ReleaseURL)
	}

	return nil
}

func installVersion(ctx context.Context, out *output.Writer, updater *update.Updater, version string) error {
	if elevated, err := elevateIfNeeded(); elevated || err != nil {
		return err
	}

	version = strings.TrimPrefix(version, "v")

	var spin *output.Spinner
	if !out.JSON {
		spin = out.Spinner(fmt.Sprintf("Installing v%s", version))
		spin.Start()
	}

	installed, err := updater.ApplyVersion(ctx, version)
	if err != nil {
		if spin != nil {
			spin.StopWithFailure(fmt.Sprintf("Failed to install v%s", version))
		}

		return &clierrors.CLIError{
			Message: fmt.Sprintf("Could not install v%s", version),
			Hint:    "Check available versions at " + update.ReleasesURL,
			Cause:   err,
			Code:    clierrors.ExitGeneral,
		}
	}

	if spin != nil {
		spin.StopWithSuccess(fmt.Sprintf("Installed v%s", installed))
	}

	return nil
}

// elevateIfNeeded re-executes under sudo when the binary's directory is not
// writable. On success the process is replaced and never returns.
func elevateIfNeeded() (bool, error) {
	execPath, err := update.ExecutablePath()
	if err != nil || !update.NeedsElevation(execPath) {
		return false, nil //nolint:nilerr // let the installer report path errors
	}

	if err := update.ReExecWithSudo(); err != nil {
		if errors.Is(err, update.ErrElevationUnsupported) {
			return true, &clierrors.CLIError{
				Message: "Cannot replace " + execPath + " without elevated permissions",
				Hint:    "Re-run 'lookout update' from an Administrator terminal",
				Cause:   err,
				Code:    clierrors.ExitGeneral,
			}
		}

		return true, fmt.Errorf("re-exec updater with sudo: %w", err)
	}

	return true, nil
}

// updateWg tracks the background release check so the post-run notice reads
// a finished state file.
var updateWg sync.WaitGroup

// Commands that neither trigger a background check nor print the notice.
var skipUpdateCommands = map[string]bool{
	"update":     true,
	"version":    true,
	"completion": true,
	"doctor":     true,
	"watch":      true,
}

func shouldCheckForUpdates(cmd *cobra.Command, ver string, quiet, jsonOut bool) bool {
	if ver == "dev" || quiet || jsonOut || update.IsDisabled() {
		return false
	}

	return !skipUpdateCommands[cmd.Name()]
}

func backgroundUpdateCheck(currentVersion string) {
	state, err := update.LoadState()
	if err != nil || !state.ShouldCheck() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updater, err := update.NewUpdater()
	if err != nil {
		return
	}

	info, err := updater.CheckLatest(ctx, currentVersion)
	if err != nil {
		return
	}

	_ = update.Record(info)
}

func showUpdateNotice(out *output.Writer, currentVersion string) {
	state, err := update.LoadState()
	if err != nil || !state.HasUpdate(currentVersion) {
		return
	}

	out.Println()
	out.Info("A new version of lookout is available: v%s -> v%s", strings.TrimPrefix(currentVersion, "v"), state.LatestVersion)
	out.Muted("  Run 'lookout update' to update")
}

// cachedLatestRelease returns the release recorded by the last check.
func cachedLatestRelease() string {
	state, err := update.LoadState()
	if err != nil {
		return ""
	}

	return state.LatestVersion
}
