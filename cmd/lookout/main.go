// Package main is the entry point for the Lookout CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/buildinfo"
	"github.com/musher-dev/lookout/internal/config"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/observability"
	"github.com/musher-dev/lookout/internal/output"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const apiURLEnv = "LOOKOUT_API_URL"

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Restore cursor visibility if a spinner or the watch board was running.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, "\033[?25h")
			panic(r)
		}
	}()

	buildinfo.Version = version
	buildinfo.Commit = commit

	out := output.Default()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return handleError(out, err)
	}

	return 0
}

// handleError prints err and returns the exit code. Informational CLIErrors
// (a long-running request still processing on the server) are shown as
// notices and exit 0.
func handleError(out *output.Writer, err error) int {
	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		if cliErr.Informational() {
			out.Info("%s", cliErr.Message)
		} else {
			out.Failure("%s", cliErr.Message)
		}

		if cliErr.Hint != "" {
			out.Muted("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	errStr := err.Error()

	// Cobra: "unknown command \"xyz\" for \"lookout\"\n\nDid you mean this?\n\t..."
	if strings.HasPrefix(errStr, "unknown command") {
		out.Failure("%s", errStr)

		if !strings.Contains(errStr, "--help") {
			out.Info("Run 'lookout --help' for usage")
		}

		return clierrors.ExitUsage
	}

	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "required flag") ||
		strings.HasPrefix(errStr, "accepts ") ||
		strings.HasPrefix(errStr, "requires at least") {
		out.Failure("%s", errStr)
		out.Info("Run 'lookout --help' for usage")

		return clierrors.ExitUsage
	}

	out.Failure("%s", errStr)

	return clierrors.ExitGeneral
}

func newRootCmd() *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
		noColor    bool
		noInput    bool
		apiURL     string
		logLevel   string
		logFormat  string
		logFile    string
		logStderr  string
	)

	out := output.Default()

	rootCmd := &cobra.Command{
		Use:   "lookout",
		Short: "Lookout - Resilient client for the prediction backend",
		Long: `Lookout talks to the market prediction backend on your behalf. It classifies
every failure, retries lost connections once, waits out rate limits, keeps a
live push channel open with bounded reconnects, and tells you whether the
system is actually usable right now.

Get started:
  lookout auth login      Store a bearer token (or record that auth is disabled)
  lookout status          Check whether predictions can be served
  lookout predict AAPL    Request a prediction
  lookout watch AAPL MSFT Stream live prices
  lookout doctor          Diagnose common issues`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			out.JSON = pickBoolFlagOrEnv(jsonOutput, "LOOKOUT_JSON")
			out.Quiet = pickBoolFlagOrEnv(quiet, "LOOKOUT_QUIET")
			out.NoInput = pickBoolFlagOrEnv(noInput, "LOOKOUT_NO_INPUT") || pickBoolFlagOrEnv(false, "CI")

			if noColor {
				out.SetNoColor(true)

				color.NoColor = true
			}

			if strings.TrimSpace(apiURL) != "" {
				validated, err := validateAPIURL(apiURL)
				if err != nil {
					return &clierrors.CLIError{
						Message: fmt.Sprintf("Invalid API URL: %v", err),
						Hint:    "Use a full URL such as http://localhost:8000",
						Code:    clierrors.ExitUsage,
					}
				}

				// config.Load picks this up through viper's env binding.
				if err := os.Setenv(apiURLEnv, validated); err != nil {
					return clierrors.ConfigFailed("apply --api-url", err)
				}
			}

			logCfg := observability.Config{
				Level:          pickFlagOrEnv(logLevel, "LOOKOUT_LOG_LEVEL", "info"),
				Format:         pickFlagOrEnv(logFormat, "LOOKOUT_LOG_FORMAT", "json"),
				LogFile:        pickFlagOrEnv(logFile, "LOOKOUT_LOG_FILE", ""),
				StderrMode:     pickFlagOrEnv(logStderr, "LOOKOUT_LOG_STDERR", "auto"),
				InteractiveTTY: out.Terminal().IsTTY && isInteractiveCommand(cmd.CommandPath()),
				SessionID:      uuid.NewString(),
				CommandPath:    cmd.CommandPath(),
				BackendURL:     config.Load().APIURL(),
				Version:        version,
				Commit:         commit,
			}

			logger, cleanup, err := observability.NewLogger(&logCfg)
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			ctx := out.WithContext(cmd.Context())
			ctx = observability.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cleanup != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, cleanup)
			}

			telemetryCfg := &observability.TelemetryConfig{
				Enabled:   observability.IsTelemetryEnabled(),
				Version:   version,
				Commit:    commit,
				SessionID: logCfg.SessionID,
				Command:   logCfg.CommandPath,
				APIURL:    logCfg.BackendURL,
			}

			telemetryShutdown, telemetryErr := observability.SetupTelemetry(ctx, telemetryCfg)
			if telemetryErr != nil {
				logger.Warn("telemetry initialization failed", slog.String("error", telemetryErr.Error()))
			}

			if telemetryShutdown != nil {
				cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()

					return telemetryShutdown(shutdownCtx)
				})
			}

			if shouldCheckForUpdates(cmd, version, out.Quiet, out.JSON) {
				updateWg.Go(func() {
					backgroundUpdateCheck(version)
				})
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			updateWg.Wait()

			if shouldCheckForUpdates(cmd, version, out.Quiet, out.JSON) {
				showUpdateNotice(out, version)
			}

			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Minimal output (for CI)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides api.url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error, warn, info, debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json, text")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Optional structured log file path")
	rootCmd.PersistentFlags().StringVar(&logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")

	rootCmd.SuggestionsMinimumDistance = 2

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.CLIError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	// Backend tools
	rootCmd.AddCommand(newPredictCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newTradeCmd())
	rootCmd.AddCommand(newFeedbackCmd())
	rootCmd.AddCommand(newWatchCmd())

	// Readiness and diagnostics
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDoctorCmd())

	// Resource commands (noun-first)
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())

	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func wrapPostRunCleanup(postRun func(*cobra.Command, []string) error, cleanup func() error) func(*cobra.Command, []string) error {
	return wrapNamedPostRunCleanup(postRun, "logger resources", cleanup)
}

func wrapNamedPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func validateAPIURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", trimmed, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("missing host in %q", trimmed)
	}

	return strings.TrimRight(trimmed, "/"), nil
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	v := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))

	return v == "1" || v == "true" || v == "yes"
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	trimmed := strings.TrimSpace(flagValue)
	if trimmed != "" {
		return trimmed
	}

	if envValue := strings.TrimSpace(os.Getenv(envKey)); envValue != "" {
		return envValue
	}

	return fallback
}

// isInteractiveCommand reports whether the command owns the terminal, in
// which case logs must not be interleaved on stderr.
func isInteractiveCommand(path string) bool {
	return path == "lookout watch" || strings.HasPrefix(path, "lookout watch ")
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	UserAgent string `json:"user_agent"`
}

// noArgs rejects positional arguments with a friendlier message than cobra.NoArgs.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &clierrors.CLIError{
			Message: fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath()),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the lookout binary version, git commit, and build date.`,
		Example: `  lookout version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if out.JSON {
				return out.PrintJSON(VersionInfo{
					Version:   version,
					Commit:    commit,
					Date:      date,
					UserAgent: buildinfo.UserAgent(),
				})
			}

			out.Print("lookout %s\n", version)
			out.Print("  commit: %s\n", commit)
			out.Print("  built:  %s\n", date)

			return nil
		},
	}
}
