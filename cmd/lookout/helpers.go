package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/auth"
	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/config"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/observability"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/prompt"
	"github.com/musher-dev/lookout/internal/readiness"
	"github.com/musher-dev/lookout/internal/session"
	"github.com/musher-dev/lookout/internal/stream"
)

// loginEntryPoint is where a rejected credential sends the user.
const loginEntryPoint = "lookout auth login"

// runtime is the wiring shared by every command that talks to the backend:
// one session, one client, and the components built on top of them.
type runtime struct {
	cfg     *config.Config
	store   *auth.PersistentStore
	session *session.Session
	client  *client.Client
	logger  *slog.Logger
}

// newRuntime loads configuration and credentials and builds the API client.
// A missing token is not an error: the backend may run without auth.
func newRuntime(ctx context.Context) *runtime {
	cfg := config.Load()
	logger := observability.FromContext(ctx)
	store := auth.NewPersistentStore()
	sess := session.New(store, session.NewReauthGuard(loginEntryPoint))

	c := client.New(cfg.APIURL(), sess).
		WithTimeout(cfg.ClientTimeout()).
		WithRetryDelay(cfg.RetryDelay()).
		WithLongRunning(cfg.LongRunning()).
		WithLogger(observability.Component(logger, "client"))

	return &runtime{
		cfg:     cfg,
		store:   store,
		session: sess,
		client:  c,
		logger:  logger,
	}
}

func (rt *runtime) prober() *probe.Prober {
	return probe.New(rt.client, rt.session, rt.cfg.ProbeInterval()).
		WithLogger(observability.Component(rt.logger, "probe"))
}

func (rt *runtime) readiness(health readiness.HealthReader) *readiness.Composer {
	return readiness.New(rt.client, health, rt.client).
		WithCanary(rt.cfg.CanarySymbol(), "").
		WithLogger(observability.Component(rt.logger, "readiness"))
}

func (rt *runtime) streamManager() (*stream.Manager, error) {
	floor, ceiling := rt.cfg.StreamBackoff()

	cfg := stream.Config{
		URL:          rt.cfg.StreamURL(),
		MaxAttempts:  rt.cfg.StreamMaxAttempts(),
		BackoffFloor: floor,
		BackoffCap:   ceiling,
	}

	if cfg.URL == "" {
		derived, err := stream.DeriveURL(rt.cfg.APIURL())
		if err != nil {
			return nil, clierrors.ConfigFailed("derive push channel URL", err)
		}

		cfg.URL = derived
	}

	return stream.NewManager(cfg, stream.NewWebSocketDialer(), rt.session).
		WithLogger(observability.Component(rt.logger, "stream")), nil
}

// streamURL returns the configured or derived push channel URL, or "".
func (rt *runtime) streamURL() string {
	if u := rt.cfg.StreamURL(); u != "" {
		return u
	}

	derived, err := stream.DeriveURL(rt.cfg.APIURL())
	if err != nil {
		return ""
	}

	return derived
}

// call runs one backend operation with the CLI's recovery policy applied:
// with wait set, a rate-limited call is retried once after a countdown; a
// rejected credential prompts for a new token once per process and retries.
// Whatever still fails is mapped to a CLIError.
func (rt *runtime) call(cmd *cobra.Command, operation string, wait bool, fn func() error) error {
	ctx := cmd.Context()
	out := output.FromContext(ctx)

	err := withRateLimitWait(ctx, out, wait, fn)
	if err == nil {
		return nil
	}

	if client.IsKind(err, client.KindAuthRequired) {
		if !rt.session.Reauth().ShouldRedirect(cmd.CommandPath()) {
			return clierrors.AuthFailed(err)
		}

		if reauthErr := rt.reauthenticate(out); reauthErr != nil {
			rt.logger.Debug("re-authentication skipped", slog.String("error", reauthErr.Error()))
			return clierrors.AuthRequired(err)
		}

		err = withRateLimitWait(ctx, out, wait, fn)
		if err == nil {
			return nil
		}

		if client.IsKind(err, client.KindAuthRequired) {
			return clierrors.AuthFailed(err)
		}
	}

	return clierrors.FromClientError(operation, err)
}

// callError maps a failed call without attempting any recovery.
func (rt *runtime) callError(cmd *cobra.Command, operation string, err error) error {
	if client.IsKind(err, client.KindAuthRequired) && !rt.session.Reauth().ShouldRedirect(cmd.CommandPath()) {
		return clierrors.AuthFailed(err)
	}

	return clierrors.FromClientError(operation, err)
}

// reauthenticate asks for a replacement token and stores it.
func (rt *runtime) reauthenticate(out *output.Writer) error {
	prompter := prompt.New(out)
	if !prompter.CanPrompt() {
		return errors.New("cannot prompt")
	}

	out.Warning("The backend rejected the stored credentials")

	token, err := prompter.Secret("Enter a new bearer token")
	if err != nil {
		return fmt.Errorf("read token prompt: %w", err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}

	if err := auth.StoreToken(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	rt.store.Reload()

	return nil
}

// withRateLimitWait runs call. When wait is set and the backend answers 429,
// it counts down the requested delay and tries exactly once more.
func withRateLimitWait(ctx context.Context, out *output.Writer, wait bool, call func() error) error {
	err := call()
	if err == nil || !wait {
		return err
	}

	retryAfter, limited := client.RetryAfter(err)
	if !limited {
		return err
	}

	if waitErr := out.Countdown(ctx, retryAfter, "Rate limited, retrying"); waitErr != nil {
		return errors.Join(err, waitErr)
	}

	return call()
}

// normalizeSymbols upper-cases symbols and drops blanks and duplicates.
func normalizeSymbols(args []string) []string {
	seen := make(map[string]bool, len(args))
	symbols := make([]string, 0, len(args))

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			s := strings.ToUpper(strings.TrimSpace(part))
			if s == "" || seen[s] {
				continue
			}

			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	return symbols
}

func requireSymbols(cmd *cobra.Command, args []string) ([]string, error) {
	symbols := normalizeSymbols(args)
	if len(symbols) == 0 {
		return nil, &clierrors.CLIError{
			Message: "At least one symbol is required",
			Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	}

	return symbols, nil
}

func validateHorizon(horizon string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(horizon))
	if !client.ValidHorizon(h) {
		return "", clierrors.InvalidHorizon(horizon, client.Horizons)
	}

	return h, nil
}
