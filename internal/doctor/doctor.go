// Package doctor runs diagnostic checks against the local setup and the
// prediction backend.
//
// Checks run in order and never abort the run; each one folds its failure
// into a Result so the user sees the whole picture at once.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/musher-dev/lookout/internal/auth"
	"github.com/musher-dev/lookout/internal/buildinfo"
	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/paths"
	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/readiness"
	"github.com/musher-dev/lookout/internal/stream"
)

// DefaultMinBackendVersion is the oldest backend release this CLI is tested against.
const DefaultMinBackendVersion = "1.0.0"

const pushDialTimeout = 5 * time.Second

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Backend is the subset of the API client the checks call.
type Backend interface {
	BaseURL() string
	CheckConnection(ctx context.Context) client.ConnectionStatus
	AuthStatus(ctx context.Context) (map[string]any, error)
}

// HealthReader returns a current health snapshot.
type HealthReader interface {
	CheckNow(ctx context.Context) probe.Snapshot
}

// ReadinessChecker computes the readiness verdict.
type ReadinessChecker interface {
	Check(ctx context.Context) readiness.Verdict
}

// Deps wires the checks to the running system.
type Deps struct {
	Backend           Backend
	Health            HealthReader
	Readiness         ReadinessChecker
	Dialer            stream.Dialer
	StreamURL         string
	Credentials       func() (auth.CredentialSource, string)
	MinBackendVersion string

	// LatestRelease returns the newest known release version, or "" when
	// no release check has been cached.
	LatestRelease func() string
}

// Runner executes diagnostic checks.
type Runner struct {
	deps   Deps
	checks []namedCheck

	// health is memoized for the duration of one Run.
	health *probe.Snapshot
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a runner with the default checks registered.
func New(deps Deps) *Runner {
	if deps.Credentials == nil {
		deps.Credentials = auth.GetCredentials
	}

	if deps.MinBackendVersion == "" {
		deps.MinBackendVersion = DefaultMinBackendVersion
	}

	r := &Runner{deps: deps}

	r.AddCheck("Configuration", r.checkConfiguration)
	r.AddCheck("API Connectivity", r.checkAPIConnectivity)
	r.AddCheck("Authentication", r.checkAuthentication)
	r.AddCheck("Backend Health", r.checkBackendHealth)
	r.AddCheck("Backend Version", r.checkBackendVersion)
	r.AddCheck("Prediction Engine", r.checkPredictionEngine)
	r.AddCheck("Push Channel", r.checkPushChannel)
	r.AddCheck("CLI Version", r.checkCLIVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	r.health = nil
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

func (r *Runner) checkConfiguration(context.Context) Result {
	path, err := paths.ConfigFile()
	if err != nil {
		return Result{Status: StatusWarn, Message: "Config directory unresolved", Detail: err.Error()}
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return Result{Status: StatusPass, Message: "Using defaults (no config file)"}
	}

	return Result{Status: StatusPass, Message: path}
}

func (r *Runner) checkAPIConnectivity(ctx context.Context) Result {
	apiURL := r.deps.Backend.BaseURL()
	start := time.Now()

	status := r.deps.Backend.CheckConnection(ctx)
	elapsed := time.Since(start)

	if !status.Connected {
		result := Result{Status: StatusFail, Message: apiURL}
		if status.Err != nil {
			result.Detail = status.Err.Error()
		}

		return result
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%dms)", apiURL, elapsed.Milliseconds()),
	}
}

func (r *Runner) checkAuthentication(ctx context.Context) Result {
	source, token := r.deps.Credentials()

	switch {
	case token == "":
		return Result{
			Status:  StatusWarn,
			Message: "No token stored",
			Detail:  "Run 'lookout auth login' if the backend requires authentication",
		}
	case auth.IsNoAuth(token):
		return Result{
			Status:  StatusPass,
			Message: fmt.Sprintf("Authentication disabled (via %s)", source),
		}
	}

	if _, err := r.deps.Backend.AuthStatus(ctx); err != nil {
		if client.IsKind(err, client.KindAuthRequired) {
			return Result{
				Status:  StatusFail,
				Message: fmt.Sprintf("Token rejected (via %s)", source),
				Detail:  "Run 'lookout auth login' to sign in again",
			}
		}

		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("Could not verify token (via %s)", source),
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("Token accepted (via %s)", source),
	}
}

func (r *Runner) checkBackendHealth(ctx context.Context) Result {
	snap := r.snapshot(ctx)

	switch snap.Status {
	case probe.StatusOK:
		return Result{Status: StatusPass, Message: "ok"}
	case probe.StatusDegraded:
		return Result{Status: StatusWarn, Message: "degraded", Detail: snap.Message}
	case probe.StatusError:
		return Result{Status: StatusFail, Message: "error", Detail: snap.Message}
	default:
		return Result{Status: StatusWarn, Message: "unknown", Detail: snap.Message}
	}
}

func (r *Runner) checkBackendVersion(ctx context.Context) Result {
	reported := strings.TrimSpace(r.snapshot(ctx).Version)
	if reported == "" {
		return Result{Status: StatusWarn, Message: "Not reported"}
	}

	return compareVersion(reported, r.deps.MinBackendVersion)
}

func compareVersion(reported, minimum string) Result {
	version, err := semver.NewVersion(reported)
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (unrecognized format)", reported),
		}
	}

	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return Result{Status: StatusWarn, Message: reported, Detail: err.Error()}
	}

	if !constraint.Check(version) {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (older than v%s)", version, minimum),
			Detail:  "Some commands may not be supported by this backend",
		}
	}

	return Result{Status: StatusPass, Message: "v" + version.String()}
}

func (r *Runner) checkPredictionEngine(ctx context.Context) Result {
	verdict := r.deps.Readiness.Check(ctx)

	switch {
	case verdict.CanQuery:
		return Result{Status: StatusPass, Message: "Predictions available"}
	case verdict.Operational:
		return Result{Status: StatusWarn, Message: verdict.ErrorMessage}
	default:
		return Result{Status: StatusFail, Message: verdict.ErrorMessage}
	}
}

func (r *Runner) checkPushChannel(ctx context.Context) Result {
	if r.deps.Dialer == nil || r.deps.StreamURL == "" {
		return Result{Status: StatusWarn, Message: "Not configured"}
	}

	dialCtx, cancel := context.WithTimeout(ctx, pushDialTimeout)
	defer cancel()

	_, token := r.deps.Credentials()
	if auth.IsNoAuth(token) {
		token = ""
	}

	conn, err := r.deps.Dialer.Dial(dialCtx, r.deps.StreamURL, token)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("no handshake within %s", pushDialTimeout)
		}

		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s (live updates unavailable)", r.deps.StreamURL),
			Detail:  detail,
		}
	}

	_ = conn.Close()

	return Result{Status: StatusPass, Message: r.deps.StreamURL}
}

func (r *Runner) checkCLIVersion(context.Context) Result {
	if buildinfo.Version == "dev" {
		return Result{Status: StatusWarn, Message: "Development build"}
	}

	current := strings.TrimPrefix(buildinfo.Version, "v")
	message := fmt.Sprintf("v%s (%s)", current, buildinfo.Commit)

	if r.deps.LatestRelease != nil {
		latest := strings.TrimPrefix(r.deps.LatestRelease(), "v")
		if isNewer(latest, current) {
			return Result{
				Status:  StatusWarn,
				Message: message,
				Detail:  fmt.Sprintf("v%s is available, run 'lookout update'", latest),
			}
		}
	}

	return Result{Status: StatusPass, Message: message}
}

func isNewer(latest, current string) bool {
	lat, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}

	return lat.GreaterThan(cur)
}

func (r *Runner) snapshot(ctx context.Context) probe.Snapshot {
	if r.health == nil {
		snap := r.deps.Health.CheckNow(ctx)
		r.health = &snap
	}

	return *r.health
}

// RenderResults writes one aligned line per result through the given
// printers, with details indented underneath.
func RenderResults(results []Result, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	width := 0
	for _, r := range results {
		width = max(width, len(r.Name))
	}

	for _, r := range results {
		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", width+4, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", width+4, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", width+4, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
