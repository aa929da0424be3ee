// Package errors provides structured CLI error types for Lookout.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/musher-dev/lookout/internal/client"
)

// Exit codes for CLI errors.
const (
	ExitSuccess     = 0  // Successful execution
	ExitGeneral     = 1  // General error
	ExitAuth        = 2  // Authentication error
	ExitNetwork     = 3  // Network/API error
	ExitConfig      = 4  // Configuration error
	ExitTimeout     = 5  // Request timeout
	ExitRateLimited = 6  // Backend rate limit
	ExitUnavailable = 7  // Backend reachable but not usable
	ExitUsage       = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI. ExitSuccess marks an informational
	// outcome that is reported without an error banner.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// Informational reports whether the error is an informational outcome.
func (e *CLIError) Informational() bool {
	return e.Code == ExitSuccess
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// NotAuthenticated returns an error indicating missing credentials.
func NotAuthenticated() *CLIError {
	return &CLIError{
		Message: "Not authenticated",
		Hint:    "Run 'lookout auth login' to authenticate",
		Code:    ExitAuth,
	}
}

// AuthRequired returns an error for a credential rejected by the backend.
func AuthRequired(cause error) *CLIError {
	return &CLIError{
		Message: "Authentication required",
		Hint:    "Your stored token was rejected and has been cleared. Run 'lookout auth login'",
		Cause:   cause,
		Code:    ExitAuth,
	}
}

// AuthFailed returns an error for a failed login.
func AuthFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Authentication failed",
		Hint:    "Check your username and password, or paste a token with 'lookout auth login --token'",
		Cause:   cause,
		Code:    ExitAuth,
	}
}

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(envVar string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Set %s environment variable instead", envVar),
		Code:    ExitUsage,
	}
}

// TokenEmpty returns an error when the entered token is empty.
func TokenEmpty() *CLIError {
	return &CLIError{
		Message: "Token cannot be empty",
		Hint:    "Enter a valid token or set LOOKOUT_TOKEN environment variable",
		Code:    ExitAuth,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your Lookout config directory or run 'lookout doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// InvalidHorizon returns an error for an unsupported prediction horizon.
func InvalidHorizon(horizon string, valid []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid horizon: %s", horizon),
		Hint:    fmt.Sprintf("Valid horizons: %s", strings.Join(valid, ", ")),
		Code:    ExitUsage,
	}
}

// BackendUnreachable returns an error when no response was received.
func BackendUnreachable(cause error) *CLIError {
	return &CLIError{
		Message: "Cannot reach the backend",
		Hint:    "Check api.url with 'lookout config get api.url' or run 'lookout doctor'",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// RequestTimedOut returns an error for a standard endpoint exceeding its deadline.
func RequestTimedOut(cause error) *CLIError {
	return &CLIError{
		Message: "Request timed out",
		Hint:    "Increase client.timeout or check backend load with 'lookout status'",
		Cause:   cause,
		Code:    ExitTimeout,
	}
}

// RateLimited returns an error for a rate-limited request.
func RateLimited(retryAfter time.Duration) *CLIError {
	seconds := int(retryAfter.Round(time.Second) / time.Second)

	return &CLIError{
		Message: "Rate limit exceeded",
		Hint:    fmt.Sprintf("Try again in %ds, or rerun with --wait", seconds),
		Code:    ExitRateLimited,
	}
}

// StillProcessing returns the informational outcome for a long-running
// request that outlived its deadline.
func StillProcessing() *CLIError {
	return &CLIError{
		Message: "The backend is still processing this request",
		Hint:    "Results are computed server-side; run the command again shortly instead of retrying immediately",
		Code:    ExitSuccess,
	}
}

// BackendError returns an error for a failure reported by the backend.
func BackendError(status int, message string) *CLIError {
	msg := "Backend error"
	if status > 0 {
		msg = fmt.Sprintf("Backend error (%d)", status)
	}

	if message != "" {
		msg = fmt.Sprintf("%s: %s", msg, message)
	}

	return &CLIError{
		Message: msg,
		Hint:    "Run 'lookout status' to check backend readiness",
		Code:    ExitNetwork,
	}
}

// NotOperational returns an error when the readiness verdict is negative.
func NotOperational(message string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("System not usable: %s", message),
		Hint:    "Run 'lookout doctor' for detailed diagnostics",
		Code:    ExitUnavailable,
	}
}

// FromClientError maps a classified client error to a CLIError. Errors that
// are not client errors are wrapped with ExitGeneral.
func FromClientError(operation string, err error) *CLIError {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var clientErr *client.Error
	if !errors.As(err, &clientErr) {
		return Wrap(ExitGeneral, fmt.Sprintf("Failed to %s", operation), err)
	}

	switch clientErr.Kind {
	case client.KindSoftTimeout:
		return StillProcessing()
	case client.KindHardTimeout:
		return RequestTimedOut(err)
	case client.KindConnectionFailed:
		return BackendUnreachable(err)
	case client.KindRateLimited:
		return RateLimited(clientErr.RetryAfter)
	case client.KindAuthRequired:
		return AuthRequired(err)
	default:
		return BackendError(clientErr.StatusCode, clientErr.Message)
	}
}
