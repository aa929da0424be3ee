package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/testutil"
)

func TestCLIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
		want string
	}{
		{
			name: "message only",
			err:  New(ExitGeneral, "Something went wrong"),
			want: "Something went wrong",
		},
		{
			name: "with cause",
			err:  Wrap(ExitNetwork, "Cannot reach the backend", errors.New("connection refused")),
			want: "Cannot reach the backend: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ExitGeneral, "wrapper", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	var target *CLIError
	if !As(fmt.Errorf("outer: %w", err), &target) {
		t.Fatal("As should find the CLIError")
	}

	if target.Message != "wrapper" {
		t.Errorf("Message = %q", target.Message)
	}
}

func TestFromClientError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
		wantHint string
	}{
		{
			name:     "soft timeout is informational",
			err:      &client.Error{Kind: client.KindSoftTimeout, Message: client.MessageStillProcessing},
			wantCode: ExitSuccess,
			wantMsg:  "still processing",
		},
		{
			name:     "hard timeout",
			err:      &client.Error{Kind: client.KindHardTimeout, Message: "request timed out after 15s"},
			wantCode: ExitTimeout,
			wantMsg:  "Request timed out",
		},
		{
			name:     "connection failed",
			err:      &client.Error{Kind: client.KindConnectionFailed, Message: "unable to reach backend"},
			wantCode: ExitNetwork,
			wantMsg:  "Cannot reach the backend",
		},
		{
			name:     "rate limited",
			err:      fmt.Errorf("predict: %w", &client.Error{Kind: client.KindRateLimited, RetryAfter: 42 * time.Second}),
			wantCode: ExitRateLimited,
			wantMsg:  "Rate limit exceeded",
			wantHint: "Try again in 42s",
		},
		{
			name:     "auth required",
			err:      &client.Error{Kind: client.KindAuthRequired, StatusCode: 401},
			wantCode: ExitAuth,
			wantMsg:  "Authentication required",
			wantHint: "lookout auth login",
		},
		{
			name:     "server error",
			err:      &client.Error{Kind: client.KindServerError, StatusCode: 500, Message: "db down"},
			wantCode: ExitNetwork,
			wantMsg:  "Backend error (500): db down",
		},
		{
			name:     "plain error",
			err:      errors.New("failed to parse response"),
			wantCode: ExitGeneral,
			wantMsg:  "Failed to run prediction",
		},
		{
			name:     "existing cli error passes through",
			err:      InvalidHorizon("weekly", client.Horizons),
			wantCode: ExitUsage,
			wantMsg:  "Invalid horizon: weekly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromClientError("run prediction", tt.err)

			if got.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", got.Code, tt.wantCode)
			}

			if !strings.Contains(got.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want to contain %q", got.Message, tt.wantMsg)
			}

			if !strings.Contains(got.Hint, tt.wantHint) {
				t.Errorf("Hint = %q, want to contain %q", got.Hint, tt.wantHint)
			}
		})
	}

	if FromClientError("noop", nil) != nil {
		t.Error("FromClientError(nil) should be nil")
	}
}

func TestInformational(t *testing.T) {
	if !StillProcessing().Informational() {
		t.Error("StillProcessing should be informational")
	}

	if RateLimited(time.Second).Informational() {
		t.Error("RateLimited should not be informational")
	}
}

// formatCLIError produces a deterministic string representation of a CLIError for golden file comparison.
func formatCLIError(err *CLIError) string {
	return fmt.Sprintf("Message: %s\nHint: %s\nCode: %d\n", err.Message, err.Hint, err.Code)
}

func TestErrorMessages_Golden(t *testing.T) {
	tests := []struct {
		name string
		err  *CLIError
	}{
		{"NotAuthenticated", NotAuthenticated()},
		{"AuthRequired", AuthRequired(nil)},
		{"AuthFailed", AuthFailed(nil)},
		{"CannotPrompt", CannotPrompt("LOOKOUT_TOKEN")},
		{"TokenEmpty", TokenEmpty()},
		{"ConfigFailed", ConfigFailed("store credentials", nil)},
		{"InvalidHorizon", InvalidHorizon("weekly", []string{"intraday", "short", "long"})},
		{"BackendUnreachable", BackendUnreachable(nil)},
		{"RequestTimedOut", RequestTimedOut(nil)},
		{"RateLimited", RateLimited(60 * time.Second)},
		{"StillProcessing", StillProcessing()},
		{"BackendError", BackendError(503, "model server offline")},
		{"BackendError_NoStatus", BackendError(0, "")},
		{"NotOperational", NotOperational("engine initializing")},
	}

	var sb strings.Builder
	for _, tt := range tests {
		fmt.Fprintf(&sb, "--- %s ---\n", tt.name)
		sb.WriteString(formatCLIError(tt.err))
		sb.WriteString("\n")
	}

	testutil.AssertGolden(t, sb.String(), "error_messages.golden")
}
