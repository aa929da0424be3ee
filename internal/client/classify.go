package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Messages surfaced for outcomes that carry no server-provided text.
const (
	MessageStillProcessing  = "request is still processing on the server; wait for it to finish instead of retrying"
	MessageRequestCanceled  = "request canceled"
	MessageAuthRequired     = "authentication required"
	MessageAuthDisabled401  = "server rejected the request although authentication is disabled"
	messageGenericFailure   = "request failed with status %d"
	messageRateLimitDefault = "rate limit exceeded; retry after %d seconds"
)

// RawResult is the untyped result of one transport attempt.
type RawResult struct {
	// StatusCode and Body are set when a response was received.
	StatusCode int
	Body       []byte

	// Err is set when no response was received.
	Err error

	// BodyErr is set when a response arrived but its body could not be read
	// in full. Body then holds whatever was read.
	BodyErr error
}

// CredentialInvalidator clears a rejected credential.
type CredentialInvalidator interface {
	InvalidateCredential() (invalidated bool, err error)
	AuthDisabled() bool
}

// Classifier maps raw transport results to outcomes.
type Classifier struct {
	profiles    Profiles
	credentials CredentialInvalidator
	timeout     time.Duration
	logger      *slog.Logger
}

// NewClassifier creates a classifier. credentials may be nil, in which case
// 401 responses are reported without touching any stored token.
func NewClassifier(profiles Profiles, credentials CredentialInvalidator, timeout time.Duration) *Classifier {
	return &Classifier{
		profiles:    profiles,
		credentials: credentials,
		timeout:     timeout,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger used for credential invalidation events.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	if logger != nil {
		c.logger = logger
	}

	return c
}

// Classify applies the classification rules in order. The first match wins.
func (c *Classifier) Classify(path string, raw RawResult) Outcome {
	if raw.Err != nil {
		return c.classifyTransport(path, raw.Err)
	}

	status := raw.StatusCode

	switch {
	case status == http.StatusUnauthorized:
		return c.classifyUnauthorized(raw)
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(raw.Body)
		message := extractMessage(raw.Body)

		if message == "" {
			message = fmt.Sprintf(messageRateLimitDefault, int(retryAfter/time.Second))
		}

		return Outcome{Kind: KindRateLimited, StatusCode: status, Message: message, RetryAfter: retryAfter}
	case status >= http.StatusInternalServerError:
		return serverError(status, raw.Body)
	case status < 200 || status > 299:
		return serverError(status, raw.Body)
	case raw.BodyErr != nil:
		return Outcome{
			Kind:       KindServerError,
			StatusCode: status,
			Message:    "incomplete response body: " + transportDetail(raw.BodyErr),
		}
	default:
		return Outcome{Kind: KindSuccess, StatusCode: status, Payload: json.RawMessage(raw.Body)}
	}
}

func (c *Classifier) classifyTransport(path string, err error) Outcome {
	if isDeadline(err) {
		if c.profiles.Profile(path) == ProfileLongRunning {
			return Outcome{Kind: KindSoftTimeout, Message: MessageStillProcessing}
		}

		message := "request timed out"
		if c.timeout > 0 {
			message = fmt.Sprintf("request timed out after %s", c.timeout)
		}

		return Outcome{Kind: KindHardTimeout, Message: message}
	}

	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: KindConnectionFailed, Message: MessageRequestCanceled}
	}

	return Outcome{Kind: KindConnectionFailed, Message: "unable to reach backend: " + transportDetail(err)}
}

func (c *Classifier) classifyUnauthorized(raw RawResult) Outcome {
	if c.credentials != nil && c.credentials.AuthDisabled() {
		message := extractMessage(raw.Body)
		if message == "" {
			message = MessageAuthDisabled401
		}

		return Outcome{Kind: KindServerError, StatusCode: raw.StatusCode, Message: message}
	}

	if c.credentials != nil {
		invalidated, err := c.credentials.InvalidateCredential()
		if err != nil {
			c.logger.Warn("Failed to clear rejected credential", slog.String("error", err.Error()))
		} else if invalidated {
			c.logger.Info("Cleared credential rejected by backend")
		}
	}

	return Outcome{Kind: KindAuthRequired, StatusCode: raw.StatusCode, Message: MessageAuthRequired}
}

func serverError(status int, body []byte) Outcome {
	message := extractMessage(body)
	if message == "" {
		message = fmt.Sprintf(messageGenericFailure, status)
	}

	return Outcome{Kind: KindServerError, StatusCode: status, Message: message}
}

func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// transportDetail strips the url.Error wrapper so the detail names the cause.
func transportDetail(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Error()
	}

	return err.Error()
}

// extractMessage pulls a human-readable message out of an error body. Known
// fields are tried in order: detail (string), detail.message, detail.error,
// message, error. Non-JSON bodies are returned trimmed when short.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" || len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}

		return text
	}

	switch detail := payload["detail"].(type) {
	case string:
		if detail != "" {
			return detail
		}
	case map[string]any:
		if s := stringField(detail, "message"); s != "" {
			return s
		}

		if s := stringField(detail, "error"); s != "" {
			return s
		}
	}

	if s := stringField(payload, "message"); s != "" {
		return s
	}

	return stringField(payload, "error")
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

const maxRetryAfterSeconds = 24 * 60 * 60

// parseRetryAfter reads detail.retry_after, then retry_after, in seconds.
func parseRetryAfter(body []byte) time.Duration {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return DefaultRetryAfter
	}

	if detail, ok := payload["detail"].(map[string]any); ok {
		if d, ok := secondsValue(detail["retry_after"]); ok {
			return d
		}
	}

	if d, ok := secondsValue(payload["retry_after"]); ok {
		return d
	}

	return DefaultRetryAfter
}

func secondsValue(v any) (time.Duration, bool) {
	var seconds float64

	switch value := v.(type) {
	case float64:
		seconds = value
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}

		seconds = parsed
	default:
		return 0, false
	}

	if seconds <= 0 || math.IsNaN(seconds) {
		return 0, false
	}

	if seconds > maxRetryAfterSeconds {
		seconds = maxRetryAfterSeconds
	}

	return time.Duration(math.Ceil(seconds)) * time.Second, true
}
