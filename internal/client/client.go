// Package client provides the resilient request client for the prediction backend.
//
// Every call is classified into exactly one Outcome kind:
//   - Success, with the raw JSON payload
//   - SoftTimeout, when a long-running endpoint outlives its deadline
//   - HardTimeout, when a standard endpoint outlives its deadline
//   - ConnectionFailed, retried once after a short delay
//   - RateLimited, AuthRequired and ServerError, surfaced as-is
//
// Non-success outcomes are returned as *Error so callers branch on Kind.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/musher-dev/lookout/internal/buildinfo"
	"github.com/musher-dev/lookout/internal/metrics"
	"github.com/musher-dev/lookout/internal/session"
)

const (
	// DefaultBaseURL is the default backend endpoint.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout is the per-attempt deadline.
	DefaultTimeout = 15 * time.Second
	// DefaultRetryDelay is the wait before the single retry after a connection failure.
	DefaultRetryDelay = time.Second

	maxResponseBytes = 8 << 20
)

// Request describes one logical backend call.
type Request struct {
	Method string
	Path   string
	Query  neturl.Values

	// Body is marshaled as JSON when non-nil.
	Body any
}

// Client is the backend request client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
	classifier *Classifier
	profiles   Profiles
	timeout    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a client bound to a session. The HTTP client defaults to
// NewHTTPClient; use WithHTTPClient to override it in tests.
func New(baseURL string, sess *session.Session) *Client {
	httpClient, err := NewHTTPClient()
	if err != nil {
		httpClient = &http.Client{}
	}

	if sess == nil {
		sess = session.New(nil, nil)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    sess,
		profiles:   NewProfiles(DefaultLongRunning),
		timeout:    DefaultTimeout,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
	c.rebuildClassifier()

	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		c.httpClient = httpClient
	}

	return c
}

// WithTimeout sets the per-attempt deadline.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
		c.rebuildClassifier()
	}

	return c
}

// WithRetryDelay sets the wait before the single automatic retry.
func (c *Client) WithRetryDelay(delay time.Duration) *Client {
	if delay >= 0 {
		c.retryDelay = delay
	}

	return c
}

// WithLongRunning replaces the long-running path allow-list.
func (c *Client) WithLongRunning(patterns []string) *Client {
	c.profiles = NewProfiles(patterns)
	c.rebuildClassifier()

	return c
}

// WithLogger sets the structured logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
		c.rebuildClassifier()
	}

	return c
}

func (c *Client) rebuildClassifier() {
	c.classifier = NewClassifier(c.profiles, c.session, c.timeout).WithLogger(c.logger)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session the client reads credentials from.
func (c *Client) Session() *session.Session {
	return c.session
}

// Execute performs one logical call. A ConnectionFailed outcome is retried
// exactly once after the retry delay unless ctx is done; every other kind is
// returned after the first attempt. The returned error is an *Error for every
// non-success outcome, or a plain error when the request cannot be built.
func (c *Client) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request URL: %w", err)
	}

	var body []byte

	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	op := method + " " + req.Path
	requestID := uuid.NewString()
	logger := c.logger.With(
		slog.String("component", "client"),
		slog.String("op", op),
		slog.String("request_id", requestID),
	)

	start := time.Now()

	outcome, err := c.attempt(ctx, method, target, req.Path, body, requestID)
	if err != nil {
		return nil, err
	}

	outcome.Attempts = 1

	if outcome.Kind == KindConnectionFailed && ctx.Err() == nil {
		logger.Warn("Backend unreachable, retrying once",
			slog.String("reason", outcome.Message),
			slog.Duration("delay", c.retryDelay),
		)
		metrics.ClientRetries.WithLabelValues(req.Path).Inc()

		if waitErr := sleepContext(ctx, c.retryDelay); waitErr == nil {
			retried, retryErr := c.attempt(ctx, method, target, req.Path, body, requestID)
			if retryErr != nil {
				return nil, retryErr
			}

			outcome = retried
			outcome.Attempts = 2
		}
	}

	metrics.ClientLatency.WithLabelValues(req.Path).Observe(time.Since(start).Seconds())
	metrics.ClientRequests.WithLabelValues(req.Path, outcome.Kind.String()).Inc()

	if outcome.Kind != KindSuccess {
		logger.Debug("Backend call classified",
			slog.String("outcome", outcome.Kind.String()),
			slog.Int("status", outcome.StatusCode),
			slog.Int("attempts", outcome.Attempts),
			slog.String("message", outcome.Message),
		)
	}

	return outcome, outcome.Err(op)
}

func (c *Client) attempt(ctx context.Context, method, target, path string, body []byte, requestID string) (*Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setRequestHeaders(req, requestID, body != nil)

	raw := RawResult{}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		raw.Err = err
	} else {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()

		raw.StatusCode = resp.StatusCode
		raw.Body = data
		raw.BodyErr = readErr
	}

	outcome := c.classifier.Classify(path, raw)

	switch outcome.Kind {
	case KindSuccess:
		c.session.MarkReachable(true)
	case KindConnectionFailed:
		if outcome.Message != MessageRequestCanceled {
			c.session.MarkReachable(false)
		}
	}

	return &outcome, nil
}

func (c *Client) resolve(req *Request) (string, error) {
	if !strings.HasPrefix(req.Path, "/") {
		return "", fmt.Errorf("path %q must start with /", req.Path)
	}

	target, err := neturl.Parse(c.baseURL + req.Path)
	if err != nil {
		return "", err
	}

	if target.Scheme == "" || target.Host == "" {
		return "", fmt.Errorf("base URL %q must include scheme and host", c.baseURL)
	}

	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	return target.String(), nil
}

// setRequestHeaders sets the common headers for a backend request.
func (c *Client) setRequestHeaders(req *http.Request, requestID string, hasBody bool) {
	if token, ok := c.session.BearerToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
