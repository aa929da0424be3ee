package client

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

// NewHTTPClient builds the HTTP client used for backend calls: a pooled
// transport negotiating HTTP/2 over TLS, instrumented with client spans.
// Deadlines are carried by request contexts, so the client has no Timeout.
func NewHTTPClient() (*http.Client, error) {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	h2, err := http2.ConfigureTransports(base)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2 transport: %w", err)
	}

	h2.ReadIdleTimeout = 30 * time.Second
	h2.PingTimeout = 15 * time.Second

	return &http.Client{
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
	}, nil
}
