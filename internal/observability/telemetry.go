package observability

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName           = "lookout"
	instrumentationPrefix = "github.com/musher-dev/lookout/"
)

// Resource attribute keys specific to lookout.
const (
	AttrSessionID = attribute.Key("service.instance.id")
	AttrCommand   = attribute.Key("lookout.command")
	AttrAPIHost   = attribute.Key("lookout.api.host")
	AttrCommit    = attribute.Key("lookout.commit")
)

// TelemetryConfig holds the configuration for OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled bool
	// Endpoint overrides the OTLP/HTTP collector host:port.
	Endpoint string
	Version  string
	Commit   string
	// SessionID identifies one CLI invocation. It becomes service.instance.id
	// so spans from one run line up with its log lines.
	SessionID string
	// Command is the cobra command path, e.g. "lookout watch".
	Command string
	// APIURL is the platform base URL. Only its host is recorded.
	APIURL      string
	Environment string
	// SampleRatio is the fraction of root traces kept. Zero means keep all.
	SampleRatio float64
}

// TelemetryShutdown flushes pending spans and restores the previous globals.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry installs an OTLP/HTTP tracing pipeline as the global
// TracerProvider. When cfg is nil or disabled the globals are left alone and
// the returned shutdown does nothing.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := NewResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporterOpts := []otlptracehttp.Option{
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)

	restore := snapshotGlobals()

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// Export failures must never reach the terminal.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		defer restore()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

// NewResource describes this lookout process: the build, the invocation and
// the platform it talks to.
func NewResource(cfg *TelemetryConfig) (*resource.Resource, error) {
	name := serviceName
	if env := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); env != "" {
		name = env
	}

	environment := cfg.Environment
	if environment == "" {
		environment = os.Getenv("OTEL_ENVIRONMENT")
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", name),
		attribute.String("service.namespace", "musher"),
		attribute.String("os.type", runtime.GOOS),
		attribute.String("host.arch", runtime.GOARCH),
	}

	optional := []struct {
		key   attribute.Key
		value string
	}{
		{attribute.Key("service.version"), cfg.Version},
		{attribute.Key("deployment.environment.name"), environment},
		{AttrCommit, cfg.Commit},
		{AttrSessionID, cfg.SessionID},
		{AttrCommand, cfg.Command},
		{AttrAPIHost, apiHost(cfg.APIURL)},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, o.key.String(o.value))
		}
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	return res, nil
}

// Tracer returns a tracer for the named lookout component from the global
// TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationPrefix + name)
}

// IsTelemetryEnabled checks the OTEL_ENABLED env var.
func IsTelemetryEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func snapshotGlobals() func() {
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	handler := otel.GetErrorHandler()

	return func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		otel.SetErrorHandler(handler)
	}
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// apiHost strips credentials, path and query from the base URL.
func apiHost(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return u.Host
}

func noopShutdown(context.Context) error { return nil }
