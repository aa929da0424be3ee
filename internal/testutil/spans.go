package testutil

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// RecordSpans installs a synchronous in-memory TracerProvider as the global
// one for the rest of the test. Tests using it must not run in parallel.
func RecordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	orig := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = provider.Shutdown(context.Background())
	})

	return recorder
}

// EndedSpan returns the first finished span with the given name, failing the
// test when there is none.
func EndedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}

	t.Fatalf("no ended span named %q", name)

	return nil
}
