package readiness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/testutil"
)

type fakeConnectivity struct {
	connected bool
}

func (f fakeConnectivity) CheckConnection(context.Context) client.ConnectionStatus {
	if !f.connected {
		return client.ConnectionStatus{Err: &client.Error{Kind: client.KindConnectionFailed, Message: "refused"}}
	}

	return client.ConnectionStatus{Connected: true}
}

type fakeHealth struct {
	snapshot probe.Snapshot
}

func (f fakeHealth) CheckNow(context.Context) probe.Snapshot { return f.snapshot }

type fakeCanary struct {
	err   error
	calls atomic.Int32
	req   atomic.Pointer[client.PredictRequest]
}

func (f *fakeCanary) Predict(_ context.Context, req *client.PredictRequest) ([]client.Prediction, error) {
	f.calls.Add(1)
	f.req.Store(req)

	if f.err != nil {
		return nil, f.err
	}

	return []client.Prediction{{Symbol: req.Symbols[0]}}, nil
}

func TestComposer_Check(t *testing.T) {
	healthy := probe.Snapshot{Healthy: true, Status: probe.StatusOK}

	tests := []struct {
		name            string
		connected       bool
		health          probe.Snapshot
		canaryErr       error
		wantOperational bool
		wantCanQuery    bool
		wantMessage     string
		wantCanaryCalls int32
	}{
		{
			name:        "unreachable",
			connected:   false,
			health:      healthy,
			wantMessage: MessageUnreachable,
		},
		{
			name:        "unhealthy with message",
			connected:   true,
			health:      probe.Snapshot{Status: probe.StatusError, Message: "database offline"},
			wantMessage: "database offline",
		},
		{
			name:        "unhealthy without message",
			connected:   true,
			health:      probe.Snapshot{Status: probe.StatusDegraded},
			wantMessage: MessageUnavailable,
		},
		{
			name:            "canary soft timeout",
			connected:       true,
			health:          healthy,
			canaryErr:       &client.Error{Kind: client.KindSoftTimeout, Message: client.MessageStillProcessing},
			wantOperational: true,
			wantMessage:     MessageEngineInitializing,
			wantCanaryCalls: 1,
		},
		{
			name:            "canary server error",
			connected:       true,
			health:          healthy,
			canaryErr:       &client.Error{Kind: client.KindServerError, Message: "model not loaded"},
			wantOperational: true,
			wantMessage:     MessageEngineInitializing,
			wantCanaryCalls: 1,
		},
		{
			name:            "canary plain error",
			connected:       true,
			health:          healthy,
			canaryErr:       errors.New("failed to parse response"),
			wantOperational: true,
			wantMessage:     MessageEngineInitializing,
			wantCanaryCalls: 1,
		},
		{
			name:            "fully operational",
			connected:       true,
			health:          healthy,
			wantOperational: true,
			wantCanQuery:    true,
			wantCanaryCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canary := &fakeCanary{err: tt.canaryErr}
			composer := New(fakeConnectivity{connected: tt.connected}, fakeHealth{snapshot: tt.health}, canary)

			got := composer.Check(context.Background())

			if got.Operational != tt.wantOperational || got.CanQuery != tt.wantCanQuery {
				t.Errorf("verdict = %+v, want operational=%v canQuery=%v", got, tt.wantOperational, tt.wantCanQuery)
			}

			if got.ErrorMessage != tt.wantMessage {
				t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, tt.wantMessage)
			}

			if !got.Operational && got.ErrorMessage == "" {
				t.Error("non-operational verdict must carry a message")
			}

			if got.CheckedAt.IsZero() {
				t.Error("CheckedAt should be set")
			}

			if calls := canary.calls.Load(); calls != tt.wantCanaryCalls {
				t.Errorf("canary calls = %d, want %d", calls, tt.wantCanaryCalls)
			}
		})
	}
}

func TestComposer_CheckSpan(t *testing.T) {
	tests := []struct {
		name            string
		connected       bool
		wantOperational bool
		wantCanQuery    bool
	}{
		{name: "operational", connected: true, wantOperational: true, wantCanQuery: true},
		{name: "unreachable", connected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := testutil.RecordSpans(t)

			composer := New(fakeConnectivity{connected: tt.connected}, fakeHealth{snapshot: probe.Snapshot{Healthy: true}}, &fakeCanary{})
			composer.Check(context.Background())

			span := testutil.EndedSpan(t, recorder, "readiness.check")

			if scope := span.InstrumentationScope().Name; scope != "github.com/musher-dev/lookout/readiness" {
				t.Errorf("scope = %q", scope)
			}

			got := map[attribute.Key]bool{}
			for _, kv := range span.Attributes() {
				got[kv.Key] = kv.Value.AsBool()
			}

			if got["readiness.operational"] != tt.wantOperational {
				t.Errorf("readiness.operational = %v, want %v", got["readiness.operational"], tt.wantOperational)
			}

			if got["readiness.can_query"] != tt.wantCanQuery {
				t.Errorf("readiness.can_query = %v, want %v", got["readiness.can_query"], tt.wantCanQuery)
			}
		})
	}
}

func TestComposer_CanaryRequest(t *testing.T) {
	canary := &fakeCanary{}
	composer := New(fakeConnectivity{connected: true}, fakeHealth{snapshot: probe.Snapshot{Healthy: true}}, canary)

	composer.Check(context.Background())

	req := canary.req.Load()
	if req == nil || len(req.Symbols) != 1 || req.Symbols[0] != "AAPL" || req.Horizon != "intraday" {
		t.Errorf("default canary request = %+v", req)
	}

	composer.WithCanary(" msft ", "")
	composer.Check(context.Background())

	req = canary.req.Load()
	if req.Symbols[0] != "MSFT" || req.Horizon != "intraday" {
		t.Errorf("custom canary request = %+v", req)
	}
}
