package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/musher-dev/lookout/internal/client"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu      sync.Mutex
	calls   atomic.Int32
	health  *client.Health
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSource) Health(ctx context.Context) (*client.Health, error) {
	f.calls.Add(1)

	if f.started != nil {
		f.started <- struct{}{}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.health, f.err
}

func (f *fakeSource) set(health *client.Health, err error) {
	f.mu.Lock()
	f.health, f.err = health, err
	f.mu.Unlock()
}

type fixedReach struct {
	reachable, known bool
}

func (r fixedReach) Reachable() (bool, bool) { return r.reachable, r.known }

func boolPtr(b bool) *bool { return &b }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		health      *client.Health
		wantHealthy bool
		wantStatus  Status
		wantMessage string
	}{
		{name: "ok", health: &client.Health{Status: "ok"}, wantHealthy: true, wantStatus: StatusOK},
		{name: "healthy", health: &client.Health{Status: "Healthy"}, wantHealthy: true, wantStatus: StatusOK},
		{name: "healthy flag only", health: &client.Health{Healthy: boolPtr(true)}, wantHealthy: true, wantStatus: StatusUnknown},
		{name: "degraded", health: &client.Health{Status: "degraded", Message: "slow models"}, wantStatus: StatusDegraded, wantMessage: "slow models"},
		{name: "unhealthy", health: &client.Health{Status: "unhealthy"}, wantStatus: StatusError, wantMessage: `backend reported status "unhealthy"`},
		{name: "error", health: &client.Health{Status: "error", Message: "db down"}, wantStatus: StatusError, wantMessage: "db down"},
		{name: "unknown", health: &client.Health{Status: "booting"}, wantStatus: StatusUnknown, wantMessage: `backend reported status "booting"`},
		{name: "empty", health: &client.Health{}, wantStatus: StatusUnknown, wantMessage: "backend did not report a health status"},
		{name: "nil", health: nil, wantStatus: StatusUnknown, wantMessage: "empty health response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.health)

			if got.Healthy != tt.wantHealthy {
				t.Errorf("Healthy = %v, want %v", got.Healthy, tt.wantHealthy)
			}

			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}

			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestProber_InitialSnapshot(t *testing.T) {
	p := New(&fakeSource{}, nil, time.Minute)

	snap := p.Snapshot()
	if snap.Healthy || snap.Status != StatusUnknown {
		t.Errorf("initial snapshot = %+v, want unknown and unhealthy", snap)
	}

	if !p.LastCheck().IsZero() {
		t.Error("LastCheck() should be zero before the first check")
	}
}

func TestProber_FailureDegradesSnapshot(t *testing.T) {
	source := &fakeSource{err: &client.Error{Kind: client.KindConnectionFailed, Op: "GET /tools/health", Message: "unable to reach backend: refused"}}
	p := New(source, nil, time.Minute)

	snap := p.CheckNow(context.Background())
	if snap.Healthy || snap.Status != StatusError {
		t.Errorf("snapshot = %+v, want error and unhealthy", snap)
	}

	if snap.Message != "unable to reach backend: refused" {
		t.Errorf("Message = %q", snap.Message)
	}

	if p.LastCheck().IsZero() {
		t.Error("LastCheck() should be set after a check")
	}

	source.set(nil, errors.New("plain failure"))

	if snap := p.CheckNow(context.Background()); snap.Message != "plain failure" {
		t.Errorf("Message = %q, want plain failure", snap.Message)
	}
}

func TestProber_CheckNowSkipsWhileUnreachable(t *testing.T) {
	source := &fakeSource{health: &client.Health{Status: "ok"}}
	p := New(source, fixedReach{reachable: false, known: true}, time.Minute)

	first := p.CheckNow(context.Background())
	second := p.CheckNow(context.Background())

	if got := source.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}

	if !second.ObservedAt.Equal(first.ObservedAt) {
		t.Error("second CheckNow should return the cached snapshot")
	}

	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	p.CheckNow(context.Background())

	if got := source.calls.Load(); got != 2 {
		t.Errorf("calls after interval = %d, want 2", got)
	}
}

func TestProber_OverlappingChecksAreSuppressed(t *testing.T) {
	source := &fakeSource{
		health:  &client.Health{Status: "ok"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	p := New(source, nil, time.Minute)

	done := make(chan Snapshot)
	go func() { done <- p.CheckNow(context.Background()) }()

	<-source.started

	overlapped := p.CheckNow(context.Background())
	if overlapped.Status != StatusUnknown {
		t.Errorf("overlapping check returned %+v, want the previous snapshot", overlapped)
	}

	close(source.block)

	if snap := <-done; !snap.Healthy {
		t.Errorf("first check = %+v, want healthy", snap)
	}

	if got := source.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestProber_RunChecksImmediatelyAndStops(t *testing.T) {
	updates := make(chan Snapshot, 4)
	source := &fakeSource{health: &client.Health{Status: "healthy", Version: "4.1.0"}}

	p := New(source, nil, time.Hour).WithOnUpdate(func(s Snapshot) { updates <- s })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	select {
	case snap := <-updates:
		if !snap.Healthy || snap.Version != "4.1.0" {
			t.Errorf("snapshot = %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not check immediately")
	}

	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestProber_RunTicks(t *testing.T) {
	source := &fakeSource{health: &client.Health{Status: "ok"}}
	p := New(source, nil, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	p.Run(ctx)

	if got := source.calls.Load(); got < 3 {
		t.Errorf("calls = %d, want at least 3", got)
	}
}
