// Package probe polls the backend health endpoint and publishes snapshots.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/metrics"
)

// DefaultInterval is the time between scheduled checks.
const DefaultInterval = 30 * time.Second

// Status is the normalized backend health status.
type Status string

// Health statuses.
const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
	StatusUnknown  Status = "unknown"
)

// Snapshot is an immutable view of backend health at one point in time.
type Snapshot struct {
	Healthy    bool      `json:"healthy"`
	Status     Status    `json:"status"`
	ObservedAt time.Time `json:"observedAt"`
	Message    string    `json:"message,omitempty"`
	Version    string    `json:"version,omitempty"`
}

// HealthSource performs one health call.
type HealthSource interface {
	Health(ctx context.Context) (*client.Health, error)
}

// Reachability reports the last observed backend reachability.
type Reachability interface {
	Reachable() (reachable, known bool)
}

// Prober runs periodic health checks.
type Prober struct {
	source   HealthSource
	reach    Reachability
	interval time.Duration
	logger   *slog.Logger
	onUpdate func(Snapshot)
	now      func() time.Time

	snapshot  atomic.Pointer[Snapshot]
	lastCheck atomic.Int64
	inFlight  atomic.Bool
}

// New creates a prober. reach may be nil.
func New(source HealthSource, reach Reachability, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := &Prober{
		source:   source,
		reach:    reach,
		interval: interval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	p.snapshot.Store(&Snapshot{Status: StatusUnknown, Message: "health not checked yet"})

	return p
}

// WithLogger sets the structured logger.
func (p *Prober) WithLogger(logger *slog.Logger) *Prober {
	if logger != nil {
		p.logger = logger
	}

	return p
}

// WithOnUpdate registers a callback invoked after every completed check.
// It must be set before Run.
func (p *Prober) WithOnUpdate(fn func(Snapshot)) *Prober {
	p.onUpdate = fn
	return p
}

// Interval returns the scheduled check interval.
func (p *Prober) Interval() time.Duration {
	return p.interval
}

// Snapshot returns the latest published snapshot.
func (p *Prober) Snapshot() Snapshot {
	return *p.snapshot.Load()
}

// LastCheck returns when the last check completed, or the zero time.
func (p *Prober) LastCheck() time.Time {
	ns := p.lastCheck.Load()
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}

// Run checks immediately, then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// CheckNow runs one check synchronously. It returns the current snapshot
// without probing when a check is already in flight, or when the backend is
// known to be unreachable and the last check is younger than one interval.
func (p *Prober) CheckNow(ctx context.Context) Snapshot {
	if p.reach != nil {
		if reachable, known := p.reach.Reachable(); known && !reachable {
			last := p.LastCheck()
			if !last.IsZero() && p.now().Sub(last) < p.interval {
				return p.Snapshot()
			}
		}
	}

	snap, _ := p.check(ctx)

	return snap
}

func (p *Prober) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, ran := p.check(ctx); !ran {
		p.logger.Debug("Health check skipped, previous check still running")
	}
}

// check is guarded so at most one health call is in flight.
func (p *Prober) check(ctx context.Context) (Snapshot, bool) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return p.Snapshot(), false
	}
	defer p.inFlight.Store(false)

	checkCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	var snap Snapshot

	health, err := p.source.Health(checkCtx)
	if err != nil {
		snap = Snapshot{Status: StatusError, Message: failureMessage(err)}
	} else {
		snap = Evaluate(health)
	}

	now := p.now()
	snap.ObservedAt = now

	p.snapshot.Store(&snap)
	p.lastCheck.Store(now.UnixNano())
	metrics.ProbeChecks.WithLabelValues(string(snap.Status)).Inc()

	p.logger.Debug("Health check completed",
		slog.String("status", string(snap.Status)),
		slog.Bool("healthy", snap.Healthy),
	)

	if p.onUpdate != nil {
		p.onUpdate(snap)
	}

	return snap, true
}

// Evaluate normalizes a health document. The backend is healthy when its
// status is ok or healthy, or when it reports healthy=true.
func Evaluate(health *client.Health) Snapshot {
	if health == nil {
		return Snapshot{Status: StatusUnknown, Message: "empty health response"}
	}

	raw := strings.ToLower(strings.TrimSpace(health.Status))

	var status Status

	switch raw {
	case "ok", "healthy":
		status = StatusOK
	case "degraded":
		status = StatusDegraded
	case "error", "unhealthy":
		status = StatusError
	default:
		status = StatusUnknown
	}

	healthy := raw == "ok" || raw == "healthy" || (health.Healthy != nil && *health.Healthy)

	message := strings.TrimSpace(health.Message)
	if message == "" && !healthy {
		if raw == "" {
			message = "backend did not report a health status"
		} else {
			message = fmt.Sprintf("backend reported status %q", health.Status)
		}
	}

	return Snapshot{
		Healthy: healthy,
		Status:  status,
		Message: message,
		Version: strings.TrimSpace(health.Version),
	}
}

func failureMessage(err error) string {
	var clientErr *client.Error
	if errors.As(err, &clientErr) && clientErr.Message != "" {
		return clientErr.Message
	}

	return err.Error()
}
