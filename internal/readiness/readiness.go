// Package readiness composes connectivity, health and a canary call into a
// single "is the system usable right now" verdict.
package readiness

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/musher-dev/lookout/internal/client"
	"github.com/musher-dev/lookout/internal/observability"
	"github.com/musher-dev/lookout/internal/probe"
)

// Verdict messages.
const (
	MessageUnreachable        = "unable to reach services"
	MessageUnavailable        = "services are currently unavailable"
	MessageEngineInitializing = "engine initializing"
)

// Canary defaults.
const (
	DefaultCanarySymbol  = "AAPL"
	DefaultCanaryHorizon = "intraday"
)

// Verdict is the composed readiness result.
type Verdict struct {
	Operational  bool           `json:"operational"`
	CanQuery     bool           `json:"canQuery"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CheckedAt    time.Time      `json:"checkedAt"`
	Health       probe.Snapshot `json:"health"`
}

// Connectivity checks that the backend answers at all.
type Connectivity interface {
	CheckConnection(ctx context.Context) client.ConnectionStatus
}

// HealthReader returns a current health snapshot.
type HealthReader interface {
	CheckNow(ctx context.Context) probe.Snapshot
}

// Canary performs one real business call.
type Canary interface {
	Predict(ctx context.Context, req *client.PredictRequest) ([]client.Prediction, error)
}

// Composer computes verdicts on demand.
type Composer struct {
	connectivity Connectivity
	health       HealthReader
	canary       Canary
	symbol       string
	horizon      string
	logger       *slog.Logger
}

// New creates a composer.
func New(connectivity Connectivity, health HealthReader, canary Canary) *Composer {
	return &Composer{
		connectivity: connectivity,
		health:       health,
		canary:       canary,
		symbol:       DefaultCanarySymbol,
		horizon:      DefaultCanaryHorizon,
		logger:       slog.Default(),
	}
}

// WithCanary overrides the canary symbol and horizon. Empty values keep the defaults.
func (c *Composer) WithCanary(symbol, horizon string) *Composer {
	if s := strings.TrimSpace(symbol); s != "" {
		c.symbol = strings.ToUpper(s)
	}

	if h := strings.TrimSpace(horizon); h != "" {
		c.horizon = h
	}

	return c
}

// WithLogger sets the structured logger.
func (c *Composer) WithLogger(logger *slog.Logger) *Composer {
	if logger != nil {
		c.logger = logger
	}

	return c
}

// Check computes a fresh verdict. It never fails; every failure is folded
// into the verdict.
func (c *Composer) Check(ctx context.Context) Verdict {
	ctx, span := observability.Tracer("readiness").Start(ctx, "readiness.check")
	defer span.End()

	var (
		conn   client.ConnectionStatus
		health probe.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		conn = c.connectivity.CheckConnection(gctx)
		return nil
	})

	g.Go(func() error {
		health = c.health.CheckNow(gctx)
		return nil
	})

	_ = g.Wait()

	verdict := c.compose(ctx, conn, health)
	verdict.CheckedAt = time.Now()
	verdict.Health = health

	span.SetAttributes(
		attribute.Bool("readiness.operational", verdict.Operational),
		attribute.Bool("readiness.can_query", verdict.CanQuery),
	)

	c.logger.Debug("Readiness computed",
		slog.Bool("operational", verdict.Operational),
		slog.Bool("can_query", verdict.CanQuery),
		slog.String("message", verdict.ErrorMessage),
	)

	return verdict
}

func (c *Composer) compose(ctx context.Context, conn client.ConnectionStatus, health probe.Snapshot) Verdict {
	if !conn.Connected {
		return Verdict{ErrorMessage: MessageUnreachable}
	}

	if !health.Healthy {
		message := strings.TrimSpace(health.Message)
		if message == "" {
			message = MessageUnavailable
		}

		return Verdict{ErrorMessage: message}
	}

	_, err := c.canary.Predict(ctx, &client.PredictRequest{
		Symbols: []string{c.symbol},
		Horizon: c.horizon,
	})
	if err != nil {
		kind, _ := client.KindOf(err)
		c.logger.Info("Canary call failed",
			slog.String("outcome", kind.String()),
			slog.String("error", err.Error()),
		)

		return Verdict{Operational: true, ErrorMessage: MessageEngineInitializing}
	}

	return Verdict{Operational: true, CanQuery: true}
}
