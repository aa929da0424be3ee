package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/metrics"
	"github.com/musher-dev/lookout/internal/output"
	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/stream"
	"github.com/musher-dev/lookout/internal/watchui"
)

func newWatchCmd() *cobra.Command {
	var (
		metricsAddr string
		plain       bool
	)

	cmd := &cobra.Command{
		Use:   "watch SYMBOL...",
		Short: "Stream live prices over the push channel",
		Long: `Open the push channel, subscribe to the given symbols and show price
updates as they arrive, together with connection state and backend health.

Lost connections are re-established with exponential backoff and every
subscription is replayed once the channel is back. After the configured
number of failed attempts the channel is reported unavailable.

On an interactive terminal a live board is shown; press q to quit. With
--plain, or when output is not a terminal, one line is printed per event
(one JSON object per line with --json).`,
		Example: `  lookout watch AAPL MSFT
  lookout watch AAPL --plain
  lookout watch AAPL,NVDA --metrics-addr :9464`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := requireSymbols(cmd, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := output.FromContext(ctx)
			rt := newRuntime(ctx)

			manager, err := rt.streamManager()
			if err != nil {
				return err
			}

			prober := rt.prober()

			if metricsAddr != "" {
				shutdown, err := serveMetrics(ctx, metricsAddr, prober, rt.logger)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			if err := manager.Subscribe(symbols...); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			if plain || out.JSON || !out.Terminal().FullScreenEnabled() {
				return watchPlain(ctx, out, manager, prober, symbols)
			}

			return watchBoard(ctx, manager, prober, symbols)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (for example :9464)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per event instead of the live board")

	return cmd
}

func serveMetrics(ctx context.Context, addr string, prober *probe.Prober, logger *slog.Logger) (func(), error) {
	srv := metrics.NewServer(addr, func() (bool, any) {
		snap := prober.Snapshot()
		return snap.Healthy, snap
	})

	if err := srv.Listen(); err != nil {
		return nil, &clierrors.CLIError{
			Message: fmt.Sprintf("Cannot listen on %s", addr),
			Hint:    "Choose a free address with --metrics-addr",
			Cause:   err,
			Code:    clierrors.ExitUsage,
		}
	}

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("metrics server listening", slog.String("addr", srv.Addr()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = srv.Stop(shutdownCtx)
	}, nil
}

func watchBoard(ctx context.Context, manager *stream.Manager, prober *probe.Prober, symbols []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(watchui.New(symbols), tea.WithAltScreen(), tea.WithContext(ctx))

	unbind := watchui.Bind(manager, program.Send)
	defer unbind()

	prober.WithOnUpdate(watchui.HealthForwarder(program.Send))

	go prober.Run(ctx)

	manager.Connect(ctx)
	defer manager.Disconnect()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run watch board: %w", err)
	}

	return nil
}

func watchPlain(ctx context.Context, out *output.Writer, manager *stream.Manager, prober *probe.Prober, symbols []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printer := &plainPrinter{out: out, enc: json.NewEncoder(out.Out)}

	removers := []func(){
		manager.On(stream.EventPriceUpdate, func(e stream.Event) error {
			var update stream.PriceUpdate
			if err := e.Decode(&update); err != nil {
				return fmt.Errorf("decode price update: %w", err)
			}

			printer.quote(e.ReceivedAt, update)

			return nil
		}),
		manager.On(stream.EventNotification, func(e stream.Event) error {
			var n stream.Notification
			if err := e.Decode(&n); err != nil {
				return fmt.Errorf("decode notification: %w", err)
			}

			printer.note(e.ReceivedAt, n)

			return nil
		}),
		manager.On(stream.EventPortfolioUpdate, func(e stream.Event) error {
			printer.note(e.ReceivedAt, stream.Notification{Level: "info", Message: "Portfolio updated"})
			return nil
		}),
		manager.OnStatus(printer.status),
	}

	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	prober.WithOnUpdate(printer.health)

	go prober.Run(ctx)

	if !out.JSON {
		out.Muted("Watching %s (Ctrl+C to stop)", strings.Join(symbols, ", "))
	}

	manager.Connect(ctx)
	done := manager.Done()

	var gaveUp bool

	select {
	case <-ctx.Done():
	case <-done:
		gaveUp = ctx.Err() == nil
	}

	manager.Disconnect()

	if gaveUp {
		return &clierrors.CLIError{
			Message: "Push channel unavailable",
			Hint:    "Check the backend with 'lookout doctor'",
			Cause:   stream.ErrGaveUp,
			Code:    clierrors.ExitUnavailable,
		}
	}

	return nil
}

// plainPrinter serializes event lines coming from the stream and prober goroutines.
type plainPrinter struct {
	mu         sync.Mutex
	out        *output.Writer
	enc        *json.Encoder
	lastHealth probe.Status
}

type plainEvent struct {
	Type   string    `json:"type"`
	At     time.Time `json:"at"`
	Data   any       `json:"data"`
	Detail string    `json:"detail,omitempty"`
}

func (p *plainPrinter) emit(event plainEvent, line func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out.JSON {
		_ = p.enc.Encode(event)
		return
	}

	line()
}

func (p *plainPrinter) quote(at time.Time, u stream.PriceUpdate) {
	p.emit(plainEvent{Type: string(stream.EventPriceUpdate), At: at, Data: u}, func() {
		change := fmt.Sprintf("%+.2f%%", u.ChangePercent)
		if u.ChangePercent >= 0 {
			change = p.out.Colorize(output.ToneSuccess, change)
		} else {
			change = p.out.Colorize(output.ToneFailure, change)
		}

		p.out.Print("%s  %-6s %10.2f  %s  vol %s\n", at.Format("15:04:05"), u.Symbol, u.Price, change, watchui.FormatVolume(u.Volume))
	})
}

func (p *plainPrinter) note(at time.Time, n stream.Notification) {
	p.emit(plainEvent{Type: string(stream.EventNotification), At: at, Data: n}, func() {
		msg := n.Message
		if n.Title != "" {
			msg = n.Title + ": " + msg
		}

		tone := output.ToneInfo
		switch strings.ToLower(n.Level) {
		case "warning", "warn":
			tone = output.ToneWarning
		case "error":
			tone = output.ToneFailure
		case "success":
			tone = output.ToneSuccess
		}

		p.out.Status(tone, "%s", msg)
	})
}

func (p *plainPrinter) status(s stream.Status) {
	p.emit(plainEvent{Type: "status", At: time.Now(), Data: s.Phase.String(), Detail: statusDetail(s)}, func() {
		switch {
		case s.GaveUp:
			p.out.Failure("Push channel unavailable after %d attempts", s.Attempt)
		case s.Phase == stream.PhaseConnected:
			p.out.Success("Connected")
		case s.Phase == stream.PhaseReconnecting:
			p.out.Warning("Connection lost, reconnecting in %s (attempt %d)", s.Backoff.Round(time.Second), s.Attempt)
		case s.Phase == stream.PhaseConnecting:
			p.out.Muted("Connecting...")
		}
	})
}

func (p *plainPrinter) health(s probe.Snapshot) {
	p.mu.Lock()
	changed := s.Status != p.lastHealth
	p.lastHealth = s.Status
	p.mu.Unlock()

	if !changed {
		return
	}

	p.emit(plainEvent{Type: "health", At: s.ObservedAt, Data: s}, func() {
		tone := output.ToneSuccess
		if !s.Healthy {
			tone = output.ToneWarning
		}

		msg := "Backend " + string(s.Status)
		if s.Message != "" {
			msg += ": " + s.Message
		}

		p.out.Status(tone, "%s", msg)
	})
}

func statusDetail(s stream.Status) string {
	if s.Err != nil {
		return s.Err.Error()
	}

	return ""
}
