// Package stream maintains the push subscription channel to the backend.
//
// A Manager owns one logical connection. Topic subscriptions survive
// reconnects: on every successful connect the full topic set is replayed in
// a single subscribe frame before any event from that connection is
// dispatched. Reconnects back off exponentially and stop after a fixed
// number of consecutive failures.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/musher-dev/lookout/internal/metrics"
	"github.com/musher-dev/lookout/internal/observability"
)

// Defaults for the reconnect policy.
const (
	DefaultMaxAttempts  = 5
	DefaultBackoffFloor = time.Second
	DefaultBackoffCap   = 30 * time.Second
)

// ErrGaveUp is reported with the final status after the attempt ceiling.
var ErrGaveUp = errors.New("push channel unavailable after repeated connection failures")

// Config holds the push channel settings.
type Config struct {
	URL          string
	MaxAttempts  int
	BackoffFloor time.Duration
	BackoffCap   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.BackoffFloor <= 0 {
		c.BackoffFloor = DefaultBackoffFloor
	}

	if c.BackoffCap < c.BackoffFloor {
		c.BackoffCap = max(DefaultBackoffCap, c.BackoffFloor)
	}

	return c
}

// TokenSource supplies the bearer token for the handshake.
type TokenSource interface {
	BearerToken() (token string, ok bool)
}

// Handler receives one inbound event. A returned error is logged.
type Handler func(Event) error

// StatusHandler receives lifecycle status changes.
type StatusHandler func(Status)

type handlerEntry struct {
	id uint64
	fn Handler
}

type statusEntry struct {
	id uint64
	fn StatusHandler
}

// Manager runs the push channel lifecycle on a single scheduler goroutine.
type Manager struct {
	cfg    Config
	dialer Dialer
	tokens TokenSource
	logger *slog.Logger

	// mu guards the fields below. Frames are written while holding mu so
	// replay and incremental subscribe frames never interleave.
	mu        sync.Mutex
	topics    map[string]struct{}
	handlers  map[EventType][]handlerEntry
	statuses  []statusEntry
	nextID    uint64
	conn      Conn
	cancel    context.CancelFunc
	done      chan struct{}
	lifecycle uint64

	state atomic.Pointer[ConnectionState]

	// callbacks counts handler invocations in progress. Handlers run on the
	// scheduler goroutine, so Disconnect must not wait for it from inside one.
	callbacks     atomic.Int32
	disconnecting atomic.Bool
}

// NewManager creates a manager. tokens may be nil for unauthenticated channels.
func NewManager(cfg Config, dialer Dialer, tokens TokenSource) *Manager {
	m := &Manager{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		tokens:   tokens,
		logger:   slog.Default(),
		topics:   make(map[string]struct{}),
		handlers: make(map[EventType][]handlerEntry),
	}
	m.resetState()

	return m
}

// WithLogger sets the structured logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger.With(slog.String("component", "stream"))
	}

	return m
}

// Backoff returns the delay after n consecutive failures: floor·2^(n-1), capped.
func Backoff(n int, floor, ceiling time.Duration) time.Duration {
	if n <= 1 {
		return min(floor, ceiling)
	}

	delay := floor
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= ceiling || delay <= 0 {
			return ceiling
		}
	}

	return delay
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	return *m.state.Load()
}

// Topics returns the subscription set, sorted.
func (m *Manager) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sortedTopicsLocked()
}

// On registers a handler for one event category. The returned function
// removes it. Removing every handler leaves the channel running.
func (m *Manager) On(eventType EventType, fn Handler) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.handlers[eventType] = append(m.handlers[eventType], handlerEntry{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		entries := m.handlers[eventType]
		for i, e := range entries {
			if e.id == id {
				m.handlers[eventType] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// OnStatus registers a status handler. The returned function removes it.
func (m *Manager) OnStatus(fn StatusHandler) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.statuses = append(m.statuses, statusEntry{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		for i, e := range m.statuses {
			if e.id == id {
				m.statuses = append(m.statuses[:i:i], m.statuses[i+1:]...)
				return
			}
		}
	}
}

// Subscribe adds topics to the set. While connected, a subscribe frame is
// sent for the topics that were not already members.
func (m *Manager) Subscribe(topics ...string) error {
	return m.mutate(topics, true)
}

// Unsubscribe removes topics from the set. While connected, an unsubscribe
// frame is sent for the topics that were members.
func (m *Manager) Unsubscribe(topics ...string) error {
	return m.mutate(topics, false)
}

func (m *Manager) mutate(topics []string, add bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []string

	for _, raw := range topics {
		topic := normalizeTopic(raw)
		if topic == "" {
			continue
		}

		_, member := m.topics[topic]

		switch {
		case add && !member:
			m.topics[topic] = struct{}{}
			changed = append(changed, topic)
		case !add && member:
			delete(m.topics, topic)
			changed = append(changed, topic)
		}
	}

	if len(changed) == 0 || m.conn == nil || m.State().Phase != PhaseConnected {
		return nil
	}

	sort.Strings(changed)

	event := FrameSubscribe
	if !add {
		event = FrameUnsubscribe
	}

	frame, err := symbolsFrame(event, changed)
	if err != nil {
		return err
	}

	if err := m.conn.Send(frame); err != nil {
		// The set is already updated; the next replay carries it.
		return fmt.Errorf("failed to send %s: %w", event, err)
	}

	return nil
}

// Connect starts the scheduler if it is not already running. It returns
// immediately; progress is reported to status handlers. ctx bounds the
// lifetime of the scheduler.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.lifecycle++
	m.cancel = cancel
	m.done = done

	go m.run(runCtx, m.lifecycle, done)
}

// Disconnect stops the scheduler, cancels any pending reconnect, closes the
// transport, clears the subscription set and reports a final disconnected
// status. It blocks until the scheduler has exited, except when called from
// an event or status handler: the scheduler then exits once the handler
// returns.
func (m *Manager) Disconnect() {
	if !m.disconnecting.CompareAndSwap(false, true) {
		return
	}
	defer m.disconnecting.Store(false)

	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.cancel, m.done, m.conn = nil, nil, nil
	m.lifecycle++
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		_ = conn.Close()
	}

	if done != nil && m.callbacks.Load() == 0 {
		<-done
	}

	m.mu.Lock()
	clear(m.topics)
	m.mu.Unlock()

	m.resetState()
	metrics.StreamConnected.Set(0)
	m.notify(Status{Phase: PhaseDisconnected})
}

// Done returns a channel closed when the current scheduler exits, or nil
// when no scheduler is running.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.done
}

func (m *Manager) run(ctx context.Context, lifecycle uint64, done chan struct{}) {
	defer close(done)
	defer m.finish(lifecycle)

	failures := 0

	for {
		m.transition(lifecycle, ConnectionState{Phase: PhaseConnecting, ReconnectAttempts: failures, Backoff: Backoff(max(failures, 1), m.cfg.BackoffFloor, m.cfg.BackoffCap)}, nil)

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures++
			if failures >= m.cfg.MaxAttempts {
				m.logger.Warn("Giving up on push channel",
					slog.Int("attempts", failures),
					slog.String("error", err.Error()),
				)
				m.giveUp(lifecycle, failures, err)

				return
			}

			if !m.waitReconnect(ctx, lifecycle, failures, err) {
				return
			}

			continue
		}

		if !m.attach(lifecycle, conn) {
			_ = conn.Close()
			return
		}

		failures = 0
		readErr := m.readLoop(ctx, conn)
		m.detach(conn)

		if ctx.Err() != nil {
			return
		}

		m.logger.Info("Push channel dropped", slog.String("error", errString(readErr)))

		failures = 1
		if !m.waitReconnect(ctx, lifecycle, failures, readErr) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	ctx, span := observability.Tracer("stream").Start(ctx, "stream.connect")
	defer span.End()

	token := ""
	if m.tokens != nil {
		token, _ = m.tokens.BearerToken()
	}

	conn, err := m.dialer.Dial(ctx, m.cfg.URL, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")

		return nil, err
	}

	return conn, nil
}

// attach publishes the connection and replays the subscription set. Both
// happen under mu, before the read loop starts.
func (m *Manager) attach(lifecycle uint64, conn Conn) bool {
	m.mu.Lock()

	if m.lifecycle != lifecycle {
		m.mu.Unlock()
		return false
	}

	m.conn = conn

	topics := m.sortedTopicsLocked()
	if len(topics) > 0 {
		frame, err := symbolsFrame(FrameSubscribe, topics)
		if err == nil {
			err = conn.Send(frame)
		}

		if err != nil {
			m.logger.Warn("Failed to replay subscriptions", slog.String("error", err.Error()))
		}
	}

	state := ConnectionState{Phase: PhaseConnected, Connected: true, Backoff: m.cfg.BackoffFloor}
	m.state.Store(&state)
	m.mu.Unlock()

	m.logger.Info("Push channel connected", slog.Int("topics", len(topics)))
	metrics.StreamConnected.Set(1)
	m.notify(statusFrom(state, nil))

	return true
}

func (m *Manager) detach(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()

	_ = conn.Close()
	metrics.StreamConnected.Set(0)
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			return err
		}

		if frame.Event == "" {
			continue
		}

		m.dispatch(Event{Type: EventType(frame.Event), Data: frame.Data, ReceivedAt: time.Now()})
	}
}

func (m *Manager) dispatch(event Event) {
	metrics.StreamEvents.WithLabelValues(string(event.Type)).Inc()

	m.mu.Lock()
	entries := append([]handlerEntry(nil), m.handlers[event.Type]...)
	m.mu.Unlock()

	for _, entry := range entries {
		m.invoke(event, entry.fn)
	}
}

func (m *Manager) invoke(event Event, fn Handler) {
	m.callbacks.Add(1)
	defer m.callbacks.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Event handler panicked",
				slog.String("event", string(event.Type)),
				slog.Any("panic", r),
			)
		}
	}()

	if err := fn(event); err != nil {
		m.logger.Warn("Event handler failed",
			slog.String("event", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// waitReconnect publishes the reconnecting state and sleeps for the backoff.
// It returns false when ctx is done first.
func (m *Manager) waitReconnect(ctx context.Context, lifecycle uint64, failures int, cause error) bool {
	delay := Backoff(failures, m.cfg.BackoffFloor, m.cfg.BackoffCap)

	m.transition(lifecycle, ConnectionState{Phase: PhaseReconnecting, ReconnectAttempts: failures, Backoff: delay}, cause)
	metrics.StreamReconnects.Inc()

	m.logger.Debug("Scheduling reconnect",
		slog.Int("attempt", failures),
		slog.Duration("backoff", delay),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) giveUp(lifecycle uint64, failures int, cause error) {
	state := ConnectionState{Phase: PhaseDisconnected, ReconnectAttempts: failures, Backoff: m.cfg.BackoffFloor}
	if !m.storeState(lifecycle, state) {
		return
	}

	status := statusFrom(state, fmt.Errorf("%w: %w", ErrGaveUp, cause))
	status.GaveUp = true
	m.notify(status)
}

// finish releases the scheduler slot when it exits on its own.
func (m *Manager) finish(lifecycle uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != lifecycle {
		return
	}

	if m.cancel != nil {
		m.cancel()
	}

	m.cancel, m.done, m.conn = nil, nil, nil

	if m.State().Phase != PhaseDisconnected {
		state := ConnectionState{Phase: PhaseDisconnected, Backoff: m.cfg.BackoffFloor}
		m.state.Store(&state)
	}
}

func (m *Manager) transition(lifecycle uint64, state ConnectionState, cause error) {
	if m.storeState(lifecycle, state) {
		m.notify(statusFrom(state, cause))
	}
}

// storeState publishes state unless the lifecycle has ended.
func (m *Manager) storeState(lifecycle uint64, state ConnectionState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != lifecycle {
		return false
	}

	m.state.Store(&state)

	return true
}

func (m *Manager) resetState() {
	m.state.Store(&ConnectionState{Phase: PhaseDisconnected, Backoff: m.cfg.BackoffFloor})
}

func (m *Manager) notify(status Status) {
	m.mu.Lock()
	entries := append([]statusEntry(nil), m.statuses...)
	m.mu.Unlock()

	m.callbacks.Add(1)
	defer m.callbacks.Add(-1)

	for _, entry := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("Status handler panicked", slog.Any("panic", r))
				}
			}()

			entry.fn(status)
		}()
	}
}

func (m *Manager) sortedTopicsLocked() []string {
	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}

	sort.Strings(topics)

	return topics
}

func statusFrom(state ConnectionState, cause error) Status {
	return Status{
		Phase:     state.Phase,
		Connected: state.Connected,
		Attempt:   state.ReconnectAttempts,
		Backoff:   state.Backoff,
		Err:       cause,
	}
}

func normalizeTopic(topic string) string {
	return strings.ToUpper(strings.TrimSpace(topic))
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
