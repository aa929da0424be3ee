package watchui

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/stream"
	"github.com/musher-dev/lookout/internal/testutil"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	next, _ := m.Update(msg)

	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}

	return model
}

func TestModel_QuotesRender(t *testing.T) {
	m := New([]string{"aapl", "tsla"})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	at := time.Date(2026, 3, 1, 14, 30, 5, 0, time.Local)
	m = update(t, m, QuoteMsg{
		Update:     stream.PriceUpdate{Symbol: "AAPL", Price: 189.3, Change: 1.25, ChangePercent: 0.66, Volume: 12_300_000},
		ReceivedAt: at,
	})

	view := testutil.Plain(m.View())

	for _, want := range []string{"AAPL", "189.30", "+1.25", "+0.66%", "12.3M", "14:30:05", "TSLA", "waiting"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_NewSymbolFromStreamIsAppended(t *testing.T) {
	m := New([]string{"AAPL"})
	m = update(t, m, QuoteMsg{Update: stream.PriceUpdate{Symbol: "msft", Price: 1}, ReceivedAt: time.Now()})
	m = update(t, m, QuoteMsg{Update: stream.PriceUpdate{Symbol: "AAPL", Price: 2}, ReceivedAt: time.Now()})

	if got := strings.Join(m.Symbols(), ","); got != "AAPL,MSFT" {
		t.Fatalf("Symbols() = %s, want AAPL,MSFT", got)
	}
}

func TestModel_ConnectionBadge(t *testing.T) {
	tests := []struct {
		name   string
		status stream.Status
		want   string
	}{
		{"connecting", stream.Status{Phase: stream.PhaseConnecting}, "connecting"},
		{"live", stream.Status{Phase: stream.PhaseConnected, Connected: true}, "● live"},
		{"reconnecting", stream.Status{Phase: stream.PhaseReconnecting, Attempt: 2, Backoff: 4 * time.Second}, "reconnecting in 4s (attempt 2)"},
		{"gave up", stream.Status{Phase: stream.PhaseDisconnected, GaveUp: true}, "push channel unavailable"},
		{"disconnected", stream.Status{Phase: stream.PhaseDisconnected}, "● disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := update(t, New(nil), StatusMsg(tt.status))

			if view := testutil.Plain(m.View()); !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, view)
			}
		})
	}
}

func TestModel_HealthLine(t *testing.T) {
	m := update(t, New(nil), HealthMsg(probe.Snapshot{Status: probe.StatusDegraded, Message: "models loading", Version: "4.0"}))

	if view := testutil.Plain(m.View()); !strings.Contains(view, "backend: degraded v4.0 (models loading)") {
		t.Errorf("health line missing:\n%s", view)
	}
}

func TestModel_NotesAreBounded(t *testing.T) {
	m := New(nil)

	for i := range maxNotes + 3 {
		m = update(t, m, NoteMsg{
			Notification: stream.Notification{Message: "note-" + string(rune('a'+i))},
			ReceivedAt:   time.Now(),
		})
	}

	view := testutil.Plain(m.View())

	if strings.Contains(view, "note-a") || !strings.Contains(view, "note-h") {
		t.Errorf("expected only the latest %d notes:\n%s", maxNotes, view)
	}
}

func TestModel_QuitKey(t *testing.T) {
	_, cmd := New(nil).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}

	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit key did not return tea.Quit")
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "-"},
		{950, "950"},
		{12_345, "12.3K"},
		{4_500_000, "4.5M"},
		{1_200_000_000, "1.2B"},
	}

	for _, tt := range tests {
		if got := FormatVolume(tt.in); got != tt.want {
			t.Errorf("FormatVolume(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeSource struct {
	mu       sync.Mutex
	handlers map[stream.EventType]stream.Handler
	status   stream.StatusHandler
	removed  int
}

func (f *fakeSource) On(t stream.EventType, fn stream.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers == nil {
		f.handlers = map[stream.EventType]stream.Handler{}
	}

	f.handlers[t] = fn

	return func() { f.removed++ }
}

func (f *fakeSource) OnStatus(fn stream.StatusHandler) func() {
	f.status = fn
	return func() { f.removed++ }
}

func TestBind(t *testing.T) {
	src := &fakeSource{}

	var got []tea.Msg

	unbind := Bind(src, func(msg tea.Msg) { got = append(got, msg) })

	data, _ := json.Marshal(stream.PriceUpdate{Symbol: "AAPL", Price: 10})
	if err := src.handlers[stream.EventPriceUpdate](stream.Event{Type: stream.EventPriceUpdate, Data: data}); err != nil {
		t.Fatalf("price handler error = %v", err)
	}

	err := src.handlers[stream.EventNotification](stream.Event{Type: stream.EventNotification, Data: json.RawMessage(`{`)})
	if err == nil {
		t.Fatal("malformed notification should return an error")
	}

	src.status(stream.Status{Phase: stream.PhaseConnected})

	if len(got) != 2 {
		t.Fatalf("forwarded %d messages, want 2", len(got))
	}

	if q, ok := got[0].(QuoteMsg); !ok || q.Update.Symbol != "AAPL" {
		t.Errorf("first message = %#v", got[0])
	}

	if s, ok := got[1].(StatusMsg); !ok || s.Phase != stream.PhaseConnected {
		t.Errorf("second message = %#v", got[1])
	}

	unbind()

	if src.removed != 4 {
		t.Errorf("removed %d listeners, want 4", src.removed)
	}
}
