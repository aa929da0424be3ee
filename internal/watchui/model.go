package watchui

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/stream"
)

const (
	maxNotes      = 5
	minBoardRows  = 3
	chromeHeight  = 10
	timeLayout    = "15:04:05"
	defaultWidth  = 80
	defaultHeight = 24
)

// QuoteMsg carries one price update into the model.
type QuoteMsg struct {
	Update     stream.PriceUpdate
	ReceivedAt time.Time
}

// StatusMsg carries a push channel status change.
type StatusMsg stream.Status

// HealthMsg carries a fresh backend health snapshot.
type HealthMsg probe.Snapshot

// NoteMsg carries a notification or portfolio event.
type NoteMsg struct {
	Notification stream.Notification
	ReceivedAt   time.Time
}

type quote struct {
	update stream.PriceUpdate
	at     time.Time
}

type note struct {
	text  string
	level string
	at    time.Time
}

// Model is the bubbletea model for the quote board.
type Model struct {
	symbols []string
	quotes  map[string]quote
	notes   []note
	status  stream.Status
	health  probe.Snapshot

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	styles  styles

	width  int
	height int
}

// New creates a board that lists symbols in the given order before any
// quote has arrived.
func New(symbols []string) Model {
	m := Model{
		quotes:  make(map[string]quote),
		status:  stream.Status{Phase: stream.PhaseConnecting},
		health:  probe.Snapshot{Status: probe.StatusUnknown},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    defaultKeyMap(),
		styles:  defaultStyles(),
		width:   defaultWidth,
		height:  defaultHeight,
	}

	for _, s := range symbols {
		m.addSymbol(strings.ToUpper(strings.TrimSpace(s)))
	}

	m.table = table.New(
		table.WithColumns(columns(defaultWidth)),
		table.WithFocused(true),
		table.WithHeight(boardRows(defaultHeight)),
	)
	m.refreshRows()

	return m
}

// Init starts the connecting spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(boardRows(msg.Height))
		m.help.Width = msg.Width

		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)

		return m, cmd

	case QuoteMsg:
		symbol := strings.ToUpper(msg.Update.Symbol)
		if symbol == "" {
			return m, nil
		}

		m.addSymbol(symbol)
		m.quotes[symbol] = quote{update: msg.Update, at: msg.ReceivedAt}
		m.refreshRows()

		return m, nil

	case StatusMsg:
		wasAnimating := m.animating()
		m.status = stream.Status(msg)

		if !wasAnimating && m.animating() {
			return m, m.spinner.Tick
		}

		return m, nil

	case HealthMsg:
		m.health = probe.Snapshot(msg)
		return m, nil

	case NoteMsg:
		m.addNote(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.animating() {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// View renders the board.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("Lookout live quotes"))
	sb.WriteString("  ")
	sb.WriteString(m.connectionBadge())
	sb.WriteString("\n")
	sb.WriteString(m.healthLine())
	sb.WriteString("\n\n")

	if len(m.symbols) == 0 {
		sb.WriteString(m.styles.Muted.Render("No symbols subscribed."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.styles.Board.Render(m.table.View()))
		sb.WriteString("\n")
	}

	if len(m.notes) > 0 {
		sb.WriteString("\n")

		for _, n := range m.notes {
			line := fmt.Sprintf("%s  %s", n.at.Format(timeLayout), n.text)
			line = runewidth.Truncate(line, max(m.width-2, 10), "…")
			sb.WriteString(m.noteStyle(n.level).Render(line))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))

	return sb.String()
}

// Symbols returns the board's symbols in display order.
func (m Model) Symbols() []string {
	return slices.Clone(m.symbols)
}

func (m Model) connectionBadge() string {
	s := m.status

	switch {
	case s.GaveUp:
		return m.styles.Down.Render("● push channel unavailable")
	case s.Phase == stream.PhaseConnected:
		return m.styles.Live.Render("● live")
	case s.Phase == stream.PhaseReconnecting:
		return m.styles.Pending.Render(fmt.Sprintf("%s reconnecting in %s (attempt %d)",
			m.spinner.View(), s.Backoff.Round(time.Second), s.Attempt))
	case s.Phase == stream.PhaseConnecting:
		return m.styles.Pending.Render(m.spinner.View() + " connecting")
	default:
		return m.styles.Muted.Render("● disconnected")
	}
}

func (m Model) healthLine() string {
	h := m.health
	text := "backend: " + string(h.Status)

	if h.Version != "" {
		text += " v" + strings.TrimPrefix(h.Version, "v")
	}

	if h.Message != "" && h.Status != probe.StatusOK {
		text += " (" + h.Message + ")"
	}

	switch h.Status {
	case probe.StatusOK:
		return m.styles.Live.Render(text)
	case probe.StatusDegraded:
		return m.styles.Pending.Render(text)
	case probe.StatusError:
		return m.styles.Down.Render(text)
	default:
		return m.styles.Muted.Render(text)
	}
}

func (m Model) noteStyle(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error":
		return m.styles.Down
	case "warning", "warn":
		return m.styles.Pending
	default:
		return m.styles.Note
	}
}

func (m Model) animating() bool {
	return !m.status.GaveUp &&
		(m.status.Phase == stream.PhaseConnecting || m.status.Phase == stream.PhaseReconnecting)
}

func (m *Model) addSymbol(symbol string) {
	if symbol == "" || slices.Contains(m.symbols, symbol) {
		return
	}

	m.symbols = append(m.symbols, symbol)
}

func (m *Model) addNote(msg NoteMsg) {
	text := msg.Notification.Message
	if msg.Notification.Title != "" {
		text = msg.Notification.Title + ": " + text
	}

	m.notes = append(m.notes, note{text: text, level: msg.Notification.Level, at: msg.ReceivedAt})
	if len(m.notes) > maxNotes {
		m.notes = m.notes[len(m.notes)-maxNotes:]
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.symbols))

	for _, symbol := range m.symbols {
		q, ok := m.quotes[symbol]
		if !ok {
			rows = append(rows, table.Row{symbol, "-", "-", "-", "-", "waiting"})
			continue
		}

		u := q.update
		rows = append(rows, table.Row{
			symbol,
			fmt.Sprintf("%.2f", u.Price),
			fmt.Sprintf("%+.2f", u.Change),
			fmt.Sprintf("%+.2f%%", u.ChangePercent),
			FormatVolume(u.Volume),
			q.at.Format(timeLayout),
		})
	}

	m.table.SetRows(rows)
}

func columns(width int) []table.Column {
	symbolWidth := 8
	if width > 100 {
		symbolWidth = 12
	}

	return []table.Column{
		{Title: "Symbol", Width: symbolWidth},
		{Title: "Price", Width: 10},
		{Title: "Change", Width: 9},
		{Title: "Change %", Width: 9},
		{Title: "Volume", Width: 8},
		{Title: "Updated", Width: 9},
	}
}

func boardRows(height int) int {
	return max(height-chromeHeight, minBoardRows)
}

// FormatVolume abbreviates a share volume: 950, 12.3K, 4.5M, 1.2B.
func FormatVolume(v float64) string {
	abs := math.Abs(v)

	switch {
	case v == 0:
		return "-"
	case abs >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
