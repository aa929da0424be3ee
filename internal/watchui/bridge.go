package watchui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/musher-dev/lookout/internal/probe"
	"github.com/musher-dev/lookout/internal/stream"
)

// Source is the subset of the push channel manager the board listens to.
type Source interface {
	On(eventType stream.EventType, fn stream.Handler) (remove func())
	OnStatus(fn stream.StatusHandler) (remove func())
}

// Bind forwards push channel events to send, which is usually
// (*tea.Program).Send. The returned function detaches every listener.
func Bind(src Source, send func(tea.Msg)) (unbind func()) {
	removers := []func(){
		src.On(stream.EventPriceUpdate, func(e stream.Event) error {
			var update stream.PriceUpdate
			if err := e.Decode(&update); err != nil {
				return fmt.Errorf("decode price update: %w", err)
			}

			send(QuoteMsg{Update: update, ReceivedAt: e.ReceivedAt})

			return nil
		}),
		src.On(stream.EventNotification, func(e stream.Event) error {
			var n stream.Notification
			if err := e.Decode(&n); err != nil {
				return fmt.Errorf("decode notification: %w", err)
			}

			send(NoteMsg{Notification: n, ReceivedAt: e.ReceivedAt})

			return nil
		}),
		src.On(stream.EventPortfolioUpdate, func(e stream.Event) error {
			send(NoteMsg{
				Notification: stream.Notification{Level: "info", Message: "Portfolio updated"},
				ReceivedAt:   e.ReceivedAt,
			})

			return nil
		}),
		src.OnStatus(func(s stream.Status) {
			send(StatusMsg(s))
		}),
	}

	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

// HealthForwarder adapts send into a prober update callback.
func HealthForwarder(send func(tea.Msg)) func(probe.Snapshot) {
	return func(s probe.Snapshot) {
		send(HealthMsg(s))
	}
}
