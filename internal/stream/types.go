package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase is the lifecycle phase of the push channel.
type Phase int

// Connection phases.
const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseReconnecting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ConnectionState is an immutable view of the connection lifecycle.
type ConnectionState struct {
	Phase             Phase
	Connected         bool
	ReconnectAttempts int
	Backoff           time.Duration
}

// Status is delivered to status listeners on every phase change.
type Status struct {
	Phase     Phase
	Connected bool
	Attempt   int
	Backoff   time.Duration

	// GaveUp is set on the final status after the attempt ceiling is reached.
	GaveUp bool

	// Err is the dial or transport error that caused the transition, if any.
	Err error
}

// EventType is an inbound event category.
type EventType string

// Inbound event categories.
const (
	EventPriceUpdate     EventType = "price_update"
	EventPortfolioUpdate EventType = "portfolio_update"
	EventNotification    EventType = "notification"
)

// Outbound frame names.
const (
	FrameSubscribe   = "subscribe_prices"
	FrameUnsubscribe = "unsubscribe_prices"
)

// Frame is one message on the push channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an inbound frame delivered to listeners.
type Event struct {
	Type       EventType
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event has no data", e.Type)
	}

	return json.Unmarshal(e.Data, v)
}

// PriceUpdate is the payload of a price_update event.
type PriceUpdate struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume,omitempty"`
	Timestamp     int64   `json:"timestamp,omitempty"`
}

// Notification is the payload of a notification event.
type Notification struct {
	Level   string `json:"level,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

type symbolsPayload struct {
	Symbols []string `json:"symbols"`
}

func symbolsFrame(event string, symbols []string) (Frame, error) {
	data, err := json.Marshal(symbolsPayload{Symbols: symbols})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}

	return Frame{Event: event, Data: data}, nil
}
