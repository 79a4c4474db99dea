// ABOUTME: Channel interface and the JSON envelope framing for wire events.
// ABOUTME: Every frame is {event, data}; data holds the event payload.

package transport

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Channel is a bidirectional event connection. Implementations must
// make Connect/Disconnect idempotent and must never let one handler's
// failure stop dispatch to the others.
type Channel interface {
	// Connect opens the underlying connection. Calling Connect while
	// connected is a no-op.
	Connect(ctx context.Context) error
	// Disconnect closes the connection. Disconnecting a disconnected
	// channel is a no-op. Registered handlers survive a disconnect.
	Disconnect()
	// Emit sends one event. Emits while disconnected or degraded are
	// silently dropped; callers that need durability use the API path.
	Emit(event string, payload any)
	// On registers a handler and returns its registration id.
	On(event string, h Handler) string
	// Off removes a previously registered handler.
	Off(event string, id string)
	// NotifyDegraded registers a callback invoked when reconnection is
	// exhausted and the channel gives up.
	NotifyDegraded(fn func())
	// Connected reports whether the connection is currently live.
	Connected() bool
}

// Envelope is the JSON frame exchanged over the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload in an envelope for the given event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// ParseEnvelope decodes one inbound frame. An empty event name is
// treated as malformed.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("envelope missing event name")
	}
	return &env, nil
}
