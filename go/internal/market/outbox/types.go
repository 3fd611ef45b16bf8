// Package outbox relays engine events through the market_outbox table to
// JetStream. Rows are written by Emitter and published by Listener.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcdev12/fantamarket/go/internal/market/db"
)

// Envelope is the wire format published on the bus and decoded by the gateway.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an outbox row.
func NewEnvelope(e db.OutboxEvent) Envelope {
	return Envelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		SessionID: e.SessionID.String(),
		Timestamp: e.CreatedAt.UTC(),
		Payload:   e.Payload,
	}
}

// Publisher delivers one outbox row to the bus.
type Publisher interface {
	Publish(ctx context.Context, event db.OutboxEvent) error
}
