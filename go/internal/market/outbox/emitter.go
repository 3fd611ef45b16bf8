package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/rs/zerolog/log"
)

// Emitter stores events as unsent outbox rows. The insert trigger notifies
// the Listener.
type Emitter struct {
	queries db.Querier
}

func NewEmitter(queries db.Querier) *Emitter {
	return &Emitter{queries: queries}
}

func (e *Emitter) Emit(ctx context.Context, event events.Event) error {
	if err := validateEventPayload(event.Payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}

	row := db.OutboxEvent{
		ID:        event.ID,
		SessionID: event.SessionID,
		EventType: string(event.Type),
		Payload:   event.Payload,
		CreatedAt: event.OccurredAt,
	}
	if err := e.queries.InsertOutboxEvent(ctx, row); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", event.Type, err)
	}

	log.Debug().
		Str("session_id", event.SessionID.String()).
		Str("event_type", string(event.Type)).
		Msg("outbox event inserted")
	return nil
}

func validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("payload cannot be empty")
	}
	return nil
}
