// Package events defines the engine's broadcast events. Delivery is best
// effort: clients that miss an event re-fetch the market state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	NominationPending   Type = "NominationPending"
	NominationConfirmed Type = "NominationConfirmed"
	NominationCancelled Type = "NominationCancelled"
	MemberReady         Type = "MemberReady"
	AuctionStarted      Type = "AuctionStarted"
	BidPlaced           Type = "BidPlaced"
	AuctionClosed       Type = "AuctionClosed"
	PauseRequested      Type = "PauseRequested"
	AuctionResumed      Type = "AuctionResumed"
	AuctionCancelled    Type = "AuctionCancelled"
	AuctionAcknowledged Type = "AuctionAcknowledged"
	TurnAdvanced        Type = "TurnAdvanced"
	AppealSubmitted     Type = "AppealSubmitted"
	AppealResolved      Type = "AppealResolved"
	AppealAcknowledged  Type = "AppealAcknowledged"
	ResumeReady         Type = "ResumeReady"
	AuctionRectified    Type = "AuctionRectified"
	SessionUpdated      Type = "SessionUpdated"
	SessionClosed       Type = "SessionClosed"
)

// Event is one broadcast message scoped to a session channel.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Type       Type            `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Emitter delivers events to subscribers of a session.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }

// Multi fans an event out to several emitters, returning the first error.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Broadcaster builds events and hands them to an Emitter. Emit failures are
// logged and never returned to the caller.
type Broadcaster struct {
	emitter Emitter
	clock   clockwork.Clock
}

func NewBroadcaster(emitter Emitter, clock clockwork.Clock) *Broadcaster {
	if emitter == nil {
		emitter = Nop{}
	}
	return &Broadcaster{emitter: emitter, clock: clock}
}

// Send marshals payload and emits it on the session channel.
func (b *Broadcaster) Send(ctx context.Context, sessionID uuid.UUID, typ Type, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event payload")
		return
	}
	event := Event{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Type:       typ,
		Payload:    raw,
		OccurredAt: b.clock.Now(),
	}
	if err := b.emitter.Emit(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(typ)).
			Msg("failed to broadcast event")
	}
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the type of every recorded event in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Has reports whether an event of typ was recorded.
func (r *Recorder) Has(typ Type) bool {
	for _, t := range r.Types() {
		if t == typ {
			return true
		}
	}
	return false
}

// Decode unmarshals the payload of the last event of typ into dst.
func (r *Recorder) Decode(typ Type, dst any) error {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return json.Unmarshal(events[i].Payload, dst)
		}
	}
	return fmt.Errorf("no %s event recorded", typ)
}
