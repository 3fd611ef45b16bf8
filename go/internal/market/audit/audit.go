// Package audit records administrative interventions with before and after
// snapshots.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Entry describes one intervention.
type Entry struct {
	SessionID uuid.UUID
	AuctionID *uuid.UUID
	ActorID   uuid.UUID
	Action    models.AuditAction
	Reason    string
	Old       any
	New       any
}

// RequireReason rejects a blank reason.
func RequireReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return marketerr.Validation(marketerr.CodeInvalidArgument, "a reason is required")
	}
	return nil
}

// Write stores e inside the caller's unit of work.
func Write(ctx context.Context, q db.Querier, now time.Time, e Entry) error {
	oldState, err := marshal(e.Old)
	if err != nil {
		return err
	}
	newState, err := marshal(e.New)
	if err != nil {
		return err
	}
	row := models.AuditEntry{
		ID:        uuid.New(),
		SessionID: e.SessionID,
		AuctionID: e.AuctionID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Reason:    strings.TrimSpace(e.Reason),
		OldState:  oldState,
		NewState:  newState,
		CreatedAt: now,
	}
	if err := q.CreateAuditEntry(ctx, row); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	log.Info().
		Str("session_id", e.SessionID.String()).
		Str("actor_id", e.ActorID.String()).
		Str("action", string(e.Action)).
		Str("reason", row.Reason).
		Msg("audit entry recorded")
	return nil
}

func marshal(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit state: %w", err)
	}
	return raw, nil
}
