package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionRectify          AuditAction = "RECTIFY"
	AuditActionCancelAuction    AuditAction = "CANCEL_AUCTION"
	AuditActionCancelNomination AuditAction = "CANCEL_NOMINATION"
	AuditActionPauseAuction     AuditAction = "PAUSE_AUCTION"
	AuditActionResumeAuction    AuditAction = "RESUME_AUCTION"
	AuditActionCloseAuction     AuditAction = "CLOSE_AUCTION"
	AuditActionResolveAppeal    AuditAction = "RESOLVE_APPEAL"
	AuditActionCloseSession     AuditAction = "CLOSE_SESSION"
	AuditActionCancelSession    AuditAction = "CANCEL_SESSION"
)

// AuditEntry captures an administrative intervention with before/after snapshots.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	AuctionID *uuid.UUID      `json:"auction_id,omitempty"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Action    AuditAction     `json:"action"`
	Reason    string          `json:"reason"`
	OldState  json.RawMessage `json:"old_state,omitempty"`
	NewState  json.RawMessage `json:"new_state,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
