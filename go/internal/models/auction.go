package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the auction state machine.
type AuctionStatus string

const (
	AuctionStatusActive            AuctionStatus = "ACTIVE"
	AuctionStatusPaused            AuctionStatus = "PAUSED"
	AuctionStatusCompleted         AuctionStatus = "COMPLETED"
	AuctionStatusNoBids            AuctionStatus = "NO_BIDS"
	AuctionStatusCancelled         AuctionStatus = "CANCELLED"
	AuctionStatusAppealReview      AuctionStatus = "APPEAL_REVIEW"
	AuctionStatusAwaitingResume    AuctionStatus = "AWAITING_RESUME"
	AuctionStatusAwaitingAppealAck AuctionStatus = "AWAITING_APPEAL_ACK"
)

// IsOpen reports whether bidding or appeal recovery is still in progress.
func (s AuctionStatus) IsOpen() bool {
	switch s {
	case AuctionStatusActive, AuctionStatusPaused, AuctionStatusAppealReview,
		AuctionStatusAwaitingResume, AuctionStatusAwaitingAppealAck:
		return true
	}
	return false
}

// Resolved reports whether the auction reached an outcome that members must acknowledge.
func (s AuctionStatus) Resolved() bool {
	return s == AuctionStatusCompleted || s == AuctionStatusNoBids
}

// Auction is the bidding process for a single nominated player.
type Auction struct {
	ID                 uuid.UUID     `json:"id"`
	SessionID          uuid.UUID     `json:"session_id"`
	LeagueID           uuid.UUID     `json:"league_id"`
	PlayerID           uuid.UUID     `json:"player_id"`
	PlayerRole         Role          `json:"player_role"`
	NominatorID        uuid.UUID     `json:"nominator_id"`
	Status             AuctionStatus `json:"status"`
	BasePrice          int           `json:"base_price"`
	CurrentPrice       int           `json:"current_price"`
	TimerSeconds       int           `json:"timer_seconds"`
	TimerExpiresAt     *time.Time    `json:"timer_expires_at,omitempty"`
	PausedRemainingMs  int64         `json:"paused_remaining_ms,omitempty"`
	ResumeTimerSeconds int           `json:"resume_timer_seconds,omitempty"`
	WinnerID           *uuid.UUID    `json:"winner_id,omitempty"`
	AppealDecisionAcks MemberSet     `json:"appeal_decision_acks"`
	ResumeReadyMembers MemberSet     `json:"resume_ready_members"`
	GateReleasedAt     *time.Time    `json:"gate_released_at,omitempty"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ResolvedAt         *time.Time    `json:"resolved_at,omitempty"`
}

// Expired reports whether an ACTIVE auction's countdown has run out at now.
// The deadline itself counts as expired.
func (a *Auction) Expired(now time.Time) bool {
	return a.Status == AuctionStatusActive && a.TimerExpiresAt != nil && !now.Before(*a.TimerExpiresAt)
}

// Remaining returns the time left on the countdown, zero when expired or unset.
func (a *Auction) Remaining(now time.Time) time.Duration {
	if a.TimerExpiresAt == nil {
		return 0
	}
	if d := a.TimerExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (a Auction) Clone() Auction {
	out := a
	out.TimerExpiresAt = cloneTime(a.TimerExpiresAt)
	out.WinnerID = cloneID(a.WinnerID)
	out.AppealDecisionAcks = a.AppealDecisionAcks.Clone()
	out.ResumeReadyMembers = a.ResumeReadyMembers.Clone()
	out.GateReleasedAt = cloneTime(a.GateReleasedAt)
	out.ResolvedAt = cloneTime(a.ResolvedAt)
	return out
}

// AuctionBid is one offer on an auction. At most one non-cancelled bid per
// auction is winning.
type AuctionBid struct {
	ID          uuid.UUID `json:"id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	MemberID    uuid.UUID `json:"member_id"`
	Amount      int       `json:"amount"`
	IsWinning   bool      `json:"is_winning"`
	IsCancelled bool      `json:"is_cancelled"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuctionAcknowledgment records that a member has seen an auction's outcome.
type AuctionAcknowledgment struct {
	ID         uuid.UUID `json:"id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	MemberID   uuid.UUID `json:"member_id"`
	Commentary *string   `json:"commentary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "PENDING"
	AppealStatusAccepted AppealStatus = "ACCEPTED"
	AppealStatusRejected AppealStatus = "REJECTED"
)

// AuctionAppeal is a member-filed dispute against a completed auction.
type AuctionAppeal struct {
	ID             uuid.UUID    `json:"id"`
	AuctionID      uuid.UUID    `json:"auction_id"`
	MemberID       uuid.UUID    `json:"member_id"`
	Reason         string       `json:"reason"`
	Status         AppealStatus `json:"status"`
	ResolvedBy     *uuid.UUID   `json:"resolved_by,omitempty"`
	ResolutionNote *string      `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}
