package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes the role-sequenced first market from later markets.
type SessionType string

const (
	SessionTypeFirstMarket SessionType = "FIRST_MARKET"
	SessionTypeRecurring   SessionType = "RECURRING"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// SessionPhase is the stage of a recurring market. First markets only run AUCTION.
type SessionPhase string

const (
	SessionPhaseTrades   SessionPhase = "TRADES"
	SessionPhaseRenewals SessionPhase = "RENEWALS"
	SessionPhaseAuction  SessionPhase = "AUCTION"
)

// NominationState is derived from the pending-nomination fields of a session.
type NominationState string

const (
	NominationIdle      NominationState = "IDLE"
	NominationPending   NominationState = "PENDING_NOMINATION"
	NominationConfirmed NominationState = "CONFIRMED"
)

// MarketSession is one market round of a league.
type MarketSession struct {
	ID                  uuid.UUID     `json:"id"`
	LeagueID            uuid.UUID     `json:"league_id"`
	Type                SessionType   `json:"type"`
	Status              SessionStatus `json:"status"`
	Phase               SessionPhase  `json:"phase"`
	CurrentRole         *Role         `json:"current_role,omitempty"`
	TurnOrder           TurnOrder     `json:"turn_order"`
	CurrentTurnIndex    int           `json:"current_turn_index"`
	AuctionTimerSeconds int           `json:"auction_timer_seconds"`
	InPersonMode        bool          `json:"in_person_mode"`

	PendingPlayerID     *uuid.UUID `json:"pending_player_id,omitempty"`
	PendingNominatorID  *uuid.UUID `json:"pending_nominator_id,omitempty"`
	PendingOpeningPrice int        `json:"pending_opening_price,omitempty"`
	NominatorConfirmed  bool       `json:"nominator_confirmed"`
	ReadyMembers        MemberSet  `json:"ready_members"`

	Version   int64      `json:"version"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func (s *MarketSession) IsFirstMarket() bool {
	return s.Type == SessionTypeFirstMarket
}

func (s *MarketSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// NominationState reports where the ready-check protocol stands.
func (s *MarketSession) NominationState() NominationState {
	switch {
	case s.PendingPlayerID == nil:
		return NominationIdle
	case s.NominatorConfirmed:
		return NominationConfirmed
	default:
		return NominationPending
	}
}

// ClearPendingNomination resets the ready-check protocol to IDLE.
func (s *MarketSession) ClearPendingNomination() {
	s.PendingPlayerID = nil
	s.PendingNominatorID = nil
	s.PendingOpeningPrice = 0
	s.NominatorConfirmed = false
	s.ReadyMembers.Clear()
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s MarketSession) Clone() MarketSession {
	out := s
	if s.CurrentRole != nil {
		r := *s.CurrentRole
		out.CurrentRole = &r
	}
	if s.TurnOrder != nil {
		out.TurnOrder = append(TurnOrder(nil), s.TurnOrder...)
	}
	out.PendingPlayerID = cloneID(s.PendingPlayerID)
	out.PendingNominatorID = cloneID(s.PendingNominatorID)
	out.ReadyMembers = s.ReadyMembers.Clone()
	out.ClosedAt = cloneTime(s.ClosedAt)
	return out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
