package events

import (
	"time"

	"github.com/google/uuid"
)

// Event payload types shared by the engine and the gateway

type NominationPayload struct {
	PlayerID     uuid.UUID `json:"player_id"`
	NominatorID  uuid.UUID `json:"nominator_id"`
	OpeningPrice int       `json:"opening_price"`
	Reason       string    `json:"reason,omitempty"`
}

type MemberReadyPayload struct {
	MemberID uuid.UUID `json:"member_id"`
	Ready    int       `json:"ready"`
	Total    int       `json:"total"`
}

type AuctionStartedPayload struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	PlayerID       uuid.UUID `json:"player_id"`
	NominatorID    uuid.UUID `json:"nominator_id"`
	BasePrice      int       `json:"base_price"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

type BidPlacedPayload struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	MemberID       uuid.UUID `json:"member_id"`
	Amount         int       `json:"amount"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

// AuctionClosedPayload reports a resolution. Trigger is "admin", "timer" or "read".
type AuctionClosedPayload struct {
	AuctionID uuid.UUID  `json:"auction_id"`
	Status    string     `json:"status"`
	WinnerID  *uuid.UUID `json:"winner_id,omitempty"`
	Price     int        `json:"price"`
	Salary    int        `json:"salary,omitempty"`
	Trigger   string     `json:"trigger"`
}

type AuctionPausedPayload struct {
	AuctionID   uuid.UUID `json:"auction_id"`
	RemainingMs int64     `json:"remaining_ms"`
	Reason      string    `json:"reason"`
}

type AuctionResumedPayload struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	TimerExpiresAt time.Time `json:"timer_expires_at"`
}

type AuctionCancelledPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Reason    string    `json:"reason"`
}

type AcknowledgedPayload struct {
	AuctionID    uuid.UUID `json:"auction_id"`
	MemberID     uuid.UUID `json:"member_id"`
	Acknowledged int       `json:"acknowledged"`
	Total        int       `json:"total"`
}

type TurnAdvancedPayload struct {
	NominatorID   *uuid.UUID `json:"nominator_id,omitempty"`
	Role          string     `json:"role,omitempty"`
	TurnIndex     int        `json:"turn_index"`
	RoundComplete bool       `json:"round_complete"`
	// NoEligible is set when slots remain open but nobody can nominate.
	NoEligible bool `json:"no_eligible"`
}

type AppealPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	AppealID  uuid.UUID `json:"appeal_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
}

type AppealProgressPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
}

type RectifiedPayload struct {
	AuctionID uuid.UUID `json:"auction_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Refund    int       `json:"refund"`
	Reason    string    `json:"reason"`
}

type SessionPayload struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}
