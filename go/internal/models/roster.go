package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterEntry is a player owned by a member within a league.
type RosterEntry struct {
	ID               uuid.UUID       `json:"id"`
	LeagueID         uuid.UUID       `json:"league_id"`
	MemberID         uuid.UUID       `json:"member_id"`
	PlayerID         uuid.UUID       `json:"player_id"`
	Role             Role            `json:"role"`
	AcquisitionType  AcquisitionType `json:"acquisition_type"`
	AcquisitionPrice int             `json:"acquisition_price"`
	AuctionID        *uuid.UUID      `json:"auction_id,omitempty"`
	AcquiredAt       time.Time       `json:"acquired_at"`
}

// AcquisitionType represents how a player was acquired
type AcquisitionType string

const (
	AcquisitionTypeFirstMarket AcquisitionType = "FIRST_MARKET"
	AcquisitionTypeAuction     AcquisitionType = "AUCTION"
	AcquisitionTypeTrade       AcquisitionType = "TRADE"
	AcquisitionTypeRectified   AcquisitionType = "RECTIFIED"
)

// Contract binds a rostered player to a salary for a number of seasons.
type Contract struct {
	ID               uuid.UUID `json:"id"`
	RosterEntryID    uuid.UUID `json:"roster_entry_id"`
	MemberID         uuid.UUID `json:"member_id"`
	PlayerID         uuid.UUID `json:"player_id"`
	Salary           int       `json:"salary"`
	Duration         int       `json:"duration"`
	RescissionClause int       `json:"rescission_clause"`
	CreatedAt        time.Time `json:"created_at"`
}

type MovementType string

const (
	MovementTypeFirstMarket MovementType = "FIRST_MARKET"
	MovementTypeAuction     MovementType = "AUCTION"
	MovementTypeRectified   MovementType = "RECTIFIED"
)

// Movement is the league-visible record of a player transfer.
type Movement struct {
	ID         uuid.UUID    `json:"id"`
	LeagueID   uuid.UUID    `json:"league_id"`
	SessionID  uuid.UUID    `json:"session_id"`
	AuctionID  *uuid.UUID   `json:"auction_id,omitempty"`
	PlayerID   uuid.UUID    `json:"player_id"`
	ToMemberID uuid.UUID    `json:"to_member_id"`
	Type       MovementType `json:"type"`
	Price      int          `json:"price"`
	CreatedAt  time.Time    `json:"created_at"`
}
