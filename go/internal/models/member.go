package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is the permission level of a member within a league.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "ACTIVE"
	MemberStatusInactive MemberStatus = "INACTIVE"
)

// Member is a participant of a league. Budget is the raw credit balance; the
// spendable balance (bilancio) also subtracts committed contract salaries.
type Member struct {
	ID       uuid.UUID    `json:"id"`
	LeagueID uuid.UUID    `json:"league_id"`
	UserID   uuid.UUID    `json:"user_id"`
	TeamName string       `json:"team_name"`
	Role     MemberRole   `json:"role"`
	Status   MemberStatus `json:"status"`
	Budget   int          `json:"budget"`
	JoinedAt time.Time    `json:"joined_at"`
}

// IsAdmin reports whether the member administers the league.
func (m *Member) IsAdmin() bool {
	return m.Role == MemberRoleAdmin
}

// IsActive reports whether the member takes part in market sessions.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}
