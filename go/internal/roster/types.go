package roster

import (
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// MinBilancio is the smallest bilancio that can open at 1 and fund a 1-credit salary.
const MinBilancio = 2

// Standing is one member's budget and roster occupancy within a league.
type Standing struct {
	MemberID uuid.UUID
	Budget   int
	Salaries int
	Counts   map[models.Role]int
}

// Bilancio is the spendable balance: budget minus committed salaries.
func (s Standing) Bilancio() int {
	return s.Budget - s.Salaries
}

// Count returns the number of rostered players for role.
func (s Standing) Count(role models.Role) int {
	return s.Counts[role]
}

// Total returns the number of rostered players.
func (s Standing) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// HasSlot reports whether the member can roster another player for role.
func (s Standing) HasSlot(limits models.RosterLimits, role models.Role) bool {
	return s.Count(role) < limits.Limit(role)
}

// Standings indexes Standing by member.
type Standings map[uuid.UUID]Standing

// Get returns the member's standing, an empty one if unknown.
func (s Standings) Get(id uuid.UUID) Standing {
	if st, ok := s[id]; ok {
		return st
	}
	return Standing{MemberID: id, Counts: map[models.Role]int{}}
}

// AssignRequest describes a completed transfer to record.
type AssignRequest struct {
	LeagueID  uuid.UUID
	SessionID uuid.UUID
	AuctionID uuid.UUID
	PlayerID  uuid.UUID
	Role      models.Role
	MemberID  uuid.UUID
	Price     int
	Type      models.AcquisitionType
}

// Assignment is what Assign created.
type Assignment struct {
	Entry    models.RosterEntry
	Contract models.Contract
	Movement models.Movement
	Member   models.Member
}
