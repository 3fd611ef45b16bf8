package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the playing position used for roster slots and the first-market sequence.
type Role string

const (
	RoleGoalkeeper Role = "GOALKEEPER"
	RoleDefender   Role = "DEFENDER"
	RoleMidfielder Role = "MIDFIELDER"
	RoleForward    Role = "FORWARD"
)

// FirstMarketRoles is the fixed nomination order of the first market.
var FirstMarketRoles = []Role{RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role: %q", s)
	}
}

// NextRole returns the role following r in the first-market sequence, or false
// when r is the last one.
func NextRole(r Role) (Role, bool) {
	for i, role := range FirstMarketRoles {
		if role == r && i+1 < len(FirstMarketRoles) {
			return FirstMarketRoles[i+1], true
		}
	}
	return "", false
}

// Player represents a real-world player that can be auctioned.
type Player struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Team      string    `json:"team"`
	Role      Role      `json:"role"`
	Quotation int       `json:"quotation"`
	CreatedAt time.Time `json:"created_at"`
}
