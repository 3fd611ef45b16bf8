// Package turn decides whose turn it is to nominate.
package turn

import (
	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
)

type Outcome int

const (
	// Nominator means a member was selected.
	Nominator Outcome = iota
	// RoundComplete means every role of the first market is filled, or every
	// roster is full in a recurring market.
	RoundComplete
	// NoEligible means open slots remain but no member can nominate.
	NoEligible
)

func (o Outcome) String() string {
	switch o {
	case Nominator:
		return "nominator"
	case RoundComplete:
		return "round_complete"
	case NoEligible:
		return "no_eligible"
	default:
		return "unknown"
	}
}

// State is the input of the scheduler.
type State struct {
	FirstMarket bool
	Role        *models.Role
	Order       models.TurnOrder
	Index       int
	Standings   roster.Standings
	Limits      models.RosterLimits
}

// Result is the scheduler's decision. Role and Index are the values the
// session should hold afterwards.
type Result struct {
	Outcome     Outcome
	NominatorID uuid.UUID
	Role        *models.Role
	Index       int
}

// RoleChanged reports whether r moved the first market to a new role.
func (r Result) RoleChanged(prev *models.Role) bool {
	if r.Role == nil || prev == nil {
		return r.Role != prev
	}
	return *r.Role != *prev
}

// Resolve returns the nominator starting at the current index.
func Resolve(s State) Result {
	return schedule(s, s.Index)
}

// Advance returns the next nominator after the current one.
func Advance(s State) Result {
	return schedule(s, s.Index+1)
}

// Eligible reports whether member may nominate for role. A nil role checks
// only total roster capacity.
func Eligible(st roster.Standing, limits models.RosterLimits, role *models.Role) bool {
	if st.Bilancio() < roster.MinBilancio {
		return false
	}
	if role == nil {
		return st.Total() < limits.Total()
	}
	return st.HasSlot(limits, *role)
}

func schedule(s State, start int) Result {
	if !s.anyActive() {
		return Result{Outcome: NoEligible, Role: s.Role, Index: s.Index}
	}
	if !s.FirstMarket {
		if allFull(s, nil) {
			return Result{Outcome: RoundComplete, Index: s.Index}
		}
		return scan(s, nil, start)
	}

	role := models.FirstMarketRoles[0]
	if s.Role != nil {
		role = *s.Role
	}
	for range models.FirstMarketRoles {
		if !allFull(s, &role) {
			return scan(s, &role, start)
		}
		next, ok := models.NextRole(role)
		if !ok {
			return Result{Outcome: RoundComplete, Role: &role, Index: 0}
		}
		role = next
		start = 0
	}
	return Result{Outcome: RoundComplete, Role: &role, Index: 0}
}

func scan(s State, role *models.Role, start int) Result {
	n := len(s.Order)
	start = ((start % n) + n) % n
	for k := 0; k < n; k++ {
		i := (start + k) % n
		id := s.Order[i]
		st, ok := s.Standings[id]
		if ok && Eligible(st, s.Limits, role) {
			return Result{Outcome: Nominator, NominatorID: id, Role: role, Index: i}
		}
	}
	return Result{Outcome: NoEligible, Role: role, Index: start}
}

func allFull(s State, role *models.Role) bool {
	for _, id := range s.Order {
		st, ok := s.Standings[id]
		if !ok {
			continue
		}
		if role == nil {
			if st.Total() < s.Limits.Total() {
				return false
			}
			continue
		}
		if st.HasSlot(s.Limits, *role) {
			return false
		}
	}
	return true
}

// anyActive reports whether some member of the order still has a standing.
// Members left in the order after deactivation have none and are skipped.
func (s State) anyActive() bool {
	for _, id := range s.Order {
		if _, ok := s.Standings[id]; ok {
			return true
		}
	}
	return false
}
