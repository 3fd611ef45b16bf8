package turn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
)

func limits() models.RosterLimits {
	return models.RosterLimits{
		models.RoleGoalkeeper: 3,
		models.RoleDefender:   8,
		models.RoleMidfielder: 8,
		models.RoleForward:    6,
	}
}

func members(n int) models.TurnOrder {
	out := make(models.TurnOrder, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func standings(order models.TurnOrder, budget int) roster.Standings {
	out := roster.Standings{}
	for _, id := range order {
		out[id] = roster.Standing{MemberID: id, Budget: budget, Counts: map[models.Role]int{}}
	}
	return out
}

func rolePtr(r models.Role) *models.Role { return &r }

func TestResolveSkipsIneligible(t *testing.T) {
	order := members(4)
	st := standings(order, 100)
	full := st[order[1]]
	full.Counts[models.RoleGoalkeeper] = 3
	st[order[1]] = full
	poor := st[order[2]]
	poor.Budget = 11
	poor.Salaries = 10
	st[order[2]] = poor

	res := Resolve(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       order,
		Index:       1,
		Standings:   st,
		Limits:      limits(),
	})
	if res.Outcome != Nominator {
		t.Fatalf("outcome = %v, want %v", res.Outcome, Nominator)
	}
	if res.NominatorID != order[3] || res.Index != 3 {
		t.Fatalf("nominator = %v at %d, want %v at 3", res.NominatorID, res.Index, order[3])
	}
}

func TestAdvanceWraps(t *testing.T) {
	order := members(3)
	res := Advance(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleDefender),
		Order:       order,
		Index:       2,
		Standings:   standings(order, 100),
		Limits:      limits(),
	})
	if res.NominatorID != order[0] || res.Index != 0 {
		t.Fatalf("nominator = %v at %d, want %v at 0", res.NominatorID, res.Index, order[0])
	}
}

func TestAutoAdvanceToNextRole(t *testing.T) {
	order := members(4)
	st := standings(order, 500)
	for _, id := range order {
		s := st[id]
		s.Counts[models.RoleGoalkeeper] = 3
		st[id] = s
	}

	res := Advance(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       order,
		Index:       2,
		Standings:   st,
		Limits:      limits(),
	})
	if res.Outcome != Nominator {
		t.Fatalf("outcome = %v, want %v", res.Outcome, Nominator)
	}
	if res.Role == nil || *res.Role != models.RoleDefender {
		t.Fatalf("role = %v, want %v", res.Role, models.RoleDefender)
	}
	if res.Index != 0 || res.NominatorID != order[0] {
		t.Fatalf("index = %d nominator = %v, want 0 and %v", res.Index, res.NominatorID, order[0])
	}
	if !res.RoleChanged(rolePtr(models.RoleGoalkeeper)) {
		t.Fatal("RoleChanged = false, want true")
	}
}

func TestRoundComplete(t *testing.T) {
	order := members(2)
	st := standings(order, 500)
	for _, id := range order {
		s := st[id]
		for role, n := range limits() {
			s.Counts[role] = n
		}
		st[id] = s
	}
	res := Resolve(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleMidfielder),
		Order:       order,
		Standings:   st,
		Limits:      limits(),
	})
	if res.Outcome != RoundComplete {
		t.Fatalf("outcome = %v, want %v", res.Outcome, RoundComplete)
	}
}

func TestNoEligibleMember(t *testing.T) {
	order := members(3)
	st := standings(order, 1)
	res := Advance(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       order,
		Standings:   st,
		Limits:      limits(),
	})
	if res.Outcome != NoEligible {
		t.Fatalf("outcome = %v, want %v", res.Outcome, NoEligible)
	}
}

func TestRecurringMarketIgnoresRoles(t *testing.T) {
	order := members(2)
	st := standings(order, 100)
	s := st[order[0]]
	s.Counts[models.RoleGoalkeeper] = 3
	st[order[0]] = s

	res := Resolve(State{Order: order, Standings: st, Limits: limits()})
	if res.Outcome != Nominator || res.NominatorID != order[0] {
		t.Fatalf("result = %+v, want %v to nominate", res, order[0])
	}
	if res.Role != nil {
		t.Fatalf("role = %v, want nil in a recurring market", *res.Role)
	}
}

func TestEmptyTurnOrder(t *testing.T) {
	res := Resolve(State{FirstMarket: true, Limits: limits()})
	if res.Outcome != NoEligible {
		t.Fatalf("outcome = %v, want %v", res.Outcome, NoEligible)
	}
}

func TestInactiveMemberDoesNotBlockRoleAdvance(t *testing.T) {
	order := members(4)
	st := standings(order, 500)
	for _, id := range order[:3] {
		s := st[id]
		s.Counts[models.RoleGoalkeeper] = 3
		st[id] = s
	}
	delete(st, order[3])

	res := Advance(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       order,
		Index:       2,
		Standings:   st,
		Limits:      limits(),
	})
	if res.Outcome != Nominator {
		t.Fatalf("outcome = %v, want %v", res.Outcome, Nominator)
	}
	if res.Role == nil || *res.Role != models.RoleDefender {
		t.Fatalf("role = %v, want %v", res.Role, models.RoleDefender)
	}
	if res.Index != 0 || res.NominatorID != order[0] {
		t.Fatalf("index = %d nominator = %v, want 0 and %v", res.Index, res.NominatorID, order[0])
	}
}

func TestInactiveMemberNeverNominates(t *testing.T) {
	order := members(3)
	st := standings(order, 100)
	delete(st, order[1])

	res := Resolve(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       order,
		Index:       1,
		Standings:   st,
		Limits:      limits(),
	})
	if res.NominatorID != order[2] || res.Index != 2 {
		t.Fatalf("nominator = %v at %d, want %v at 2", res.NominatorID, res.Index, order[2])
	}
}

func TestNoActiveMembers(t *testing.T) {
	res := Resolve(State{
		FirstMarket: true,
		Role:        rolePtr(models.RoleGoalkeeper),
		Order:       members(2),
		Standings:   roster.Standings{},
		Limits:      limits(),
	})
	if res.Outcome != NoEligible {
		t.Fatalf("outcome = %v, want %v", res.Outcome, NoEligible)
	}
}
