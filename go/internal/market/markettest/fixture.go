// Package markettest builds in-memory leagues for market tests.
package markettest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/memdb"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// Epoch is the fake clock's starting time.
var Epoch = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// Fixture is a league with an admin, members and a player pool.
type Fixture struct {
	Store   *memdb.Store
	Clock   *clockwork.FakeClock
	League  models.League
	Admin   models.Member
	Members []models.Member

	players map[models.Role][]models.Player
}

type options struct {
	members int
	budget  int
	limits  models.RosterLimits
	pool    int
}

type Option func(*options)

// WithMembers sets the number of active members, admin included.
func WithMembers(n int) Option {
	return func(o *options) { o.members = n }
}

func WithBudget(b int) Option {
	return func(o *options) { o.budget = b }
}

func WithLimits(l models.RosterLimits) Option {
	return func(o *options) { o.limits = l }
}

// WithPlayerPool sets how many players per role are created.
func WithPlayerPool(n int) Option {
	return func(o *options) { o.pool = n }
}

// DefaultLimits mirrors a standard 25-player roster.
func DefaultLimits() models.RosterLimits {
	return models.RosterLimits{
		models.RoleGoalkeeper: 3,
		models.RoleDefender:   8,
		models.RoleMidfielder: 8,
		models.RoleForward:    6,
	}
}

// New creates a league whose first member is the admin.
func New(t testing.TB, opts ...Option) *Fixture {
	t.Helper()
	o := options{members: 4, budget: 500, limits: DefaultLimits(), pool: 10}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Fixture{
		Store:   memdb.New(),
		Clock:   clockwork.NewFakeClockAt(Epoch),
		players: make(map[models.Role][]models.Player),
	}
	f.League = models.League{
		ID:            uuid.New(),
		Name:          "Lega Test",
		Status:        models.LeagueStatusActive,
		InitialBudget: o.budget,
		RosterLimits:  o.limits,
		CreatedAt:     Epoch,
	}
	f.Store.AddLeague(f.League)

	for i := 0; i < o.members; i++ {
		m := models.Member{
			ID:       uuid.New(),
			LeagueID: f.League.ID,
			UserID:   uuid.New(),
			TeamName: fmt.Sprintf("Team %d", i+1),
			Role:     models.MemberRoleMember,
			Status:   models.MemberStatusActive,
			Budget:   o.budget,
			JoinedAt: Epoch.Add(time.Duration(i) * time.Minute),
		}
		if i == 0 {
			m.Role = models.MemberRoleAdmin
			f.Admin = m
		}
		f.Store.AddMember(m)
		f.Members = append(f.Members, m)
	}

	for _, role := range models.FirstMarketRoles {
		for i := 0; i < o.pool; i++ {
			f.AddPlayer(role)
		}
	}
	return f
}

// AddPlayer creates an unowned player for role.
func (f *Fixture) AddPlayer(role models.Role) models.Player {
	n := len(f.players[role]) + 1
	p := models.Player{
		ID:        uuid.New(),
		FullName:  fmt.Sprintf("%s %d", role, n),
		Team:      "Club",
		Role:      role,
		Quotation: n,
		CreatedAt: Epoch,
	}
	f.Store.AddPlayer(p)
	f.players[role] = append(f.players[role], p)
	return p
}

// Player returns the i-th player created for role.
func (f *Fixture) Player(role models.Role, i int) models.Player {
	return f.players[role][i]
}

// Member returns the i-th member (0 is the admin).
func (f *Fixture) Member(i int) models.Member {
	return f.Members[i]
}

func (f *Fixture) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(f.Members))
	for i, m := range f.Members {
		ids[i] = m.ID
	}
	return ids
}

// Budget reads a member's current budget.
func (f *Fixture) Budget(t testing.TB, memberID uuid.UUID) int {
	t.Helper()
	m, err := f.Store.GetMember(context.Background(), memberID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	return m.Budget
}

// Give rosters player for member outside of any auction, with a 1-credit
// salary contract.
func (f *Fixture) Give(t testing.TB, memberID uuid.UUID, player models.Player, price int) {
	t.Helper()
	ctx := context.Background()
	entry := models.RosterEntry{
		ID:               uuid.New(),
		LeagueID:         f.League.ID,
		MemberID:         memberID,
		PlayerID:         player.ID,
		Role:             player.Role,
		AcquisitionType:  models.AcquisitionTypeTrade,
		AcquisitionPrice: price,
		AcquiredAt:       f.Clock.Now(),
	}
	if err := f.Store.CreateRosterEntry(ctx, entry); err != nil {
		t.Fatalf("CreateRosterEntry: %v", err)
	}
	c := models.Contract{
		ID:               uuid.New(),
		RosterEntryID:    entry.ID,
		MemberID:         memberID,
		PlayerID:         player.ID,
		Salary:           1,
		Duration:         3,
		RescissionClause: 9,
		CreatedAt:        f.Clock.Now(),
	}
	if err := f.Store.CreateContract(ctx, c); err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
}

// Fill gives member n fresh players of role.
func (f *Fixture) Fill(t testing.TB, memberID uuid.UUID, role models.Role, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.Give(t, memberID, f.AddPlayer(role), 1)
	}
}

// NewSession stores an ACTIVE session in the AUCTION phase with the members
// in join order.
func (f *Fixture) NewSession(t testing.TB, typ models.SessionType, timerSeconds int) models.MarketSession {
	t.Helper()
	s := models.MarketSession{
		ID:                  uuid.New(),
		LeagueID:            f.League.ID,
		Type:                typ,
		Status:              models.SessionStatusActive,
		Phase:               models.SessionPhaseAuction,
		TurnOrder:           f.MemberIDs(),
		AuctionTimerSeconds: timerSeconds,
		ReadyMembers:        models.NewMemberSet(),
		Version:             1,
		CreatedBy:           f.Admin.ID,
		CreatedAt:           f.Clock.Now(),
		UpdatedAt:           f.Clock.Now(),
	}
	if typ == models.SessionTypeFirstMarket {
		role := models.FirstMarketRoles[0]
		s.CurrentRole = &role
	}
	if err := f.Store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

// Session reads a session back.
func (f *Fixture) Session(t testing.TB, id uuid.UUID) models.MarketSession {
	t.Helper()
	s, err := f.Store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	return s
}

// Auction reads an auction back.
func (f *Fixture) Auction(t testing.TB, id uuid.UUID) models.Auction {
	t.Helper()
	a, err := f.Store.GetAuction(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	return a
}
