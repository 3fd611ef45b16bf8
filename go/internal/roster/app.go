package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Ledger records player transfers and derives member standings. Every method
// takes the Querier of the caller's unit of work.
type Ledger struct {
	rules ContractRules
	clock clockwork.Clock
}

// NewLedger creates a new roster Ledger
func NewLedger(rules ContractRules, clock clockwork.Clock) *Ledger {
	return &Ledger{rules: rules, clock: clock}
}

func (l *Ledger) Rules() ContractRules {
	return l.rules
}

// Standings computes the standing of every active member of a league.
func (l *Ledger) Standings(ctx context.Context, q db.Querier, leagueID uuid.UUID) (Standings, error) {
	members, err := q.ListActiveMembers(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	entries, err := q.ListRosterEntriesByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster entries: %w", err)
	}
	contracts, err := q.ListContractsByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	out := make(Standings, len(members))
	for _, m := range members {
		out[m.ID] = Standing{MemberID: m.ID, Budget: m.Budget, Counts: map[models.Role]int{}}
	}
	for _, e := range entries {
		st, ok := out[e.MemberID]
		if !ok {
			continue
		}
		st.Counts[e.Role]++
		out[e.MemberID] = st
	}
	for _, c := range contracts {
		st, ok := out[c.MemberID]
		if !ok {
			continue
		}
		st.Salaries += c.Salary
		out[c.MemberID] = st
	}
	return out, nil
}

// Assign rosters a player for a member: roster entry, contract, budget debit
// and movement.
func (l *Ledger) Assign(ctx context.Context, q db.Querier, req AssignRequest) (Assignment, error) {
	if _, err := q.GetRosterEntryByPlayer(ctx, req.LeagueID, req.PlayerID); err == nil {
		return Assignment{}, marketerr.Conflict(marketerr.CodePlayerOwned, "player %s is already rostered", req.PlayerID)
	} else if !errors.Is(err, db.ErrNotFound) {
		return Assignment{}, fmt.Errorf("failed to check roster: %w", err)
	}

	now := l.clock.Now()
	auctionID := req.AuctionID
	entry := models.RosterEntry{
		ID:               uuid.New(),
		LeagueID:         req.LeagueID,
		MemberID:         req.MemberID,
		PlayerID:         req.PlayerID,
		Role:             req.Role,
		AcquisitionType:  req.Type,
		AcquisitionPrice: req.Price,
		AuctionID:        &auctionID,
		AcquiredAt:       now,
	}
	if err := q.CreateRosterEntry(ctx, entry); err != nil {
		return Assignment{}, fmt.Errorf("failed to create roster entry: %w", err)
	}

	salary := l.rules.Salary(req.Price)
	duration := l.rules.DefaultDuration
	contract := models.Contract{
		ID:               uuid.New(),
		RosterEntryID:    entry.ID,
		MemberID:         req.MemberID,
		PlayerID:         req.PlayerID,
		Salary:           salary,
		Duration:         duration,
		RescissionClause: l.rules.Rescission(salary, duration),
		CreatedAt:        now,
	}
	if err := q.CreateContract(ctx, contract); err != nil {
		return Assignment{}, fmt.Errorf("failed to create contract: %w", err)
	}

	member, err := q.UpdateMemberBudget(ctx, req.MemberID, -req.Price)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to debit budget: %w", err)
	}

	movementType := models.MovementTypeAuction
	switch req.Type {
	case models.AcquisitionTypeFirstMarket:
		movementType = models.MovementTypeFirstMarket
	case models.AcquisitionTypeRectified:
		movementType = models.MovementTypeRectified
	}
	movement := models.Movement{
		ID:         uuid.New(),
		LeagueID:   req.LeagueID,
		SessionID:  req.SessionID,
		AuctionID:  &auctionID,
		PlayerID:   req.PlayerID,
		ToMemberID: req.MemberID,
		Type:       movementType,
		Price:      req.Price,
		CreatedAt:  now,
	}
	if err := q.CreateMovement(ctx, movement); err != nil {
		return Assignment{}, fmt.Errorf("failed to create movement: %w", err)
	}

	log.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("member_id", req.MemberID.String()).
		Str("player_id", req.PlayerID.String()).
		Int("price", req.Price).
		Int("salary", salary).
		Msg("player assigned")

	return Assignment{Entry: entry, Contract: contract, Movement: movement, Member: member}, nil
}

// Unwound describes a reversed transfer.
type Unwound struct {
	MemberID uuid.UUID
	PlayerID uuid.UUID
	Refund   int
}

// Unwind reverses Assign for an auction: the roster entry and contract are
// deleted, the price refunded and the movement removed. ok is false when the
// auction created no roster entry.
func (l *Ledger) Unwind(ctx context.Context, q db.Querier, auctionID uuid.UUID) (Unwound, bool, error) {
	entry, err := q.GetRosterEntryByAuction(ctx, auctionID)
	if errors.Is(err, db.ErrNotFound) {
		return Unwound{}, false, nil
	}
	if err != nil {
		return Unwound{}, false, fmt.Errorf("failed to get roster entry: %w", err)
	}

	contract, err := q.GetContractByRosterEntry(ctx, entry.ID)
	switch {
	case err == nil:
		if err := q.DeleteContract(ctx, contract.ID); err != nil {
			return Unwound{}, false, fmt.Errorf("failed to delete contract: %w", err)
		}
	case !errors.Is(err, db.ErrNotFound):
		return Unwound{}, false, fmt.Errorf("failed to get contract: %w", err)
	}

	if err := q.DeleteRosterEntry(ctx, entry.ID); err != nil {
		return Unwound{}, false, fmt.Errorf("failed to delete roster entry: %w", err)
	}
	if _, err := q.UpdateMemberBudget(ctx, entry.MemberID, entry.AcquisitionPrice); err != nil {
		return Unwound{}, false, fmt.Errorf("failed to refund budget: %w", err)
	}
	if err := q.DeleteMovementsByAuction(ctx, auctionID); err != nil {
		return Unwound{}, false, fmt.Errorf("failed to delete movements: %w", err)
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("member_id", entry.MemberID.String()).
		Int("refund", entry.AcquisitionPrice).
		Msg("transfer unwound")

	return Unwound{MemberID: entry.MemberID, PlayerID: entry.PlayerID, Refund: entry.AcquisitionPrice}, true, nil
}
