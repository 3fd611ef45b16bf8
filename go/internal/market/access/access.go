// Package access resolves callers to league members and checks their rights.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// Member returns memberID if it is an active member of leagueID.
func Member(ctx context.Context, q db.Querier, leagueID, memberID uuid.UUID) (models.Member, error) {
	m, err := q.GetMember(ctx, memberID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Member{}, marketerr.Authorization(marketerr.CodeNotMember, "member %s does not belong to the league", memberID)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	if m.LeagueID != leagueID || !m.IsActive() {
		return models.Member{}, marketerr.Authorization(marketerr.CodeNotMember, "member %s does not belong to the league", memberID)
	}
	return m, nil
}

// Admin returns memberID if it administers leagueID.
func Admin(ctx context.Context, q db.Querier, leagueID, memberID uuid.UUID) (models.Member, error) {
	m, err := Member(ctx, q, leagueID, memberID)
	if err != nil {
		return models.Member{}, err
	}
	if !m.IsAdmin() {
		return models.Member{}, marketerr.Authorization(marketerr.CodeNotAdmin, "member %s is not a league admin", memberID)
	}
	return m, nil
}

// ActiveMemberIDs lists the ids of a league's active members in join order.
func ActiveMemberIDs(ctx context.Context, q db.Querier, leagueID uuid.UUID) ([]uuid.UUID, error) {
	members, err := q.ListActiveMembers(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids, nil
}

// Session loads a session, mapping a missing row to a typed error.
func Session(ctx context.Context, q db.Querier, id uuid.UUID) (models.MarketSession, error) {
	s, err := q.GetSession(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return s, marketerr.NotFound(marketerr.CodeSessionNotFound, "session %s not found", id)
	}
	if err != nil {
		return s, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ActiveSession loads a session and requires it to be ACTIVE.
func ActiveSession(ctx context.Context, q db.Querier, id uuid.UUID) (models.MarketSession, error) {
	s, err := Session(ctx, q, id)
	if err != nil {
		return s, err
	}
	if !s.IsActive() {
		return s, marketerr.Conflict(marketerr.CodeSessionNotActive, "session %s is %s", id, s.Status)
	}
	return s, nil
}

// Auction loads an auction, mapping a missing row to a typed error.
func Auction(ctx context.Context, q db.Querier, id uuid.UUID) (models.Auction, error) {
	a, err := q.GetAuction(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return a, marketerr.NotFound(marketerr.CodeAuctionNotFound, "auction %s not found", id)
	}
	if err != nil {
		return a, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// League loads a league, mapping a missing row to a typed error.
func League(ctx context.Context, q db.Querier, id uuid.UUID) (models.League, error) {
	l, err := q.GetLeague(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return l, marketerr.NotFound(marketerr.CodeLeagueNotFound, "league %s not found", id)
	}
	if err != nil {
		return l, fmt.Errorf("failed to get league: %w", err)
	}
	return l, nil
}
