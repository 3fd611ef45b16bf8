package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/heartbeat"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
)

// Turn is the scheduler's current decision for a session.
type Turn struct {
	NominatorID   *uuid.UUID   `json:"nominator_id,omitempty"`
	Role          *models.Role `json:"role,omitempty"`
	Index         int          `json:"index"`
	RoundComplete bool         `json:"round_complete"`
	NoEligible    bool         `json:"no_eligible"`
}

// MemberStanding is a member's budget and roster occupancy.
type MemberStanding struct {
	MemberID uuid.UUID           `json:"member_id"`
	Budget   int                 `json:"budget"`
	Bilancio int                 `json:"bilancio"`
	Counts   map[models.Role]int `json:"counts"`
}

// MarketState is everything a client needs to render a session.
type MarketState struct {
	Session      models.MarketSession `json:"session"`
	Auction      *models.Auction      `json:"auction,omitempty"`
	WinningBid   *models.AuctionBid   `json:"winning_bid,omitempty"`
	Gate         auction.Gate         `json:"gate"`
	Turn         Turn                 `json:"turn"`
	Standings    []MemberStanding     `json:"standings"`
	Connectivity heartbeat.Snapshot   `json:"connectivity"`
}

// GetMarketState reads a session for one of its members. An expired auction
// is resolved before the state is assembled.
func (a *App) GetMarketState(ctx context.Context, sessionID, memberID uuid.UUID) (MarketState, error) {
	auc, err := a.auctions.Current(ctx, sessionID)
	if err != nil {
		return MarketState{}, err
	}
	s, err := a.Get(ctx, sessionID, memberID)
	if err != nil {
		return MarketState{}, err
	}
	league, err := access.League(ctx, a.store, s.LeagueID)
	if err != nil {
		return MarketState{}, err
	}

	state := MarketState{Session: s, Auction: auc}
	if auc != nil {
		if state.WinningBid, err = a.auctions.WinningBid(ctx, auc.ID); err != nil {
			return MarketState{}, err
		}
	}
	if state.Gate, err = auction.GateStatus(ctx, a.store, s); err != nil {
		return MarketState{}, err
	}

	if s.IsActive() {
		res, err := a.turns.Current(ctx, a.store, s, league)
		if err != nil {
			return MarketState{}, err
		}
		state.Turn = turnView(res)
	}

	standings, err := a.ledger.Standings(ctx, a.store, s.LeagueID)
	if err != nil {
		return MarketState{}, err
	}
	members, err := access.ActiveMemberIDs(ctx, a.store, s.LeagueID)
	if err != nil {
		return MarketState{}, err
	}
	state.Standings = standingsView(members, standings)
	if a.heartbeat != nil {
		state.Connectivity = a.heartbeat.Snapshot(ctx, sessionID, members)
	}
	return state, nil
}

func turnView(res turn.Result) Turn {
	t := Turn{
		Role:          res.Role,
		Index:         res.Index,
		RoundComplete: res.Outcome == turn.RoundComplete,
		NoEligible:    res.Outcome == turn.NoEligible,
	}
	if res.Outcome == turn.Nominator {
		id := res.NominatorID
		t.NominatorID = &id
	}
	return t
}

func standingsView(members []uuid.UUID, standings roster.Standings) []MemberStanding {
	out := make([]MemberStanding, 0, len(members))
	for _, id := range members {
		st := standings.Get(id)
		out = append(out, MemberStanding{
			MemberID: id,
			Budget:   st.Budget,
			Bilancio: st.Bilancio(),
			Counts:   st.Counts,
		})
	}
	return out
}
