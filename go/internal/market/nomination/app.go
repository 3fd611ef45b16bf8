// Package nomination runs the ready-check that precedes every auction: the
// designated nominator picks and confirms a player, then every active member
// signals readiness and the auction opens.
package nomination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// FirstMarketBasePrice is the opening price of every first-market auction.
const FirstMarketBasePrice = 1

type Deps struct {
	Store           db.Store
	Ledger          *roster.Ledger
	Turns           *turn.App
	Auctions        *auction.App
	Clock           clockwork.Clock
	Events          *events.Broadcaster
	Retry           sqlutil.RetryConfig
	PlayerCacheSize int
}

type App struct {
	store    db.Store
	ledger   *roster.Ledger
	turns    *turn.App
	auctions *auction.App
	clock    clockwork.Clock
	events   *events.Broadcaster
	retry    sqlutil.RetryConfig
	players  *playerCache
}

func NewApp(d Deps) *App {
	if d.Events == nil {
		d.Events = events.NewBroadcaster(nil, d.Clock)
	}
	if d.Retry.MaxTries == 0 {
		d.Retry = sqlutil.DefaultRetryConfig()
	}
	return &App{
		store:    d.Store,
		ledger:   d.Ledger,
		turns:    d.Turns,
		auctions: d.Auctions,
		clock:    d.Clock,
		events:   d.Events,
		retry:    d.Retry,
		players:  newPlayerCache(d.PlayerCacheSize),
	}
}

// Result is the session after a ready-check step and, when that step opened
// it, the new auction.
type Result struct {
	Session models.MarketSession
	Auction *models.Auction
}

func isVersionConflict(err error) bool {
	return errors.Is(err, marketerr.ErrVersionConflict)
}

// update runs fn on the active session inside a retried unit of work and
// saves the session afterwards.
func (a *App) update(ctx context.Context, sessionID uuid.UUID, fn func(q db.Querier, s *models.MarketSession) (*models.Auction, error)) (Result, error) {
	return sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (Result, error) {
		var res Result
		err := a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
			s, err := access.ActiveSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			auc, err := fn(q, &s)
			if err != nil {
				return err
			}
			s.UpdatedAt = a.clock.Now()
			if err := db.SaveSession(ctx, q, &s); err != nil {
				return err
			}
			res = Result{Session: s, Auction: auc}
			return nil
		})
		return res, err
	})
}

// SetPending records the designated nominator's pick. No timer starts until
// the nomination is confirmed and every member is ready.
func (a *App) SetPending(ctx context.Context, sessionID, memberID, playerID uuid.UUID, openingPrice int) (models.MarketSession, error) {
	// an expired auction must be settled before the gate is inspected
	if _, err := a.auctions.Current(ctx, sessionID); err != nil {
		return models.MarketSession{}, err
	}

	res, err := a.update(ctx, sessionID, func(q db.Querier, s *models.MarketSession) (*models.Auction, error) {
		if s.Phase != models.SessionPhaseAuction {
			return nil, marketerr.Conflict(marketerr.CodeWrongPhase, "nominations are closed during the %s phase", s.Phase)
		}
		if _, err := access.Member(ctx, q, s.LeagueID, memberID); err != nil {
			return nil, err
		}
		if s.NominationState() != models.NominationIdle {
			return nil, marketerr.Conflict(marketerr.CodeNominationPending, "a nomination is already pending")
		}
		gate, err := auction.GateStatus(ctx, q, *s)
		if err != nil {
			return nil, err
		}
		if err := gate.Err(); err != nil {
			return nil, err
		}

		league, err := access.League(ctx, q, s.LeagueID)
		if err != nil {
			return nil, err
		}
		turnRes, err := a.turns.Authorize(ctx, q, *s, league, memberID)
		if err != nil {
			return nil, err
		}
		turn.Apply(s, turnRes)

		player, err := a.players.get(ctx, q, playerID)
		if err != nil {
			return nil, err
		}
		price, err := a.checkPlayer(ctx, q, s, league, memberID, player, openingPrice)
		if err != nil {
			return nil, err
		}

		s.PendingPlayerID = &player.ID
		s.PendingNominatorID = &memberID
		s.PendingOpeningPrice = price
		s.NominatorConfirmed = false
		s.ReadyMembers = models.NewMemberSet()
		return nil, nil
	})
	if err != nil {
		return models.MarketSession{}, err
	}

	a.events.Send(ctx, sessionID, events.NominationPending, events.NominationPayload{
		PlayerID:     playerID,
		NominatorID:  memberID,
		OpeningPrice: res.Session.PendingOpeningPrice,
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Str("member_id", memberID.String()).
		Str("player_id", playerID.String()).
		Int("opening_price", res.Session.PendingOpeningPrice).
		Msg("nomination pending")
	return res.Session, nil
}

// checkPlayer validates a pick and returns the opening price to use.
func (a *App) checkPlayer(ctx context.Context, q db.Querier, s *models.MarketSession, league models.League,
	memberID uuid.UUID, player models.Player, openingPrice int) (int, error) {
	if _, err := q.GetRosterEntryByPlayer(ctx, league.ID, player.ID); err == nil {
		return 0, marketerr.Conflict(marketerr.CodePlayerOwned, "player %s is already rostered", player.ID)
	} else if !errors.Is(err, db.ErrNotFound) {
		return 0, fmt.Errorf("failed to check roster: %w", err)
	}

	if s.IsFirstMarket() {
		if s.CurrentRole == nil || player.Role != *s.CurrentRole {
			return 0, marketerr.Validation(marketerr.CodeWrongRole, "player %s is a %s, the market is calling %v", player.ID, player.Role, s.CurrentRole)
		}
		return FirstMarketBasePrice, nil
	}

	if openingPrice < 1 {
		return 0, marketerr.Validation(marketerr.CodeInvalidArgument, "opening price must be at least 1")
	}
	standings, err := a.ledger.Standings(ctx, q, league.ID)
	if err != nil {
		return 0, err
	}
	st := standings.Get(memberID)
	if !st.HasSlot(league.RosterLimits, player.Role) {
		return 0, marketerr.BusinessRule(marketerr.CodeSlotsFull, "no free %s slot", player.Role)
	}
	if err := auction.CheckBudget(st, league.RosterLimits, a.ledger.Rules(), false, openingPrice); err != nil {
		return 0, err
	}
	return openingPrice, nil
}

// Confirm locks the pending nomination and starts the ready-check with the
// nominator already ready. A single-member league or an in-person session
// opens the auction straight away.
func (a *App) Confirm(ctx context.Context, sessionID, memberID uuid.UUID) (Result, error) {
	res, err := a.update(ctx, sessionID, func(q db.Querier, s *models.MarketSession) (*models.Auction, error) {
		switch s.NominationState() {
		case models.NominationIdle:
			return nil, marketerr.Conflict(marketerr.CodeNoNomination, "there is no pending nomination")
		case models.NominationConfirmed:
			return nil, marketerr.Conflict(marketerr.CodeAlreadyConfirmed, "the nomination is already confirmed")
		}
		if *s.PendingNominatorID != memberID {
			return nil, marketerr.Authorization(marketerr.CodeNotNominator, "only the nominator can confirm")
		}
		s.NominatorConfirmed = true
		s.ReadyMembers = models.NewMemberSet(memberID)

		members, err := access.ActiveMemberIDs(ctx, q, s.LeagueID)
		if err != nil {
			return nil, err
		}
		if len(members) == 1 || s.InPersonMode || s.ReadyMembers.CoversAll(members) {
			return a.open(ctx, q, s)
		}
		return nil, nil
	})
	if err != nil {
		return Result{}, err
	}

	a.events.Send(ctx, sessionID, events.NominationConfirmed, events.NominationPayload{
		PlayerID:     res.pendingPlayer(),
		NominatorID:  memberID,
		OpeningPrice: res.openingPrice(),
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Str("member_id", memberID.String()).
		Bool("auction_started", res.Auction != nil).
		Msg("nomination confirmed")
	if res.Auction != nil {
		a.auctions.Started(ctx, *res.Auction)
	}
	return res, nil
}

// MarkReady adds a member to the ready set. The member completing the set
// opens the auction.
func (a *App) MarkReady(ctx context.Context, sessionID, memberID uuid.UUID) (Result, error) {
	var ready, total int
	res, err := a.update(ctx, sessionID, func(q db.Querier, s *models.MarketSession) (*models.Auction, error) {
		if _, err := access.Member(ctx, q, s.LeagueID, memberID); err != nil {
			return nil, err
		}
		switch s.NominationState() {
		case models.NominationIdle:
			return nil, marketerr.Conflict(marketerr.CodeNoNomination, "there is no pending nomination")
		case models.NominationPending:
			return nil, marketerr.Conflict(marketerr.CodeNotConfirmed, "the nominator has not confirmed yet")
		}
		if err := s.ReadyMembers.Add(memberID); err != nil {
			return nil, marketerr.Conflict(marketerr.CodeAlreadyReady, "member %s is already ready", memberID)
		}

		members, err := access.ActiveMemberIDs(ctx, q, s.LeagueID)
		if err != nil {
			return nil, err
		}
		ready, total = len(members)-len(s.ReadyMembers.Missing(members)), len(members)
		if s.ReadyMembers.CoversAll(members) {
			return a.open(ctx, q, s)
		}
		return nil, nil
	})
	if err != nil {
		return Result{}, err
	}

	a.events.Send(ctx, sessionID, events.MemberReady, events.MemberReadyPayload{
		MemberID: memberID,
		Ready:    ready,
		Total:    total,
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Str("member_id", memberID.String()).
		Int("ready", ready).
		Int("total", total).
		Msg("member ready")
	if res.Auction != nil {
		a.auctions.Started(ctx, *res.Auction)
	}
	return res, nil
}

// Cancel withdraws the pending nomination. The nominator may cancel until
// confirming; an admin may cancel at any point before the auction opens and
// must give a reason.
func (a *App) Cancel(ctx context.Context, sessionID, memberID uuid.UUID, reason string) (models.MarketSession, error) {
	var cancelled models.MarketSession
	res, err := a.update(ctx, sessionID, func(q db.Querier, s *models.MarketSession) (*models.Auction, error) {
		state := s.NominationState()
		if state == models.NominationIdle {
			return nil, marketerr.Conflict(marketerr.CodeNoNomination, "there is no pending nomination")
		}
		cancelled = s.Clone()

		if state == models.NominationPending && *s.PendingNominatorID == memberID {
			s.ClearPendingNomination()
			return nil, nil
		}

		if _, err := access.Admin(ctx, q, s.LeagueID, memberID); err != nil {
			if *s.PendingNominatorID == memberID {
				return nil, marketerr.Conflict(marketerr.CodeAlreadyConfirmed, "a confirmed nomination can only be cancelled by an admin")
			}
			return nil, err
		}
		if err := audit.RequireReason(reason); err != nil {
			return nil, err
		}
		s.ClearPendingNomination()
		return nil, audit.Write(ctx, q, a.clock.Now(), audit.Entry{
			SessionID: s.ID,
			ActorID:   memberID,
			Action:    models.AuditActionCancelNomination,
			Reason:    reason,
			Old:       cancelled,
			New:       s,
		})
	})
	if err != nil {
		return models.MarketSession{}, err
	}

	a.events.Send(ctx, sessionID, events.NominationCancelled, events.NominationPayload{
		PlayerID:    *cancelled.PendingPlayerID,
		NominatorID: *cancelled.PendingNominatorID,
		Reason:      reason,
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Str("member_id", memberID.String()).
		Str("player_id", cancelled.PendingPlayerID.String()).
		Msg("nomination cancelled")
	return res.Session, nil
}

// open turns the confirmed nomination into an auction.
func (a *App) open(ctx context.Context, q db.Querier, s *models.MarketSession) (*models.Auction, error) {
	player, err := a.players.get(ctx, q, *s.PendingPlayerID)
	if err != nil {
		return nil, err
	}
	auc, err := a.auctions.Open(ctx, q, auction.OpenRequest{
		Session:     s,
		Player:      player,
		NominatorID: *s.PendingNominatorID,
		BasePrice:   s.PendingOpeningPrice,
	})
	if err != nil {
		return nil, err
	}
	return &auc, nil
}

func (r Result) pendingPlayer() uuid.UUID {
	if r.Auction != nil {
		return r.Auction.PlayerID
	}
	if r.Session.PendingPlayerID != nil {
		return *r.Session.PendingPlayerID
	}
	return uuid.Nil
}

func (r Result) openingPrice() int {
	if r.Auction != nil {
		return r.Auction.BasePrice
	}
	return r.Session.PendingOpeningPrice
}
