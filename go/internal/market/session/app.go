// Package session manages the lifecycle of market sessions and assembles the
// market state shown to members.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/heartbeat"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimerSeconds = 30
	MinTimerSeconds     = 5
	MaxTimerSeconds     = 600
)

type Deps struct {
	Store     db.Store
	Ledger    *roster.Ledger
	Turns     *turn.App
	Auctions  *auction.App
	Heartbeat *heartbeat.App
	Clock     clockwork.Clock
	Events    *events.Broadcaster
	Timers    auction.Scheduler
	// CreateRetry bounds the retries of session creation on transient failures.
	CreateRetry  sqlutil.RetryConfig
	Retry        sqlutil.RetryConfig
	TimerSeconds int
}

type App struct {
	store        db.Store
	ledger       *roster.Ledger
	turns        *turn.App
	auctions     *auction.App
	heartbeat    *heartbeat.App
	clock        clockwork.Clock
	events       *events.Broadcaster
	timers       auction.Scheduler
	createRetry  sqlutil.RetryConfig
	retry        sqlutil.RetryConfig
	timerSeconds int
}

func NewApp(d Deps) *App {
	if d.Events == nil {
		d.Events = events.NewBroadcaster(nil, d.Clock)
	}
	if d.Retry.MaxTries == 0 {
		d.Retry = sqlutil.DefaultRetryConfig()
	}
	if d.CreateRetry.MaxTries == 0 {
		d.CreateRetry = sqlutil.DefaultRetryConfig()
	}
	if d.TimerSeconds == 0 {
		d.TimerSeconds = DefaultTimerSeconds
	}
	return &App{
		store:        d.Store,
		ledger:       d.Ledger,
		turns:        d.Turns,
		auctions:     d.Auctions,
		heartbeat:    d.Heartbeat,
		clock:        d.Clock,
		events:       d.Events,
		timers:       d.Timers,
		createRetry:  d.CreateRetry,
		retry:        d.Retry,
		timerSeconds: d.TimerSeconds,
	}
}

// CreateRequest opens a market session for a league.
type CreateRequest struct {
	LeagueID     uuid.UUID
	AdminID      uuid.UUID
	Type         models.SessionType
	TimerSeconds int
	InPersonMode bool
	// TurnOrder defaults to the members' join order.
	TurnOrder []uuid.UUID
}

func (a *App) validateCreate(req *CreateRequest) error {
	switch req.Type {
	case models.SessionTypeFirstMarket, models.SessionTypeRecurring:
	default:
		return marketerr.Validation(marketerr.CodeInvalidArgument, "invalid session type %q", req.Type)
	}
	if req.TimerSeconds == 0 {
		req.TimerSeconds = a.timerSeconds
	}
	if req.TimerSeconds < MinTimerSeconds || req.TimerSeconds > MaxTimerSeconds {
		return marketerr.Validation(marketerr.CodeInvalidArgument, "auction timer must be between %d and %d seconds", MinTimerSeconds, MaxTimerSeconds)
	}
	return nil
}

// Create opens a session. It runs serializable so that two admins racing to
// open a session cannot both succeed, and is retried on transient failures.
func (a *App) Create(ctx context.Context, req CreateRequest) (models.MarketSession, error) {
	if err := a.validateCreate(&req); err != nil {
		return models.MarketSession{}, err
	}

	s, err := sqlutil.Retry(ctx, a.createRetry, sqlutil.IsTransient, func() (models.MarketSession, error) {
		var s models.MarketSession
		err := a.store.ExecTx(ctx, db.TxOptions{Isolation: sql.LevelSerializable}, func(q db.Querier) error {
			var err error
			s, err = a.create(ctx, q, req)
			return err
		})
		return s, err
	})
	if err != nil {
		if sqlutil.IsTransient(err) {
			return models.MarketSession{}, marketerr.Transient(err)
		}
		return models.MarketSession{}, err
	}

	a.events.Send(ctx, s.ID, events.SessionUpdated, events.SessionPayload{Status: string(s.Status), Phase: string(s.Phase)})
	log.Info().
		Str("session_id", s.ID.String()).
		Str("league_id", s.LeagueID.String()).
		Str("type", string(s.Type)).
		Int("timer_seconds", s.AuctionTimerSeconds).
		Msg("market session created")
	return s, nil
}

func (a *App) create(ctx context.Context, q db.Querier, req CreateRequest) (models.MarketSession, error) {
	if _, err := access.League(ctx, q, req.LeagueID); err != nil {
		return models.MarketSession{}, err
	}
	if _, err := access.Admin(ctx, q, req.LeagueID, req.AdminID); err != nil {
		return models.MarketSession{}, err
	}
	if _, err := q.GetActiveSessionByLeague(ctx, req.LeagueID); err == nil {
		return models.MarketSession{}, marketerr.Conflict(marketerr.CodeSessionExists, "league %s already has an active session", req.LeagueID)
	} else if !errors.Is(err, db.ErrNotFound) {
		return models.MarketSession{}, fmt.Errorf("failed to get active session: %w", err)
	}
	if req.Type == models.SessionTypeFirstMarket {
		n, err := q.CountSessionsByLeagueAndType(ctx, req.LeagueID, models.SessionTypeFirstMarket)
		if err != nil {
			return models.MarketSession{}, fmt.Errorf("failed to count sessions: %w", err)
		}
		if n > 0 {
			return models.MarketSession{}, marketerr.Conflict(marketerr.CodeFirstMarketExists, "league %s already ran its first market", req.LeagueID)
		}
	}

	members, err := access.ActiveMemberIDs(ctx, q, req.LeagueID)
	if err != nil {
		return models.MarketSession{}, err
	}
	order := models.TurnOrder(members)
	if len(req.TurnOrder) > 0 {
		order = models.TurnOrder(req.TurnOrder)
		if !order.IsPermutationOf(members) {
			return models.MarketSession{}, marketerr.Validation(marketerr.CodeInvalidArgument, "turn order must list every active member exactly once")
		}
	}

	now := a.clock.Now()
	s := models.MarketSession{
		ID:                  uuid.New(),
		LeagueID:            req.LeagueID,
		Type:                req.Type,
		Status:              models.SessionStatusActive,
		Phase:               models.SessionPhaseTrades,
		TurnOrder:           order,
		AuctionTimerSeconds: req.TimerSeconds,
		InPersonMode:        req.InPersonMode,
		ReadyMembers:        models.NewMemberSet(),
		Version:             1,
		CreatedBy:           req.AdminID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if s.IsFirstMarket() {
		role := models.FirstMarketRoles[0]
		s.CurrentRole = &role
		s.Phase = models.SessionPhaseAuction
	}
	if err := q.CreateSession(ctx, s); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return models.MarketSession{}, marketerr.Conflict(marketerr.CodeSessionExists, "league %s already has an active session", req.LeagueID)
		}
		return models.MarketSession{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// phaseTransitions lists the phase changes a recurring market allows.
var phaseTransitions = map[models.SessionPhase][]models.SessionPhase{
	models.SessionPhaseTrades:   {models.SessionPhaseRenewals},
	models.SessionPhaseRenewals: {models.SessionPhaseAuction},
}

func canTransition(from, to models.SessionPhase) bool {
	for _, p := range phaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// adminUpdate applies mutate to an active session on behalf of an admin.
func (a *App) adminUpdate(ctx context.Context, sessionID, adminID uuid.UUID, mutate func(q db.Querier, s *models.MarketSession) error) (models.MarketSession, error) {
	return sqlutil.Retry(ctx, a.retry, func(err error) bool { return errors.Is(err, marketerr.ErrVersionConflict) },
		func() (models.MarketSession, error) {
			var out models.MarketSession
			err := a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
				s, err := access.ActiveSession(ctx, q, sessionID)
				if err != nil {
					return err
				}
				if _, err := access.Admin(ctx, q, s.LeagueID, adminID); err != nil {
					return err
				}
				if err := mutate(q, &s); err != nil {
					return err
				}
				s.UpdatedAt = a.clock.Now()
				if err := db.SaveSession(ctx, q, &s); err != nil {
					return err
				}
				out = s
				return nil
			})
			return out, err
		})
}

// SetPhase moves a recurring market to its next phase.
func (a *App) SetPhase(ctx context.Context, sessionID, adminID uuid.UUID, phase models.SessionPhase) (models.MarketSession, error) {
	s, err := a.adminUpdate(ctx, sessionID, adminID, func(_ db.Querier, s *models.MarketSession) error {
		if s.IsFirstMarket() {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "a first market only runs the auction phase")
		}
		if !canTransition(s.Phase, phase) {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "cannot move from %s to %s", s.Phase, phase)
		}
		s.Phase = phase
		return nil
	})
	if err != nil {
		return models.MarketSession{}, err
	}

	a.events.Send(ctx, s.ID, events.SessionUpdated, events.SessionPayload{Status: string(s.Status), Phase: string(s.Phase)})
	log.Info().
		Str("session_id", s.ID.String()).
		Str("phase", string(s.Phase)).
		Msg("session phase changed")
	return s, nil
}

// SetTurnOrder replaces the nomination order while nothing is in flight. The
// turn restarts from the first member of the new order.
func (a *App) SetTurnOrder(ctx context.Context, sessionID, adminID uuid.UUID, order []uuid.UUID) (models.MarketSession, error) {
	if _, err := a.auctions.Current(ctx, sessionID); err != nil {
		return models.MarketSession{}, err
	}
	s, err := a.adminUpdate(ctx, sessionID, adminID, func(q db.Querier, s *models.MarketSession) error {
		members, err := access.ActiveMemberIDs(ctx, q, s.LeagueID)
		if err != nil {
			return err
		}
		next := models.TurnOrder(order)
		if !next.IsPermutationOf(members) {
			return marketerr.Validation(marketerr.CodeInvalidArgument, "turn order must list every active member exactly once")
		}
		if s.NominationState() != models.NominationIdle {
			return marketerr.Conflict(marketerr.CodeNominationPending, "a nomination is pending")
		}
		gate, err := auction.GateStatus(ctx, q, *s)
		if err != nil {
			return err
		}
		if gate.State == auction.GateAuctionInProgress || gate.State == auction.GateAppealInProgress {
			return gate.Err()
		}
		s.TurnOrder = next
		s.CurrentTurnIndex = 0
		return nil
	})
	if err != nil {
		return models.MarketSession{}, err
	}

	a.events.Send(ctx, s.ID, events.SessionUpdated, events.SessionPayload{Status: string(s.Status), Phase: string(s.Phase)})
	log.Info().
		Str("session_id", s.ID.String()).
		Int("members", len(s.TurnOrder)).
		Msg("turn order changed")
	return s, nil
}

// Close completes a session. It fails while an auction or appeal is open.
func (a *App) Close(ctx context.Context, sessionID, adminID uuid.UUID, reason string) (models.MarketSession, error) {
	if reason == "" {
		reason = "market closed"
	}
	return a.end(ctx, sessionID, adminID, models.SessionStatusCompleted, models.AuditActionCloseSession, reason)
}

// Cancel aborts a session. Open auctions without a standing transfer are
// cancelled; an outcome under appeal stands.
func (a *App) Cancel(ctx context.Context, sessionID, adminID uuid.UUID, reason string) (models.MarketSession, error) {
	if err := audit.RequireReason(reason); err != nil {
		return models.MarketSession{}, err
	}
	return a.end(ctx, sessionID, adminID, models.SessionStatusCancelled, models.AuditActionCancelSession, reason)
}

func (a *App) end(ctx context.Context, sessionID, adminID uuid.UUID, status models.SessionStatus, action models.AuditAction, reason string) (models.MarketSession, error) {
	if _, err := a.auctions.Current(ctx, sessionID); err != nil {
		return models.MarketSession{}, err
	}

	var open *uuid.UUID
	s, err := a.adminUpdate(ctx, sessionID, adminID, func(q db.Querier, s *models.MarketSession) error {
		now := a.clock.Now()
		before := s.Clone()

		latest, err := q.GetLatestAuctionBySession(ctx, s.ID)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return fmt.Errorf("failed to get latest auction: %w", err)
		case latest.Status.IsOpen():
			if status == models.SessionStatusCompleted {
				return marketerr.Conflict(marketerr.CodeAuctionInProgress, "auction %s is still %s", latest.ID, latest.Status)
			}
			if err := a.abandon(ctx, q, &latest, adminID, now); err != nil {
				return err
			}
			open = &latest.ID
		}

		s.ClearPendingNomination()
		s.Status = status
		s.ClosedAt = &now
		return audit.Write(ctx, q, now, audit.Entry{
			SessionID: s.ID,
			ActorID:   adminID,
			Action:    action,
			Reason:    reason,
			Old:       before,
			New:       s,
		})
	})
	if err != nil {
		return models.MarketSession{}, err
	}

	if open != nil && a.timers != nil {
		a.timers.Cancel(*open)
	}
	if a.heartbeat != nil {
		a.heartbeat.Forget(ctx, s.ID)
	}
	a.events.Send(ctx, s.ID, events.SessionClosed, events.SessionPayload{Status: string(s.Status), Phase: string(s.Phase)})
	log.Info().
		Str("session_id", s.ID.String()).
		Str("status", string(s.Status)).
		Str("reason", reason).
		Msg("market session ended")
	return s, nil
}

// abandon settles an open auction of a cancelled session.
func (a *App) abandon(ctx context.Context, q db.Querier, auc *models.Auction, adminID uuid.UUID, now time.Time) error {
	switch auc.Status {
	case models.AuctionStatusAppealReview, models.AuctionStatusAwaitingAppealAck:
		if err := q.RejectPendingAppeals(ctx, auc.ID, adminID, now); err != nil {
			return err
		}
		auc.Status = models.AuctionStatusCompleted
		auc.AppealDecisionAcks.Clear()
	default:
		if err := q.CancelBids(ctx, auc.ID); err != nil {
			return fmt.Errorf("failed to cancel bids: %w", err)
		}
		auc.Status = models.AuctionStatusCancelled
		auc.TimerExpiresAt = nil
		auc.PausedRemainingMs = 0
		auc.ResumeReadyMembers.Clear()
		auc.ResolvedAt = &now
	}
	auc.UpdatedAt = now
	return db.SaveAuction(ctx, q, auc)
}

// Get returns a session to one of its league's members.
func (a *App) Get(ctx context.Context, sessionID, memberID uuid.UUID) (models.MarketSession, error) {
	s, err := access.Session(ctx, a.store, sessionID)
	if err != nil {
		return models.MarketSession{}, err
	}
	if _, err := access.Member(ctx, a.store, s.LeagueID, memberID); err != nil {
		return models.MarketSession{}, err
	}
	return s, nil
}

// List returns every session of a league, newest first.
func (a *App) List(ctx context.Context, leagueID, memberID uuid.UUID) ([]models.MarketSession, error) {
	if _, err := access.Member(ctx, a.store, leagueID, memberID); err != nil {
		return nil, err
	}
	sessions, err := a.store.ListSessionsByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Heartbeat records that a member is connected to an active session.
func (a *App) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID) error {
	s, err := access.ActiveSession(ctx, a.store, sessionID)
	if err != nil {
		return err
	}
	if _, err := access.Member(ctx, a.store, s.LeagueID, memberID); err != nil {
		return err
	}
	return a.heartbeat.Beat(ctx, sessionID, memberID)
}
