// Package auction runs bidding, resolution and the acknowledgment gate.
package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Resolution triggers.
const (
	TriggerAdmin = "admin"
	TriggerTimer = "timer"
	TriggerRead  = "read"
)

// Scheduler arms and disarms per-auction countdowns.
type Scheduler interface {
	Schedule(auctionID uuid.UUID, deadline time.Time)
	Cancel(auctionID uuid.UUID)
}

type nopScheduler struct{}

func (nopScheduler) Schedule(uuid.UUID, time.Time) {}
func (nopScheduler) Cancel(uuid.UUID)              {}

// Deps holds the collaborators of App.
type Deps struct {
	Store   db.Store
	Ledger  *roster.Ledger
	Turns   *turn.App
	Clock   clockwork.Clock
	Events  *events.Broadcaster
	Timers  Scheduler
	Metrics metrics.Collector
	Retry   sqlutil.RetryConfig
}

type App struct {
	store   db.Store
	ledger  *roster.Ledger
	turns   *turn.App
	clock   clockwork.Clock
	events  *events.Broadcaster
	timers  Scheduler
	metrics metrics.Collector
	retry   sqlutil.RetryConfig

	// resolving collapses concurrent lazy resolutions of the same auction
	resolving singleflight.Group
}

func NewApp(d Deps) *App {
	if d.Timers == nil {
		d.Timers = nopScheduler{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NoOp{}
	}
	if d.Events == nil {
		d.Events = events.NewBroadcaster(nil, d.Clock)
	}
	if d.Retry.MaxTries == 0 {
		d.Retry = sqlutil.DefaultRetryConfig()
	}
	return &App{
		store:   d.Store,
		ledger:  d.Ledger,
		turns:   d.Turns,
		clock:   d.Clock,
		events:  d.Events,
		timers:  d.Timers,
		metrics: d.Metrics,
		retry:   d.Retry,
	}
}

func isVersionConflict(err error) bool {
	return errors.Is(err, marketerr.ErrVersionConflict)
}

// OpenRequest describes a confirmed nomination turning into an auction.
type OpenRequest struct {
	Session     *models.MarketSession
	Player      models.Player
	NominatorID uuid.UUID
	BasePrice   int
}

// Open creates the auction and the nominator's opening bid inside the
// caller's unit of work, and clears the session's pending nomination. The
// caller persists the session and then calls Started.
func (a *App) Open(ctx context.Context, q db.Querier, req OpenRequest) (models.Auction, error) {
	now := a.clock.Now()
	s := req.Session
	expiry := now.Add(time.Duration(s.AuctionTimerSeconds) * time.Second)
	auc := models.Auction{
		ID:                 uuid.New(),
		SessionID:          s.ID,
		LeagueID:           s.LeagueID,
		PlayerID:           req.Player.ID,
		PlayerRole:         req.Player.Role,
		NominatorID:        req.NominatorID,
		Status:             models.AuctionStatusActive,
		BasePrice:          req.BasePrice,
		CurrentPrice:       req.BasePrice,
		TimerSeconds:       s.AuctionTimerSeconds,
		TimerExpiresAt:     &expiry,
		AppealDecisionAcks: models.NewMemberSet(),
		ResumeReadyMembers: models.NewMemberSet(),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := q.CreateAuction(ctx, auc); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return models.Auction{}, marketerr.Conflict(marketerr.CodeAuctionInProgress, "session %s already has an auction in progress", s.ID)
		}
		return models.Auction{}, fmt.Errorf("failed to create auction: %w", err)
	}
	opening := models.AuctionBid{
		ID:        uuid.New(),
		AuctionID: auc.ID,
		MemberID:  req.NominatorID,
		Amount:    req.BasePrice,
		IsWinning: true,
		CreatedAt: now,
	}
	if err := q.CreateBid(ctx, opening); err != nil {
		return models.Auction{}, fmt.Errorf("failed to create opening bid: %w", err)
	}
	s.ClearPendingNomination()
	s.UpdatedAt = now
	return auc, nil
}

// Started arms the countdown and announces a committed auction.
func (a *App) Started(ctx context.Context, auc models.Auction) {
	if auc.TimerExpiresAt != nil {
		a.timers.Schedule(auc.ID, *auc.TimerExpiresAt)
	}
	a.events.Send(ctx, auc.SessionID, events.AuctionStarted, events.AuctionStartedPayload{
		AuctionID:      auc.ID,
		PlayerID:       auc.PlayerID,
		NominatorID:    auc.NominatorID,
		BasePrice:      auc.BasePrice,
		TimerExpiresAt: *auc.TimerExpiresAt,
	})
	log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("player_id", auc.PlayerID.String()).
		Int("base_price", auc.BasePrice).
		Time("timer_expires_at", *auc.TimerExpiresAt).
		Msg("auction started")
}

// Get returns an auction, resolving it first if its countdown ran out.
func (a *App) Get(ctx context.Context, auctionID uuid.UUID) (models.Auction, error) {
	auc, err := access.Auction(ctx, a.store, auctionID)
	if err != nil {
		return auc, err
	}
	if !auc.Expired(a.clock.Now()) {
		return auc, nil
	}
	if _, err := a.resolveExpired(ctx, auctionID, TriggerRead); err != nil {
		return models.Auction{}, err
	}
	return access.Auction(ctx, a.store, auctionID)
}

// Current returns the latest auction of a session, nil when there is none.
// An expired auction is resolved before it is returned.
func (a *App) Current(ctx context.Context, sessionID uuid.UUID) (*models.Auction, error) {
	auc, err := a.store.GetLatestAuctionBySession(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current auction: %w", err)
	}
	if auc.Expired(a.clock.Now()) {
		if auc, err = a.Get(ctx, auc.ID); err != nil {
			return nil, err
		}
	}
	return &auc, nil
}

// Bids lists every bid of an auction in arrival order.
func (a *App) Bids(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionBid, error) {
	bids, err := a.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// WinningBid returns the current winning bid, nil when there is none.
func (a *App) WinningBid(ctx context.Context, auctionID uuid.UUID) (*models.AuctionBid, error) {
	bid, err := a.store.GetWinningBid(ctx, auctionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}
	return &bid, nil
}

// ResolveExpired settles an auction whose countdown has run out. It is called
// by the timer orchestrator.
func (a *App) ResolveExpired(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return a.resolveExpired(ctx, auctionID, TriggerTimer)
}

func (a *App) resolveExpired(ctx context.Context, auctionID uuid.UUID, trigger string) (bool, error) {
	v, err, _ := a.resolving.Do(auctionID.String(), func() (any, error) {
		return sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (bool, error) {
			var out *outcome
			err := a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
				auc, err := access.Auction(ctx, q, auctionID)
				if err != nil {
					return err
				}
				if !auc.Expired(a.clock.Now()) {
					return nil
				}
				out, err = a.resolve(ctx, q, &auc)
				return err
			})
			if err != nil || out == nil {
				return false, err
			}
			a.resolved(ctx, *out, trigger)
			return true, nil
		})
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Close resolves an auction immediately on an admin's request. Closing an
// auction that is already resolved returns it unchanged.
func (a *App) Close(ctx context.Context, auctionID, adminID uuid.UUID) (models.Auction, error) {
	var out *outcome
	var result models.Auction
	_, err := sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (struct{}, error) {
		out = nil
		return struct{}{}, a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
			auc, err := access.Auction(ctx, q, auctionID)
			if err != nil {
				return err
			}
			if _, err := access.Admin(ctx, q, auc.LeagueID, adminID); err != nil {
				return err
			}
			if auc.Status.Resolved() {
				result = auc
				return nil
			}
			if auc.Status != models.AuctionStatusActive && auc.Status != models.AuctionStatusPaused {
				return marketerr.Conflict(marketerr.CodeAuctionNotActive, "auction %s is %s", auc.ID, auc.Status)
			}
			before := auc.Clone()
			if out, err = a.resolve(ctx, q, &auc); err != nil {
				return err
			}
			result = auc
			return audit.Write(ctx, q, a.clock.Now(), audit.Entry{
				SessionID: auc.SessionID,
				AuctionID: &auc.ID,
				ActorID:   adminID,
				Action:    models.AuditActionCloseAuction,
				Reason:    "closed by admin",
				Old:       before,
				New:       auc,
			})
		})
	})
	if err != nil {
		return models.Auction{}, err
	}
	if out != nil {
		a.resolved(ctx, *out, TriggerAdmin)
	}
	return result, nil
}

type outcome struct {
	auction models.Auction
	salary  int
}

// resolve assigns the player to the winning bidder, or marks the auction
// NO_BIDS. The auction write is conditional on the version read, so a racing
// resolution or appeal makes one of the two roll back.
func (a *App) resolve(ctx context.Context, q db.Querier, auc *models.Auction) (*outcome, error) {
	session, err := access.Session(ctx, q, auc.SessionID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	out := &outcome{}

	bid, err := q.GetWinningBid(ctx, auc.ID)
	switch {
	case err == nil:
		winner := bid.MemberID
		auc.Status = models.AuctionStatusCompleted
		auc.WinnerID = &winner
		auc.CurrentPrice = bid.Amount
	case errors.Is(err, db.ErrNotFound):
		auc.Status = models.AuctionStatusNoBids
		auc.WinnerID = nil
	default:
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}

	// Claim the auction before rostering so a concurrent resolver conflicts
	// instead of assigning the player twice.
	auc.PausedRemainingMs = 0
	auc.ResolvedAt = &now
	auc.UpdatedAt = now
	if err := db.SaveAuction(ctx, q, auc); err != nil {
		return nil, err
	}

	if auc.Status == models.AuctionStatusCompleted {
		acquisition := models.AcquisitionTypeAuction
		if session.IsFirstMarket() {
			acquisition = models.AcquisitionTypeFirstMarket
		}
		asg, err := a.ledger.Assign(ctx, q, roster.AssignRequest{
			LeagueID:  auc.LeagueID,
			SessionID: auc.SessionID,
			AuctionID: auc.ID,
			PlayerID:  auc.PlayerID,
			Role:      auc.PlayerRole,
			MemberID:  bid.MemberID,
			Price:     bid.Amount,
			Type:      acquisition,
		})
		if err != nil {
			return nil, err
		}
		out.salary = asg.Contract.Salary
	}
	out.auction = *auc
	return out, nil
}

// resolved runs the side effects of a committed resolution.
func (a *App) resolved(ctx context.Context, out outcome, trigger string) {
	auc := out.auction
	a.timers.Cancel(auc.ID)
	a.metrics.RecordResolution(string(auc.Status), trigger)
	a.events.Send(ctx, auc.SessionID, events.AuctionClosed, events.AuctionClosedPayload{
		AuctionID: auc.ID,
		Status:    string(auc.Status),
		WinnerID:  auc.WinnerID,
		Price:     auc.CurrentPrice,
		Salary:    out.salary,
		Trigger:   trigger,
	})

	evt := log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("status", string(auc.Status)).
		Str("trigger", trigger).
		Int("price", auc.CurrentPrice)
	if auc.WinnerID != nil {
		evt = evt.Str("winner_id", auc.WinnerID.String())
	}
	evt.Msg("auction resolved")
}
