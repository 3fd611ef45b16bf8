package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// adminUpdate loads an auction, checks the caller is a league admin, applies
// mutate and writes the auction together with an audit entry.
func (a *App) adminUpdate(ctx context.Context, auctionID, adminID uuid.UUID, action models.AuditAction, reason string,
	mutate func(q db.Querier, auc *models.Auction, now time.Time) error) (models.Auction, error) {
	return sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (models.Auction, error) {
		var result models.Auction
		err := a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
			auc, err := access.Auction(ctx, q, auctionID)
			if err != nil {
				return err
			}
			if _, err := access.Admin(ctx, q, auc.LeagueID, adminID); err != nil {
				return err
			}
			now := a.clock.Now()
			before := auc.Clone()
			if err := mutate(q, &auc, now); err != nil {
				return err
			}
			auc.UpdatedAt = now
			if err := db.SaveAuction(ctx, q, &auc); err != nil {
				return err
			}
			result = auc
			return audit.Write(ctx, q, now, audit.Entry{
				SessionID: auc.SessionID,
				AuctionID: &auc.ID,
				ActorID:   adminID,
				Action:    action,
				Reason:    reason,
				Old:       before,
				New:       auc,
			})
		})
		return result, err
	})
}

// Pause freezes the countdown of an ACTIVE auction.
func (a *App) Pause(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (models.Auction, error) {
	if err := audit.RequireReason(reason); err != nil {
		return models.Auction{}, err
	}
	auc, err := a.adminUpdate(ctx, auctionID, adminID, models.AuditActionPauseAuction, reason,
		func(_ db.Querier, auc *models.Auction, now time.Time) error {
			if auc.Status != models.AuctionStatusActive {
				return marketerr.Conflict(marketerr.CodeAuctionNotActive, "auction %s is %s", auc.ID, auc.Status)
			}
			if auc.Expired(now) {
				return marketerr.Conflict(marketerr.CodeAuctionExpired, "auction %s countdown has ended", auc.ID)
			}
			auc.Status = models.AuctionStatusPaused
			auc.PausedRemainingMs = auc.Remaining(now).Milliseconds()
			auc.TimerExpiresAt = nil
			return nil
		})
	if err != nil {
		if marketerr.CodeOf(err) == marketerr.CodeAuctionExpired {
			a.timers.Schedule(auctionID, a.clock.Now())
		}
		return models.Auction{}, err
	}

	a.timers.Cancel(auc.ID)
	a.events.Send(ctx, auc.SessionID, events.PauseRequested, events.AuctionPausedPayload{
		AuctionID:   auc.ID,
		RemainingMs: auc.PausedRemainingMs,
		Reason:      reason,
	})
	log.Info().
		Str("auction_id", auc.ID.String()).
		Int64("remaining_ms", auc.PausedRemainingMs).
		Msg("auction paused")
	return auc, nil
}

// Resume restarts a PAUSED auction with the time it had left.
func (a *App) Resume(ctx context.Context, auctionID, adminID uuid.UUID) (models.Auction, error) {
	auc, err := a.adminUpdate(ctx, auctionID, adminID, models.AuditActionResumeAuction, "resumed by admin",
		func(_ db.Querier, auc *models.Auction, now time.Time) error {
			if auc.Status != models.AuctionStatusPaused {
				return marketerr.Conflict(marketerr.CodeInvalidTransition, "auction %s is %s, not paused", auc.ID, auc.Status)
			}
			remaining := time.Duration(auc.PausedRemainingMs) * time.Millisecond
			if remaining <= 0 {
				remaining = time.Duration(auc.TimerSeconds) * time.Second
			}
			expiry := now.Add(remaining)
			auc.Status = models.AuctionStatusActive
			auc.TimerExpiresAt = &expiry
			auc.PausedRemainingMs = 0
			return nil
		})
	if err != nil {
		return models.Auction{}, err
	}

	a.timers.Schedule(auc.ID, *auc.TimerExpiresAt)
	a.events.Send(ctx, auc.SessionID, events.AuctionResumed, events.AuctionResumedPayload{
		AuctionID:      auc.ID,
		TimerExpiresAt: *auc.TimerExpiresAt,
	})
	log.Info().
		Str("auction_id", auc.ID.String()).
		Time("timer_expires_at", *auc.TimerExpiresAt).
		Msg("auction resumed")
	return auc, nil
}

// CancelActive aborts an ACTIVE or PAUSED auction without assigning the
// player. The turn does not advance and no acknowledgments are required.
func (a *App) CancelActive(ctx context.Context, auctionID, adminID uuid.UUID, reason string) (models.Auction, error) {
	if err := audit.RequireReason(reason); err != nil {
		return models.Auction{}, err
	}
	auc, err := a.adminUpdate(ctx, auctionID, adminID, models.AuditActionCancelAuction, reason,
		func(q db.Querier, auc *models.Auction, now time.Time) error {
			if auc.Status != models.AuctionStatusActive && auc.Status != models.AuctionStatusPaused {
				return marketerr.Conflict(marketerr.CodeAuctionNotActive, "auction %s is %s", auc.ID, auc.Status)
			}
			if err := q.CancelBids(ctx, auc.ID); err != nil {
				return fmt.Errorf("failed to cancel bids: %w", err)
			}
			auc.Status = models.AuctionStatusCancelled
			auc.TimerExpiresAt = nil
			auc.PausedRemainingMs = 0
			auc.ResolvedAt = &now
			return nil
		})
	if err != nil {
		return models.Auction{}, err
	}

	a.timers.Cancel(auc.ID)
	a.events.Send(ctx, auc.SessionID, events.AuctionCancelled, events.AuctionCancelledPayload{
		AuctionID: auc.ID,
		Reason:    reason,
	})
	log.Info().
		Str("auction_id", auc.ID.String()).
		Str("reason", reason).
		Msg("auction cancelled")
	return auc, nil
}

// Recover arms a countdown for every ACTIVE auction, resolving those that
// expired while no process was running.
func (a *App) Recover(ctx context.Context) error {
	active, err := a.store.ListAuctionsByStatus(ctx, models.AuctionStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active auctions: %w", err)
	}
	now := a.clock.Now()
	for _, auc := range active {
		if auc.TimerExpiresAt == nil {
			continue
		}
		if auc.Expired(now) {
			if _, err := a.resolveExpired(ctx, auc.ID, TriggerTimer); err != nil {
				log.Error().Err(err).Str("auction_id", auc.ID.String()).Msg("failed to resolve expired auction on recovery")
			}
			continue
		}
		a.timers.Schedule(auc.ID, *auc.TimerExpiresAt)
	}
	log.Info().Int("auctions", len(active)).Msg("auction timers recovered")
	return nil
}
