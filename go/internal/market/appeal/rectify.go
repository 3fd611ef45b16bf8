package appeal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/rs/zerolog/log"
)

// RectifyRequest describes an admin correction of a completed auction.
// Without a new winner the transfer is reversed and the auction cancelled;
// with one the player is reassigned at Price.
type RectifyRequest struct {
	AuctionID   uuid.UUID
	AdminID     uuid.UUID
	Reason      string
	NewWinnerID *uuid.UUID
	Price       int
}

// Rectify unwinds a completed auction without member consensus. Every
// rectification is audited with its reason.
func (a *App) Rectify(ctx context.Context, req RectifyRequest) (models.Auction, error) {
	if err := audit.RequireReason(req.Reason); err != nil {
		return models.Auction{}, err
	}
	if req.NewWinnerID != nil && req.Price < 1 {
		return models.Auction{}, marketerr.Validation(marketerr.CodeInvalidArgument, "reassignment price must be at least 1")
	}

	var (
		auc     models.Auction
		unwound roster.Unwound
	)
	err := a.tx(ctx, func(q db.Querier) error {
		var err error
		auc, err = access.Auction(ctx, q, req.AuctionID)
		if err != nil {
			return err
		}
		if _, err := access.Admin(ctx, q, auc.LeagueID, req.AdminID); err != nil {
			return err
		}
		if auc.Status != models.AuctionStatusCompleted {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "only completed auctions can be rectified, auction %s is %s", auc.ID, auc.Status)
		}

		now := a.clock.Now()
		before := auc.Clone()
		if unwound, _, err = a.ledger.Unwind(ctx, q, auc.ID); err != nil {
			return err
		}

		if req.NewWinnerID != nil {
			if err := a.reassign(ctx, q, &auc, *req.NewWinnerID, req.Price); err != nil {
				return err
			}
		} else {
			if err := q.CancelBids(ctx, auc.ID); err != nil {
				return fmt.Errorf("failed to cancel bids: %w", err)
			}
			auc.Status = models.AuctionStatusCancelled
			auc.WinnerID = nil
		}
		auc.UpdatedAt = now
		if err := db.SaveAuction(ctx, q, &auc); err != nil {
			return err
		}
		return audit.Write(ctx, q, now, audit.Entry{
			SessionID: auc.SessionID,
			AuctionID: &auc.ID,
			ActorID:   req.AdminID,
			Action:    models.AuditActionRectify,
			Reason:    req.Reason,
			Old:       before,
			New:       auc,
		})
	})
	if err != nil {
		return models.Auction{}, err
	}

	a.metrics.RecordRectification()
	a.events.Send(ctx, auc.SessionID, events.AuctionRectified, events.RectifiedPayload{
		AuctionID: auc.ID,
		MemberID:  unwound.MemberID,
		Refund:    unwound.Refund,
		Reason:    req.Reason,
	})
	evt := log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("status", string(auc.Status)).
		Int("refund", unwound.Refund)
	if auc.WinnerID != nil {
		evt = evt.Str("winner_id", auc.WinnerID.String())
	}
	evt.Msg("auction rectified")
	return auc, nil
}

// reassign rosters the auction's player for memberID at price, subject to the
// member's slot and bilancio.
func (a *App) reassign(ctx context.Context, q db.Querier, auc *models.Auction, memberID uuid.UUID, price int) error {
	if _, err := access.Member(ctx, q, auc.LeagueID, memberID); err != nil {
		return err
	}
	league, err := access.League(ctx, q, auc.LeagueID)
	if err != nil {
		return err
	}
	standings, err := a.ledger.Standings(ctx, q, auc.LeagueID)
	if err != nil {
		return err
	}
	st := standings.Get(memberID)
	if !st.HasSlot(league.RosterLimits, auc.PlayerRole) {
		return marketerr.BusinessRule(marketerr.CodeSlotsFull, "no free %s slot", auc.PlayerRole)
	}
	if err := auction.CheckBudget(st, league.RosterLimits, a.ledger.Rules(), false, price); err != nil {
		return err
	}
	if _, err := a.ledger.Assign(ctx, q, roster.AssignRequest{
		LeagueID:  auc.LeagueID,
		SessionID: auc.SessionID,
		AuctionID: auc.ID,
		PlayerID:  auc.PlayerID,
		Role:      auc.PlayerRole,
		MemberID:  memberID,
		Price:     price,
		Type:      models.AcquisitionTypeRectified,
	}); err != nil {
		return err
	}
	auc.WinnerID = &memberID
	auc.CurrentPrice = price
	return nil
}

// ListAudit returns a session's audit trail to a league admin.
func (a *App) ListAudit(ctx context.Context, sessionID, adminID uuid.UUID) ([]models.AuditEntry, error) {
	session, err := access.Session(ctx, a.store, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := access.Admin(ctx, a.store, session.LeagueID, adminID); err != nil {
		return nil, err
	}
	entries, err := a.store.ListAuditEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
