// Package appeal lets members contest a completed auction and admins
// reverse or correct its outcome.
package appeal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/audit"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Store    db.Store
	Ledger   *roster.Ledger
	Auctions *auction.App
	Clock    clockwork.Clock
	Events   *events.Broadcaster
	Timers   auction.Scheduler
	Metrics  metrics.Collector
	Retry    sqlutil.RetryConfig
}

type App struct {
	store    db.Store
	ledger   *roster.Ledger
	auctions *auction.App
	clock    clockwork.Clock
	events   *events.Broadcaster
	timers   auction.Scheduler
	metrics  metrics.Collector
	retry    sqlutil.RetryConfig
}

func NewApp(d Deps) *App {
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
		store:    d.Store,
		ledger:   d.Ledger,
		auctions: d.Auctions,
		clock:    d.Clock,
		events:   d.Events,
		timers:   d.Timers,
		metrics:  d.Metrics,
		retry:    d.Retry,
	}
}

func isVersionConflict(err error) bool {
	return errors.Is(err, marketerr.ErrVersionConflict)
}

// tx runs fn in a unit of work retried on version conflicts.
func (a *App) tx(ctx context.Context, fn func(q db.Querier) error) error {
	_, err := sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (struct{}, error) {
		return struct{}{}, a.store.ExecTx(ctx, db.TxOptions{}, fn)
	})
	return err
}

// Submit files an appeal against a completed auction and freezes the session
// until an admin decides it. Appeals are accepted only while the auction's
// acknowledgment gate is still closed.
func (a *App) Submit(ctx context.Context, auctionID, memberID uuid.UUID, reason string) (models.AuctionAppeal, error) {
	if err := audit.RequireReason(reason); err != nil {
		return models.AuctionAppeal{}, err
	}
	// a countdown that ran out must be settled before it can be contested
	if _, err := a.auctions.Get(ctx, auctionID); err != nil {
		return models.AuctionAppeal{}, err
	}

	var appeal models.AuctionAppeal
	var sessionID uuid.UUID
	err := a.tx(ctx, func(q db.Querier) error {
		auc, err := access.Auction(ctx, q, auctionID)
		if err != nil {
			return err
		}
		if _, err := access.ActiveSession(ctx, q, auc.SessionID); err != nil {
			return err
		}
		if _, err := access.Member(ctx, q, auc.LeagueID, memberID); err != nil {
			return err
		}
		switch {
		case auc.Status == models.AuctionStatusAppealReview:
			return marketerr.Conflict(marketerr.CodeAppealPending, "auction %s already has an appeal under review", auc.ID)
		case auc.Status != models.AuctionStatusCompleted:
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "only completed auctions can be appealed, auction %s is %s", auc.ID, auc.Status)
		case auc.GateReleasedAt != nil:
			return marketerr.Conflict(marketerr.CodeGateReleased, "auction %s was acknowledged by every member", auc.ID)
		}
		latest, err := q.GetLatestAuctionBySession(ctx, auc.SessionID)
		if err != nil {
			return fmt.Errorf("failed to get latest auction: %w", err)
		}
		if latest.ID != auc.ID {
			return marketerr.Conflict(marketerr.CodeGateReleased, "auction %s is no longer the session's latest", auc.ID)
		}

		now := a.clock.Now()
		appeal = models.AuctionAppeal{
			ID:        uuid.New(),
			AuctionID: auc.ID,
			MemberID:  memberID,
			Reason:    strings.TrimSpace(reason),
			Status:    models.AppealStatusPending,
			CreatedAt: now,
		}
		if err := q.CreateAppeal(ctx, appeal); err != nil {
			return fmt.Errorf("failed to create appeal: %w", err)
		}
		auc.Status = models.AuctionStatusAppealReview
		auc.UpdatedAt = now
		sessionID = auc.SessionID
		return db.SaveAuction(ctx, q, &auc)
	})
	if err != nil {
		return models.AuctionAppeal{}, err
	}

	a.metrics.RecordAppeal("submitted")
	a.events.Send(ctx, sessionID, events.AppealSubmitted, events.AppealPayload{
		AuctionID: auctionID,
		AppealID:  appeal.ID,
		MemberID:  memberID,
		Status:    string(appeal.Status),
	})
	log.Info().
		Str("session_id", sessionID.String()).
		Str("auction_id", auctionID.String()).
		Str("appeal_id", appeal.ID.String()).
		Str("member_id", memberID.String()).
		Msg("appeal submitted")
	return appeal, nil
}

// Resolve records an admin's decision on a pending appeal. Accepting it
// reverses the transfer and parks the auction until every member is ready to
// resume bidding. Rejecting it keeps the outcome but requires every member to
// acknowledge the decision.
func (a *App) Resolve(ctx context.Context, appealID, adminID uuid.UUID, decision models.AppealStatus, note string) (models.AuctionAppeal, error) {
	if decision != models.AppealStatusAccepted && decision != models.AppealStatusRejected {
		return models.AuctionAppeal{}, marketerr.Validation(marketerr.CodeInvalidArgument, "decision must be ACCEPTED or REJECTED, got %q", decision)
	}

	var (
		appeal   models.AuctionAppeal
		auc      models.Auction
		unwound  roster.Unwound
		reversed bool
	)
	err := a.tx(ctx, func(q db.Querier) error {
		var err error
		appeal, err = q.GetAppeal(ctx, appealID)
		if errors.Is(err, db.ErrNotFound) {
			return marketerr.NotFound(marketerr.CodeAppealNotFound, "appeal %s not found", appealID)
		}
		if err != nil {
			return fmt.Errorf("failed to get appeal: %w", err)
		}
		if appeal.Status != models.AppealStatusPending {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "appeal %s is already %s", appeal.ID, appeal.Status)
		}
		auc, err = access.Auction(ctx, q, appeal.AuctionID)
		if err != nil {
			return err
		}
		if _, err := access.Admin(ctx, q, auc.LeagueID, adminID); err != nil {
			return err
		}
		if auc.Status != models.AuctionStatusAppealReview {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "auction %s is %s, not under review", auc.ID, auc.Status)
		}
		session, err := access.Session(ctx, q, auc.SessionID)
		if err != nil {
			return err
		}

		now := a.clock.Now()
		before := auc.Clone()
		appeal.Status = decision
		appeal.ResolvedBy = &adminID
		appeal.ResolvedAt = &now
		if note = strings.TrimSpace(note); note != "" {
			appeal.ResolutionNote = &note
		}
		if err := q.UpdateAppeal(ctx, appeal); err != nil {
			return err
		}

		if decision == models.AppealStatusAccepted {
			if unwound, reversed, err = a.ledger.Unwind(ctx, q, auc.ID); err != nil {
				return err
			}
			if err := q.DeleteAcknowledgments(ctx, auc.ID); err != nil {
				return fmt.Errorf("failed to delete acknowledgments: %w", err)
			}
			if err := q.RejectPendingAppeals(ctx, auc.ID, adminID, now); err != nil {
				return err
			}
			auc.Status = models.AuctionStatusAwaitingResume
			auc.WinnerID = nil
			auc.ResolvedAt = nil
			auc.TimerExpiresAt = nil
			auc.ResumeTimerSeconds = session.AuctionTimerSeconds
			auc.ResumeReadyMembers = models.NewMemberSet()
		} else {
			auc.Status = models.AuctionStatusAwaitingAppealAck
			auc.AppealDecisionAcks = models.NewMemberSet()
		}
		auc.UpdatedAt = now
		if err := db.SaveAuction(ctx, q, &auc); err != nil {
			return err
		}

		reason := note
		if reason == "" {
			reason = "appeal " + strings.ToLower(string(decision))
		}
		return audit.Write(ctx, q, now, audit.Entry{
			SessionID: auc.SessionID,
			AuctionID: &auc.ID,
			ActorID:   adminID,
			Action:    models.AuditActionResolveAppeal,
			Reason:    reason,
			Old:       before,
			New:       auc,
		})
	})
	if err != nil {
		return models.AuctionAppeal{}, err
	}

	a.metrics.RecordAppeal(string(decision))
	a.events.Send(ctx, auc.SessionID, events.AppealResolved, events.AppealPayload{
		AuctionID: auc.ID,
		AppealID:  appeal.ID,
		MemberID:  appeal.MemberID,
		Status:    string(decision),
		Note:      note,
	})
	evt := log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("appeal_id", appeal.ID.String()).
		Str("decision", string(decision))
	if reversed {
		evt = evt.Str("refunded_member_id", unwound.MemberID.String()).Int("refund", unwound.Refund)
	}
	evt.Msg("appeal resolved")
	return appeal, nil
}

// Progress counts the members that have acted in an appeal coordination step.
type Progress struct {
	Auction models.Auction
	Count   int
	Total   int
	Done    bool
}

// coordinate adds memberID to the coordination set selected by set while the
// auction is in status, and calls complete once every active member is in it.
func (a *App) coordinate(ctx context.Context, auctionID, memberID uuid.UUID, status models.AuctionStatus, dupCode string,
	set func(*models.Auction) *models.MemberSet, complete func(auc *models.Auction, now time.Time)) (Progress, error) {
	var p Progress
	err := a.tx(ctx, func(q db.Querier) error {
		auc, err := access.Auction(ctx, q, auctionID)
		if err != nil {
			return err
		}
		if _, err := access.ActiveSession(ctx, q, auc.SessionID); err != nil {
			return err
		}
		if _, err := access.Member(ctx, q, auc.LeagueID, memberID); err != nil {
			return err
		}
		if auc.Status != status {
			return marketerr.Conflict(marketerr.CodeInvalidTransition, "auction %s is %s, not %s", auc.ID, auc.Status, status)
		}
		members := set(&auc)
		if err := members.Add(memberID); err != nil {
			return marketerr.Conflict(dupCode, "member %s already responded", memberID)
		}
		active, err := access.ActiveMemberIDs(ctx, q, auc.LeagueID)
		if err != nil {
			return err
		}

		now := a.clock.Now()
		p = Progress{Count: len(active) - len(members.Missing(active)), Total: len(active)}
		if members.CoversAll(active) {
			members.Clear()
			complete(&auc, now)
			p.Done = true
		}
		auc.UpdatedAt = now
		if err := db.SaveAuction(ctx, q, &auc); err != nil {
			return err
		}
		p.Auction = auc
		return nil
	})
	return p, err
}

// AcknowledgeDecision records that a member has seen a rejected appeal. The
// last member restores the auction to COMPLETED and the normal gate applies.
func (a *App) AcknowledgeDecision(ctx context.Context, auctionID, memberID uuid.UUID) (Progress, error) {
	p, err := a.coordinate(ctx, auctionID, memberID, models.AuctionStatusAwaitingAppealAck, marketerr.CodeAlreadyAcknowledged,
		func(auc *models.Auction) *models.MemberSet { return &auc.AppealDecisionAcks },
		func(auc *models.Auction, _ time.Time) { auc.Status = models.AuctionStatusCompleted })
	if err != nil {
		return Progress{}, err
	}

	a.events.Send(ctx, p.Auction.SessionID, events.AppealAcknowledged, events.AppealProgressPayload{
		AuctionID: auctionID,
		MemberID:  memberID,
		Count:     p.Count,
		Total:     p.Total,
	})
	log.Info().
		Str("auction_id", auctionID.String()).
		Str("member_id", memberID.String()).
		Int("count", p.Count).
		Int("total", p.Total).
		Bool("restored", p.Done).
		Msg("appeal decision acknowledged")
	return p, nil
}

// MarkReadyToResume records that a member is ready for bidding to restart
// after an accepted appeal. The last member reopens the auction with a fresh
// countdown.
func (a *App) MarkReadyToResume(ctx context.Context, auctionID, memberID uuid.UUID) (Progress, error) {
	p, err := a.coordinate(ctx, auctionID, memberID, models.AuctionStatusAwaitingResume, marketerr.CodeAlreadyReady,
		func(auc *models.Auction) *models.MemberSet { return &auc.ResumeReadyMembers },
		func(auc *models.Auction, now time.Time) {
			seconds := auc.ResumeTimerSeconds
			if seconds <= 0 {
				seconds = auc.TimerSeconds
			}
			expiry := now.Add(time.Duration(seconds) * time.Second)
			auc.Status = models.AuctionStatusActive
			auc.TimerExpiresAt = &expiry
			auc.ResumeTimerSeconds = 0
		})
	if err != nil {
		return Progress{}, err
	}

	auc := p.Auction
	a.events.Send(ctx, auc.SessionID, events.ResumeReady, events.AppealProgressPayload{
		AuctionID: auctionID,
		MemberID:  memberID,
		Count:     p.Count,
		Total:     p.Total,
	})
	if p.Done {
		if a.timers != nil {
			a.timers.Schedule(auc.ID, *auc.TimerExpiresAt)
		}
		a.events.Send(ctx, auc.SessionID, events.AuctionResumed, events.AuctionResumedPayload{
			AuctionID:      auc.ID,
			TimerExpiresAt: *auc.TimerExpiresAt,
		})
	}
	log.Info().
		Str("auction_id", auctionID.String()).
		Str("member_id", memberID.String()).
		Int("count", p.Count).
		Int("total", p.Total).
		Bool("resumed", p.Done).
		Msg("member ready to resume")
	return p, nil
}

// List returns the appeals filed against an auction.
func (a *App) List(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAppeal, error) {
	if _, err := access.Auction(ctx, a.store, auctionID); err != nil {
		return nil, err
	}
	appeals, err := a.store.ListAppealsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}
	return appeals, nil
}
