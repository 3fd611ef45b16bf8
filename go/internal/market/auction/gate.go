package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

type GateState string

const (
	GateOpen              GateState = "open"
	GateAwaitingAcks      GateState = "awaiting_acknowledgments"
	GateAuctionInProgress GateState = "auction_in_progress"
	GateAppealInProgress  GateState = "appeal_in_progress"
)

// Gate is the acknowledgment status of a session's latest auction.
type Gate struct {
	State        GateState   `json:"state"`
	AuctionID    *uuid.UUID  `json:"auction_id,omitempty"`
	Acknowledged int         `json:"acknowledged"`
	Total        int         `json:"total"`
	Pending      []uuid.UUID `json:"pending,omitempty"`
}

// Err is the rejection a new nomination gets while the gate is closed.
func (g Gate) Err() error {
	switch g.State {
	case GateAwaitingAcks:
		return marketerr.AcksPending(len(g.Pending))
	case GateAuctionInProgress:
		return marketerr.Conflict(marketerr.CodeAuctionInProgress, "an auction is in progress")
	case GateAppealInProgress:
		return marketerr.Conflict(marketerr.CodeAppealPending, "an appeal on the previous auction is in progress")
	}
	return nil
}

// GateStatus inspects the latest auction of a session.
func GateStatus(ctx context.Context, q db.Querier, session models.MarketSession) (Gate, error) {
	auc, err := q.GetLatestAuctionBySession(ctx, session.ID)
	if errors.Is(err, db.ErrNotFound) {
		return Gate{State: GateOpen}, nil
	}
	if err != nil {
		return Gate{}, fmt.Errorf("failed to get latest auction: %w", err)
	}
	g := Gate{AuctionID: &auc.ID}

	switch {
	case auc.Status == models.AuctionStatusActive || auc.Status == models.AuctionStatusPaused:
		g.State = GateAuctionInProgress
		return g, nil
	case auc.Status == models.AuctionStatusCancelled:
		g.State = GateOpen
		return g, nil
	case !auc.Status.Resolved():
		g.State = GateAppealInProgress
		return g, nil
	}

	members, err := access.ActiveMemberIDs(ctx, q, session.LeagueID)
	if err != nil {
		return Gate{}, err
	}
	acks, err := q.ListAcknowledgments(ctx, auc.ID)
	if err != nil {
		return Gate{}, fmt.Errorf("failed to list acknowledgments: %w", err)
	}
	acked := models.NewMemberSet()
	for _, ack := range acks {
		_ = acked.Add(ack.MemberID)
	}
	g.Total = len(members)
	g.Pending = acked.Missing(members)
	g.Acknowledged = g.Total - len(g.Pending)

	if auc.GateReleasedAt != nil {
		g.State = GateOpen
		return g, nil
	}
	g.State = GateAwaitingAcks
	return g, nil
}

// Gate returns the acknowledgment status of a session.
func (a *App) Gate(ctx context.Context, sessionID uuid.UUID) (Gate, error) {
	if _, err := a.Current(ctx, sessionID); err != nil {
		return Gate{}, err
	}
	session, err := access.Session(ctx, a.store, sessionID)
	if err != nil {
		return Gate{}, err
	}
	return GateStatus(ctx, a.store, session)
}

// Acknowledge records that a member has seen an auction's outcome. The last
// acknowledgment releases the gate and advances the turn exactly once.
func (a *App) Acknowledge(ctx context.Context, auctionID, memberID uuid.UUID, commentary *string) (Gate, error) {
	if _, err := a.Get(ctx, auctionID); err != nil {
		return Gate{}, err
	}

	type acked struct {
		gate    Gate
		session uuid.UUID
		advance *turn.Result
	}
	res, err := sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (acked, error) {
		var out acked
		err := a.store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
			auc, err := access.Auction(ctx, q, auctionID)
			if err != nil {
				return err
			}
			session, err := access.ActiveSession(ctx, q, auc.SessionID)
			if err != nil {
				return err
			}
			if _, err := access.Member(ctx, q, auc.LeagueID, memberID); err != nil {
				return err
			}
			if !auc.Status.Resolved() {
				return marketerr.Conflict(marketerr.CodeInvalidTransition, "auction %s is %s and cannot be acknowledged", auc.ID, auc.Status)
			}
			if auc.GateReleasedAt != nil {
				return marketerr.Conflict(marketerr.CodeGateReleased, "every member already acknowledged auction %s", auc.ID)
			}

			now := a.clock.Now()
			ack := models.AuctionAcknowledgment{
				ID:         uuid.New(),
				AuctionID:  auc.ID,
				MemberID:   memberID,
				Commentary: commentary,
				CreatedAt:  now,
			}
			if err := q.CreateAcknowledgment(ctx, ack); err != nil {
				if errors.Is(err, db.ErrAlreadyExists) {
					return marketerr.Conflict(marketerr.CodeAlreadyAcknowledged, "member %s already acknowledged auction %s", memberID, auc.ID)
				}
				return fmt.Errorf("failed to create acknowledgment: %w", err)
			}

			gate, err := GateStatus(ctx, q, session)
			if err != nil {
				return err
			}
			out = acked{gate: gate, session: session.ID}

			if len(gate.Pending) == 0 {
				auc.GateReleasedAt = &now
				league, err := access.League(ctx, q, session.LeagueID)
				if err != nil {
					return err
				}
				next, err := a.turns.Advance(ctx, q, &session, league)
				if err != nil {
					return err
				}
				session.UpdatedAt = now
				if err := db.SaveSession(ctx, q, &session); err != nil {
					return err
				}
				out.gate.State = GateOpen
				out.advance = &next
			}
			// every acknowledgment bumps the auction version so that concurrent
			// final acknowledgments cannot both release the gate
			auc.UpdatedAt = now
			return db.SaveAuction(ctx, q, &auc)
		})
		return out, err
	})
	if err != nil {
		return Gate{}, err
	}

	a.events.Send(ctx, res.session, events.AuctionAcknowledged, events.AcknowledgedPayload{
		AuctionID:    auctionID,
		MemberID:     memberID,
		Acknowledged: res.gate.Acknowledged,
		Total:        res.gate.Total,
	})
	log.Info().
		Str("auction_id", auctionID.String()).
		Str("member_id", memberID.String()).
		Int("acknowledged", res.gate.Acknowledged).
		Int("total", res.gate.Total).
		Msg("auction acknowledged")

	if res.advance != nil {
		a.announceTurn(ctx, res.session, *res.advance)
	}
	return res.gate, nil
}

func (a *App) announceTurn(ctx context.Context, sessionID uuid.UUID, res turn.Result) {
	payload := events.TurnAdvancedPayload{
		TurnIndex:     res.Index,
		RoundComplete: res.Outcome == turn.RoundComplete,
		NoEligible:    res.Outcome == turn.NoEligible,
	}
	if res.Outcome == turn.Nominator {
		id := res.NominatorID
		payload.NominatorID = &id
	}
	if res.Role != nil {
		payload.Role = string(*res.Role)
	}
	a.events.Send(ctx, sessionID, events.TurnAdvanced, payload)
}
