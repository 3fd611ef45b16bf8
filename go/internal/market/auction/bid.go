package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/access"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// Reserve is the bilancio a first-market bidder must keep back to fill the
// roster slots left after this pick, at 1 credit plus a 1-credit salary each.
func Reserve(st roster.Standing, limits models.RosterLimits) int {
	remaining := limits.Total() - st.Total() - 1
	if remaining < 0 {
		remaining = 0
	}
	return 2 * remaining
}

// CheckBudget rejects an amount the member cannot afford.
func CheckBudget(st roster.Standing, limits models.RosterLimits, rules roster.ContractRules, firstMarket bool, amount int) error {
	available := st.Bilancio()
	if firstMarket {
		available -= Reserve(st, limits)
	}
	if need := rules.MinimumOutlay(amount); need > available {
		return marketerr.BusinessRule(marketerr.CodeInsufficientBudget,
			"bid of %d needs %d credits but only %d are available", amount, need, available)
	}
	return nil
}

// BidCheck is the input of ValidateBid.
type BidCheck struct {
	Auction     models.Auction
	Standing    roster.Standing
	Limits      models.RosterLimits
	Rules       roster.ContractRules
	FirstMarket bool
	Amount      int
	Now         time.Time
}

// ValidateBid applies the bidding rules in order: auction state, countdown,
// budget, price and roster slots.
func ValidateBid(c BidCheck) error {
	if c.Auction.Status != models.AuctionStatusActive {
		return marketerr.Conflict(marketerr.CodeAuctionNotActive, "auction %s is %s", c.Auction.ID, c.Auction.Status)
	}
	if c.Auction.Expired(c.Now) {
		return marketerr.Conflict(marketerr.CodeAuctionExpired, "auction %s countdown has ended", c.Auction.ID)
	}
	if c.Amount < 1 {
		return marketerr.Validation(marketerr.CodeInvalidArgument, "bid amount must be positive")
	}
	if err := CheckBudget(c.Standing, c.Limits, c.Rules, c.FirstMarket, c.Amount); err != nil {
		return err
	}
	if c.Amount <= c.Auction.CurrentPrice {
		return marketerr.BusinessRule(marketerr.CodeBidTooLow, "bid must exceed the current price of %d", c.Auction.CurrentPrice)
	}
	if !c.Standing.HasSlot(c.Limits, c.Auction.PlayerRole) {
		return marketerr.BusinessRule(marketerr.CodeSlotsFull, "no free %s slot", c.Auction.PlayerRole)
	}
	return nil
}

// PlaceBid records a bid and restarts the countdown. The price update is a
// conditional write on the auction version, retried against fresh state when
// another bid lands first.
func (a *App) PlaceBid(ctx context.Context, auctionID, memberID uuid.UUID, amount int) (models.Auction, models.AuctionBid, error) {
	start := a.clock.Now()
	type placed struct {
		auction models.Auction
		bid     models.AuctionBid
	}

	res, err := sqlutil.Retry(ctx, a.retry, isVersionConflict, func() (placed, error) {
		var p placed
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
			league, err := access.League(ctx, q, auc.LeagueID)
			if err != nil {
				return err
			}
			standings, err := a.ledger.Standings(ctx, q, auc.LeagueID)
			if err != nil {
				return err
			}

			now := a.clock.Now()
			if err := ValidateBid(BidCheck{
				Auction:     auc,
				Standing:    standings.Get(memberID),
				Limits:      league.RosterLimits,
				Rules:       a.ledger.Rules(),
				FirstMarket: session.IsFirstMarket(),
				Amount:      amount,
				Now:         now,
			}); err != nil {
				return err
			}

			// The versioned save goes first so a concurrent bid conflicts
			// before any bid row is touched.
			expiry := now.Add(time.Duration(auc.TimerSeconds) * time.Second)
			auc.CurrentPrice = amount
			auc.TimerExpiresAt = &expiry
			auc.UpdatedAt = now
			if err := db.SaveAuction(ctx, q, &auc); err != nil {
				return err
			}
			if err := q.ClearWinningBid(ctx, auc.ID); err != nil {
				return err
			}
			bid := models.AuctionBid{
				ID:        uuid.New(),
				AuctionID: auc.ID,
				MemberID:  memberID,
				Amount:    amount,
				IsWinning: true,
				CreatedAt: now,
			}
			if err := q.CreateBid(ctx, bid); err != nil {
				return err
			}
			p = placed{auction: auc, bid: bid}
			return nil
		})
		return p, err
	})

	elapsed := a.clock.Since(start)
	if err != nil {
		a.metrics.RecordBid(false, marketerr.CodeOf(err), elapsed)
		if marketerr.CodeOf(err) == marketerr.CodeAuctionExpired {
			// settle it now rather than on the next read
			a.timers.Schedule(auctionID, a.clock.Now())
		}
		log.Debug().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("member_id", memberID.String()).
			Int("amount", amount).
			Msg("bid rejected")
		return models.Auction{}, models.AuctionBid{}, err
	}
	a.metrics.RecordBid(true, "", elapsed)

	auc := res.auction
	a.timers.Schedule(auc.ID, *auc.TimerExpiresAt)
	a.events.Send(ctx, auc.SessionID, events.BidPlaced, events.BidPlacedPayload{
		AuctionID:      auc.ID,
		MemberID:       memberID,
		Amount:         amount,
		TimerExpiresAt: *auc.TimerExpiresAt,
	})
	log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("member_id", memberID.String()).
		Int("amount", amount).
		Time("timer_expires_at", *auc.TimerExpiresAt).
		Msg("bid accepted")

	return auc, res.bid, nil
}
