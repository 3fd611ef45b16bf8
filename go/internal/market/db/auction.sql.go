package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
)

const auctionColumns = `id, session_id, league_id, player_id, player_role, nominator_id, status, base_price,
current_price, timer_seconds, timer_expires_at, paused_remaining_ms, resume_timer_seconds, winner_id,
appeal_decision_acks, resume_ready_members, gate_released_at, version, created_at, updated_at, resolved_at`

func scanAuction(row rowScanner) (models.Auction, error) {
	var (
		a          models.Auction
		expiresAt  sql.Null[time.Time]
		winner     uuid.NullUUID
		releasedAt sql.Null[time.Time]
		resolvedAt sql.Null[time.Time]
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.LeagueID, &a.PlayerID, &a.PlayerRole, &a.NominatorID,
		&a.Status, &a.BasePrice, &a.CurrentPrice, &a.TimerSeconds, &expiresAt, &a.PausedRemainingMs,
		&a.ResumeTimerSeconds, &winner, &a.AppealDecisionAcks, &a.ResumeReadyMembers, &releasedAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt, &resolvedAt)
	if err != nil {
		return a, err
	}
	a.TimerExpiresAt = sqlutil.FromNull(expiresAt)
	a.WinnerID = sqlutil.FromNullUUID(winner)
	a.GateReleasedAt = sqlutil.FromNull(releasedAt)
	a.ResolvedAt = sqlutil.FromNull(resolvedAt)
	return a, nil
}

func (q *Queries) listAuctions(ctx context.Context, query string, args ...any) ([]models.Auction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()
	var out []models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const createAuction = `-- name: CreateAuction :exec
INSERT INTO auctions (` + auctionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

func (q *Queries) CreateAuction(ctx context.Context, a models.Auction) error {
	_, err := q.db.ExecContext(ctx, createAuction,
		a.ID, a.SessionID, a.LeagueID, a.PlayerID, a.PlayerRole, a.NominatorID, a.Status,
		a.BasePrice, a.CurrentPrice, a.TimerSeconds, sqlutil.ToNull(a.TimerExpiresAt),
		a.PausedRemainingMs, a.ResumeTimerSeconds, sqlutil.ToNullUUID(a.WinnerID),
		a.AppealDecisionAcks, a.ResumeReadyMembers, sqlutil.ToNull(a.GateReleasedAt),
		a.Version, a.CreatedAt, a.UpdatedAt, sqlutil.ToNull(a.ResolvedAt),
	)
	return insertErr(err, "auction")
}

const getAuction = `-- name: GetAuction :one
SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

func (q *Queries) GetAuction(ctx context.Context, id uuid.UUID) (models.Auction, error) {
	a, err := scanAuction(q.db.QueryRowContext(ctx, getAuction, id))
	return a, one(err, "auction")
}

const getLatestAuctionBySession = `-- name: GetLatestAuctionBySession :one
SELECT ` + auctionColumns + ` FROM auctions WHERE session_id = $1
ORDER BY created_at DESC, id DESC LIMIT 1`

func (q *Queries) GetLatestAuctionBySession(ctx context.Context, sessionID uuid.UUID) (models.Auction, error) {
	a, err := scanAuction(q.db.QueryRowContext(ctx, getLatestAuctionBySession, sessionID))
	return a, one(err, "auction")
}

const listAuctionsByStatus = `-- name: ListAuctionsByStatus :many
SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at, id`

func (q *Queries) ListAuctionsByStatus(ctx context.Context, status models.AuctionStatus) ([]models.Auction, error) {
	return q.listAuctions(ctx, listAuctionsByStatus, status)
}

const updateAuction = `-- name: UpdateAuction :execrows
UPDATE auctions SET
    status = $3, current_price = $4, timer_seconds = $5, timer_expires_at = $6,
    paused_remaining_ms = $7, resume_timer_seconds = $8, winner_id = $9,
    appeal_decision_acks = $10, resume_ready_members = $11, gate_released_at = $12,
    updated_at = $13, resolved_at = $14, version = version + 1
WHERE id = $1 AND version = $2`

func (q *Queries) UpdateAuction(ctx context.Context, a models.Auction, expectedVersion int64) (bool, error) {
	ok, err := affected(q.db.ExecContext(ctx, updateAuction,
		a.ID, expectedVersion, a.Status, a.CurrentPrice, a.TimerSeconds, sqlutil.ToNull(a.TimerExpiresAt),
		a.PausedRemainingMs, a.ResumeTimerSeconds, sqlutil.ToNullUUID(a.WinnerID),
		a.AppealDecisionAcks, a.ResumeReadyMembers, sqlutil.ToNull(a.GateReleasedAt),
		a.UpdatedAt, sqlutil.ToNull(a.ResolvedAt),
	))
	if err != nil {
		return false, fmt.Errorf("failed to update auction: %w", err)
	}
	return ok, nil
}

const bidColumns = `id, auction_id, member_id, amount, is_winning, is_cancelled, created_at`

func scanBid(row rowScanner) (models.AuctionBid, error) {
	var b models.AuctionBid
	err := row.Scan(&b.ID, &b.AuctionID, &b.MemberID, &b.Amount, &b.IsWinning, &b.IsCancelled, &b.CreatedAt)
	return b, err
}

const createBid = `-- name: CreateBid :exec
INSERT INTO auction_bids (` + bidColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (q *Queries) CreateBid(ctx context.Context, b models.AuctionBid) error {
	_, err := q.db.ExecContext(ctx, createBid,
		b.ID, b.AuctionID, b.MemberID, b.Amount, b.IsWinning, b.IsCancelled, b.CreatedAt)
	return insertErr(err, "bid")
}

const getWinningBid = `-- name: GetWinningBid :one
SELECT ` + bidColumns + ` FROM auction_bids
WHERE auction_id = $1 AND is_winning AND NOT is_cancelled`

func (q *Queries) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (models.AuctionBid, error) {
	b, err := scanBid(q.db.QueryRowContext(ctx, getWinningBid, auctionID))
	return b, one(err, "winning bid")
}

const listBids = `-- name: ListBids :many
SELECT ` + bidColumns + ` FROM auction_bids WHERE auction_id = $1 ORDER BY created_at, amount`

func (q *Queries) ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionBid, error) {
	rows, err := q.db.QueryContext(ctx, listBids, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()
	var out []models.AuctionBid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const clearWinningBid = `-- name: ClearWinningBid :exec
UPDATE auction_bids SET is_winning = FALSE WHERE auction_id = $1 AND is_winning`

func (q *Queries) ClearWinningBid(ctx context.Context, auctionID uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, clearWinningBid, auctionID); err != nil {
		return fmt.Errorf("failed to clear winning bid: %w", err)
	}
	return nil
}

const cancelBids = `-- name: CancelBids :exec
UPDATE auction_bids SET is_cancelled = TRUE, is_winning = FALSE WHERE auction_id = $1`

func (q *Queries) CancelBids(ctx context.Context, auctionID uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, cancelBids, auctionID); err != nil {
		return fmt.Errorf("failed to cancel bids: %w", err)
	}
	return nil
}

const createAcknowledgment = `-- name: CreateAcknowledgment :exec
INSERT INTO auction_acknowledgments (id, auction_id, member_id, commentary, created_at)
VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) CreateAcknowledgment(ctx context.Context, a models.AuctionAcknowledgment) error {
	_, err := q.db.ExecContext(ctx, createAcknowledgment,
		a.ID, a.AuctionID, a.MemberID, sqlutil.ToNull(a.Commentary), a.CreatedAt)
	return insertErr(err, "acknowledgment")
}

const listAcknowledgments = `-- name: ListAcknowledgments :many
SELECT id, auction_id, member_id, commentary, created_at
FROM auction_acknowledgments WHERE auction_id = $1 ORDER BY created_at`

func (q *Queries) ListAcknowledgments(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAcknowledgment, error) {
	rows, err := q.db.QueryContext(ctx, listAcknowledgments, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acknowledgments: %w", err)
	}
	defer rows.Close()
	var out []models.AuctionAcknowledgment
	for rows.Next() {
		var a models.AuctionAcknowledgment
		var commentary sql.Null[string]
		if err := rows.Scan(&a.ID, &a.AuctionID, &a.MemberID, &commentary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan acknowledgment: %w", err)
		}
		a.Commentary = sqlutil.FromNull(commentary)
		out = append(out, a)
	}
	return out, rows.Err()
}

const deleteAcknowledgments = `-- name: DeleteAcknowledgments :exec
DELETE FROM auction_acknowledgments WHERE auction_id = $1`

func (q *Queries) DeleteAcknowledgments(ctx context.Context, auctionID uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteAcknowledgments, auctionID); err != nil {
		return fmt.Errorf("failed to delete acknowledgments: %w", err)
	}
	return nil
}
