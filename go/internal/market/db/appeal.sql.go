package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

const appealColumns = `id, auction_id, member_id, reason, status, resolved_by, resolution_note, created_at, resolved_at`

func scanAppeal(row rowScanner) (models.AuctionAppeal, error) {
	var (
		a          models.AuctionAppeal
		resolvedBy uuid.NullUUID
		note       sql.Null[string]
		resolvedAt sql.Null[time.Time]
	)
	err := row.Scan(&a.ID, &a.AuctionID, &a.MemberID, &a.Reason, &a.Status,
		&resolvedBy, &note, &a.CreatedAt, &resolvedAt)
	a.ResolvedBy = sqlutil.FromNullUUID(resolvedBy)
	a.ResolutionNote = sqlutil.FromNull(note)
	a.ResolvedAt = sqlutil.FromNull(resolvedAt)
	return a, err
}

const createAppeal = `-- name: CreateAppeal :exec
INSERT INTO auction_appeals (` + appealColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) CreateAppeal(ctx context.Context, a models.AuctionAppeal) error {
	_, err := q.db.ExecContext(ctx, createAppeal,
		a.ID, a.AuctionID, a.MemberID, a.Reason, a.Status, sqlutil.ToNullUUID(a.ResolvedBy),
		sqlutil.ToNull(a.ResolutionNote), a.CreatedAt, sqlutil.ToNull(a.ResolvedAt),
	)
	return insertErr(err, "appeal")
}

const getAppeal = `-- name: GetAppeal :one
SELECT ` + appealColumns + ` FROM auction_appeals WHERE id = $1`

func (q *Queries) GetAppeal(ctx context.Context, id uuid.UUID) (models.AuctionAppeal, error) {
	a, err := scanAppeal(q.db.QueryRowContext(ctx, getAppeal, id))
	return a, one(err, "appeal")
}

const listAppealsByAuction = `-- name: ListAppealsByAuction :many
SELECT ` + appealColumns + ` FROM auction_appeals WHERE auction_id = $1 ORDER BY created_at`

func (q *Queries) ListAppealsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAppeal, error) {
	rows, err := q.db.QueryContext(ctx, listAppealsByAuction, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}
	defer rows.Close()
	var out []models.AuctionAppeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appeal: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const updateAppeal = `-- name: UpdateAppeal :exec
UPDATE auction_appeals SET status = $2, resolved_by = $3, resolution_note = $4, resolved_at = $5
WHERE id = $1`

func (q *Queries) UpdateAppeal(ctx context.Context, a models.AuctionAppeal) error {
	_, err := q.db.ExecContext(ctx, updateAppeal,
		a.ID, a.Status, sqlutil.ToNullUUID(a.ResolvedBy), sqlutil.ToNull(a.ResolutionNote), sqlutil.ToNull(a.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to update appeal: %w", err)
	}
	return nil
}

const rejectPendingAppeals = `-- name: RejectPendingAppeals :exec
UPDATE auction_appeals SET status = 'REJECTED', resolved_by = $2, resolved_at = $3
WHERE auction_id = $1 AND status = 'PENDING'`

func (q *Queries) RejectPendingAppeals(ctx context.Context, auctionID uuid.UUID, resolvedBy uuid.UUID, at time.Time) error {
	if _, err := q.db.ExecContext(ctx, rejectPendingAppeals, auctionID, resolvedBy, at); err != nil {
		return fmt.Errorf("failed to reject pending appeals: %w", err)
	}
	return nil
}

func nullJSON(raw []byte) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: raw, Valid: len(raw) > 0}
}

const createAuditEntry = `-- name: CreateAuditEntry :exec
INSERT INTO market_audit (id, session_id, auction_id, actor_id, action, reason, old_state, new_state, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) CreateAuditEntry(ctx context.Context, e models.AuditEntry) error {
	_, err := q.db.ExecContext(ctx, createAuditEntry,
		e.ID, e.SessionID, sqlutil.ToNullUUID(e.AuctionID), e.ActorID, e.Action, e.Reason,
		nullJSON(e.OldState), nullJSON(e.NewState), e.CreatedAt,
	)
	return insertErr(err, "audit entry")
}

const listAuditEntries = `-- name: ListAuditEntries :many
SELECT id, session_id, auction_id, actor_id, action, reason, old_state, new_state, created_at
FROM market_audit WHERE session_id = $1 ORDER BY created_at`

func (q *Queries) ListAuditEntries(ctx context.Context, sessionID uuid.UUID) ([]models.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, listAuditEntries, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()
	var out []models.AuditEntry
	for rows.Next() {
		var (
			e        models.AuditEntry
			auction  uuid.NullUUID
			oldState pqtype.NullRawMessage
			newState pqtype.NullRawMessage
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &auction, &e.ActorID, &e.Action, &e.Reason,
			&oldState, &newState, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.AuctionID = sqlutil.FromNullUUID(auction)
		if oldState.Valid {
			e.OldState = append(json.RawMessage(nil), oldState.RawMessage...)
		}
		if newState.Valid {
			e.NewState = append(json.RawMessage(nil), newState.RawMessage...)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const outboxColumns = `id, session_id, event_type, payload, created_at, sent_at`

func scanOutbox(row rowScanner) (OutboxEvent, error) {
	var (
		e       OutboxEvent
		payload []byte
		sentAt  sql.Null[time.Time]
	)
	err := row.Scan(&e.ID, &e.SessionID, &e.EventType, &payload, &e.CreatedAt, &sentAt)
	e.Payload = payload
	e.SentAt = sqlutil.FromNull(sentAt)
	return e, err
}

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO market_outbox (id, session_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) InsertOutboxEvent(ctx context.Context, e OutboxEvent) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent, e.ID, e.SessionID, e.EventType, e.Payload, e.CreatedAt)
	return insertErr(err, "outbox event")
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT ` + outboxColumns + ` FROM market_outbox WHERE id = $1`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error) {
	e, err := scanOutbox(q.db.QueryRowContext(ctx, fetchOutboxByID, id))
	return e, one(err, "outbox event")
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT ` + outboxColumns + ` FROM market_outbox WHERE sent_at IS NULL ORDER BY created_at LIMIT $1`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox: %w", err)
	}
	defer rows.Close()
	var out []OutboxEvent
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE market_outbox SET sent_at = NOW() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, markOutboxSent, id); err != nil {
		return fmt.Errorf("failed to mark outbox sent: %w", err)
	}
	return nil
}
