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

const sessionColumns = `id, league_id, type, status, phase, current_role, turn_order, current_turn_index,
auction_timer_seconds, in_person_mode, pending_player_id, pending_nominator_id, pending_opening_price,
nominator_confirmed, ready_members, version, created_by, created_at, updated_at, closed_at`

func scanSession(row rowScanner) (models.MarketSession, error) {
	var (
		s         models.MarketSession
		role      sql.NullString
		player    uuid.NullUUID
		nominator uuid.NullUUID
		closedAt  sql.Null[time.Time]
	)
	err := row.Scan(&s.ID, &s.LeagueID, &s.Type, &s.Status, &s.Phase, &role, &s.TurnOrder,
		&s.CurrentTurnIndex, &s.AuctionTimerSeconds, &s.InPersonMode, &player, &nominator,
		&s.PendingOpeningPrice, &s.NominatorConfirmed, &s.ReadyMembers, &s.Version,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &closedAt)
	if err != nil {
		return s, err
	}
	if role.Valid {
		r := models.Role(role.String)
		s.CurrentRole = &r
	}
	s.PendingPlayerID = sqlutil.FromNullUUID(player)
	s.PendingNominatorID = sqlutil.FromNullUUID(nominator)
	s.ClosedAt = sqlutil.FromNull(closedAt)
	return s, nil
}

func roleArg(r *models.Role) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*r), Valid: true}
}

const createSession = `-- name: CreateSession :exec
INSERT INTO market_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

func (q *Queries) CreateSession(ctx context.Context, s models.MarketSession) error {
	_, err := q.db.ExecContext(ctx, createSession,
		s.ID, s.LeagueID, s.Type, s.Status, s.Phase, roleArg(s.CurrentRole), s.TurnOrder,
		s.CurrentTurnIndex, s.AuctionTimerSeconds, s.InPersonMode,
		sqlutil.ToNullUUID(s.PendingPlayerID), sqlutil.ToNullUUID(s.PendingNominatorID),
		s.PendingOpeningPrice, s.NominatorConfirmed, s.ReadyMembers, s.Version,
		s.CreatedBy, s.CreatedAt, s.UpdatedAt, sqlutil.ToNull(s.ClosedAt),
	)
	return insertErr(err, "market session")
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM market_sessions WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (models.MarketSession, error) {
	s, err := scanSession(q.db.QueryRowContext(ctx, getSession, id))
	return s, one(err, "market session")
}

const getActiveSessionByLeague = `-- name: GetActiveSessionByLeague :one
SELECT ` + sessionColumns + ` FROM market_sessions WHERE league_id = $1 AND status = 'ACTIVE'`

func (q *Queries) GetActiveSessionByLeague(ctx context.Context, leagueID uuid.UUID) (models.MarketSession, error) {
	s, err := scanSession(q.db.QueryRowContext(ctx, getActiveSessionByLeague, leagueID))
	return s, one(err, "active market session")
}

const countSessionsByLeagueAndType = `-- name: CountSessionsByLeagueAndType :one
SELECT COUNT(*) FROM market_sessions WHERE league_id = $1 AND type = $2`

func (q *Queries) CountSessionsByLeagueAndType(ctx context.Context, leagueID uuid.UUID, t models.SessionType) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, countSessionsByLeagueAndType, leagueID, t).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

const listSessionsByLeague = `-- name: ListSessionsByLeague :many
SELECT ` + sessionColumns + ` FROM market_sessions WHERE league_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListSessionsByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.MarketSession, error) {
	rows, err := q.db.QueryContext(ctx, listSessionsByLeague, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()
	var out []models.MarketSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const updateSession = `-- name: UpdateSession :execrows
UPDATE market_sessions SET
    status = $3, phase = $4, current_role = $5, turn_order = $6, current_turn_index = $7,
    auction_timer_seconds = $8, in_person_mode = $9, pending_player_id = $10,
    pending_nominator_id = $11, pending_opening_price = $12, nominator_confirmed = $13,
    ready_members = $14, updated_at = $15, closed_at = $16, version = version + 1
WHERE id = $1 AND version = $2`

func (q *Queries) UpdateSession(ctx context.Context, s models.MarketSession, expectedVersion int64) (bool, error) {
	ok, err := affected(q.db.ExecContext(ctx, updateSession,
		s.ID, expectedVersion, s.Status, s.Phase, roleArg(s.CurrentRole), s.TurnOrder,
		s.CurrentTurnIndex, s.AuctionTimerSeconds, s.InPersonMode,
		sqlutil.ToNullUUID(s.PendingPlayerID), sqlutil.ToNullUUID(s.PendingNominatorID),
		s.PendingOpeningPrice, s.NominatorConfirmed, s.ReadyMembers, s.UpdatedAt, sqlutil.ToNull(s.ClosedAt),
	))
	if err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}
	return ok, nil
}
