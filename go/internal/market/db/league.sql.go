package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
)

const getLeague = `-- name: GetLeague :one
SELECT id, name, status, initial_budget, roster_limits, created_at
FROM leagues WHERE id = $1`

func (q *Queries) GetLeague(ctx context.Context, id uuid.UUID) (models.League, error) {
	var l models.League
	err := q.db.QueryRowContext(ctx, getLeague, id).Scan(
		&l.ID, &l.Name, &l.Status, &l.InitialBudget, &l.RosterLimits, &l.CreatedAt,
	)
	return l, one(err, "league")
}

const memberColumns = `id, league_id, user_id, team_name, role, status, budget, joined_at`

func scanMember(row rowScanner) (models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.LeagueID, &m.UserID, &m.TeamName, &m.Role, &m.Status, &m.Budget, &m.JoinedAt)
	return m, err
}

const getMember = `-- name: GetMember :one
SELECT ` + memberColumns + ` FROM league_members WHERE id = $1`

func (q *Queries) GetMember(ctx context.Context, id uuid.UUID) (models.Member, error) {
	m, err := scanMember(q.db.QueryRowContext(ctx, getMember, id))
	return m, one(err, "member")
}

const listActiveMembers = `-- name: ListActiveMembers :many
SELECT ` + memberColumns + ` FROM league_members
WHERE league_id = $1 AND status = 'ACTIVE'
ORDER BY joined_at, id`

func (q *Queries) ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	rows, err := q.db.QueryContext(ctx, listActiveMembers, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()
	var out []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const updateMemberBudget = `-- name: UpdateMemberBudget :one
UPDATE league_members SET budget = budget + $2 WHERE id = $1
RETURNING ` + memberColumns

func (q *Queries) UpdateMemberBudget(ctx context.Context, id uuid.UUID, delta int) (models.Member, error) {
	m, err := scanMember(q.db.QueryRowContext(ctx, updateMemberBudget, id, delta))
	return m, one(err, "member")
}

const getPlayer = `-- name: GetPlayer :one
SELECT id, full_name, team, role, quotation, created_at FROM players WHERE id = $1`

func (q *Queries) GetPlayer(ctx context.Context, id uuid.UUID) (models.Player, error) {
	var p models.Player
	err := q.db.QueryRowContext(ctx, getPlayer, id).Scan(
		&p.ID, &p.FullName, &p.Team, &p.Role, &p.Quotation, &p.CreatedAt,
	)
	return p, one(err, "player")
}

const rosterColumns = `id, league_id, member_id, player_id, role, acquisition_type, acquisition_price, auction_id, acquired_at`

func scanRosterEntry(row rowScanner) (models.RosterEntry, error) {
	var e models.RosterEntry
	var auctionID uuid.NullUUID
	err := row.Scan(&e.ID, &e.LeagueID, &e.MemberID, &e.PlayerID, &e.Role,
		&e.AcquisitionType, &e.AcquisitionPrice, &auctionID, &e.AcquiredAt)
	e.AuctionID = sqlutil.FromNullUUID(auctionID)
	return e, err
}

const listRosterEntriesByLeague = `-- name: ListRosterEntriesByLeague :many
SELECT ` + rosterColumns + ` FROM roster_entries WHERE league_id = $1 ORDER BY acquired_at, id`

func (q *Queries) ListRosterEntriesByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.RosterEntry, error) {
	rows, err := q.db.QueryContext(ctx, listRosterEntriesByLeague, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster entries: %w", err)
	}
	defer rows.Close()
	var out []models.RosterEntry
	for rows.Next() {
		e, err := scanRosterEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const getRosterEntryByPlayer = `-- name: GetRosterEntryByPlayer :one
SELECT ` + rosterColumns + ` FROM roster_entries WHERE league_id = $1 AND player_id = $2`

func (q *Queries) GetRosterEntryByPlayer(ctx context.Context, leagueID, playerID uuid.UUID) (models.RosterEntry, error) {
	e, err := scanRosterEntry(q.db.QueryRowContext(ctx, getRosterEntryByPlayer, leagueID, playerID))
	return e, one(err, "roster entry")
}

const getRosterEntryByAuction = `-- name: GetRosterEntryByAuction :one
SELECT ` + rosterColumns + ` FROM roster_entries WHERE auction_id = $1`

func (q *Queries) GetRosterEntryByAuction(ctx context.Context, auctionID uuid.UUID) (models.RosterEntry, error) {
	e, err := scanRosterEntry(q.db.QueryRowContext(ctx, getRosterEntryByAuction, auctionID))
	return e, one(err, "roster entry")
}

const createRosterEntry = `-- name: CreateRosterEntry :exec
INSERT INTO roster_entries (` + rosterColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) CreateRosterEntry(ctx context.Context, e models.RosterEntry) error {
	_, err := q.db.ExecContext(ctx, createRosterEntry,
		e.ID, e.LeagueID, e.MemberID, e.PlayerID, e.Role,
		e.AcquisitionType, e.AcquisitionPrice, sqlutil.ToNullUUID(e.AuctionID), e.AcquiredAt,
	)
	return insertErr(err, "roster entry")
}

const deleteRosterEntry = `-- name: DeleteRosterEntry :exec
DELETE FROM roster_entries WHERE id = $1`

func (q *Queries) DeleteRosterEntry(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteRosterEntry, id); err != nil {
		return fmt.Errorf("failed to delete roster entry: %w", err)
	}
	return nil
}

const contractColumns = `c.id, c.roster_entry_id, c.member_id, c.player_id, c.salary, c.duration, c.rescission_clause, c.created_at`

func scanContract(row rowScanner) (models.Contract, error) {
	var c models.Contract
	err := row.Scan(&c.ID, &c.RosterEntryID, &c.MemberID, &c.PlayerID,
		&c.Salary, &c.Duration, &c.RescissionClause, &c.CreatedAt)
	return c, err
}

const listContractsByLeague = `-- name: ListContractsByLeague :many
SELECT ` + contractColumns + `
FROM contracts c JOIN roster_entries r ON r.id = c.roster_entry_id
WHERE r.league_id = $1
ORDER BY c.created_at, c.id`

func (q *Queries) ListContractsByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.Contract, error) {
	rows, err := q.db.QueryContext(ctx, listContractsByLeague, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()
	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const getContractByRosterEntry = `-- name: GetContractByRosterEntry :one
SELECT ` + contractColumns + ` FROM contracts c WHERE c.roster_entry_id = $1`

func (q *Queries) GetContractByRosterEntry(ctx context.Context, rosterEntryID uuid.UUID) (models.Contract, error) {
	c, err := scanContract(q.db.QueryRowContext(ctx, getContractByRosterEntry, rosterEntryID))
	return c, one(err, "contract")
}

const createContract = `-- name: CreateContract :exec
INSERT INTO contracts (id, roster_entry_id, member_id, player_id, salary, duration, rescission_clause, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (q *Queries) CreateContract(ctx context.Context, c models.Contract) error {
	_, err := q.db.ExecContext(ctx, createContract,
		c.ID, c.RosterEntryID, c.MemberID, c.PlayerID, c.Salary, c.Duration, c.RescissionClause, c.CreatedAt,
	)
	return insertErr(err, "contract")
}

const deleteContract = `-- name: DeleteContract :exec
DELETE FROM contracts WHERE id = $1`

func (q *Queries) DeleteContract(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteContract, id); err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	return nil
}

const createMovement = `-- name: CreateMovement :exec
INSERT INTO movements (id, league_id, session_id, auction_id, player_id, to_member_id, type, price, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) CreateMovement(ctx context.Context, m models.Movement) error {
	_, err := q.db.ExecContext(ctx, createMovement,
		m.ID, m.LeagueID, m.SessionID, sqlutil.ToNullUUID(m.AuctionID), m.PlayerID, m.ToMemberID, m.Type, m.Price, m.CreatedAt,
	)
	return insertErr(err, "movement")
}

const listMovementsByAuction = `-- name: ListMovementsByAuction :many
SELECT id, league_id, session_id, auction_id, player_id, to_member_id, type, price, created_at
FROM movements WHERE auction_id = $1 ORDER BY created_at`

func (q *Queries) ListMovementsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Movement, error) {
	rows, err := q.db.QueryContext(ctx, listMovementsByAuction, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()
	var out []models.Movement
	for rows.Next() {
		var m models.Movement
		var aid uuid.NullUUID
		if err := rows.Scan(&m.ID, &m.LeagueID, &m.SessionID, &aid, &m.PlayerID,
			&m.ToMemberID, &m.Type, &m.Price, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.AuctionID = sqlutil.FromNullUUID(aid)
		out = append(out, m)
	}
	return out, rows.Err()
}

const deleteMovementsByAuction = `-- name: DeleteMovementsByAuction :exec
DELETE FROM movements WHERE auction_id = $1`

func (q *Queries) DeleteMovementsByAuction(ctx context.Context, auctionID uuid.UUID) error {
	if _, err := q.db.ExecContext(ctx, deleteMovementsByAuction, auctionID); err != nil {
		return fmt.Errorf("failed to delete movements: %w", err)
	}
	return nil
}
