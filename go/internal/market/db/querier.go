// Package db is the persistence boundary of the market engine.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// OutboxEvent is a row of market_outbox.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Querier is the full set of queries the engine runs. Aggregate updates are
// compare-and-swap on Version and report whether the row was written.
type Querier interface {
	GetLeague(ctx context.Context, id uuid.UUID) (models.League, error)
	GetMember(ctx context.Context, id uuid.UUID) (models.Member, error)
	ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error)
	UpdateMemberBudget(ctx context.Context, id uuid.UUID, delta int) (models.Member, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (models.Player, error)

	ListRosterEntriesByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.RosterEntry, error)
	GetRosterEntryByPlayer(ctx context.Context, leagueID, playerID uuid.UUID) (models.RosterEntry, error)
	GetRosterEntryByAuction(ctx context.Context, auctionID uuid.UUID) (models.RosterEntry, error)
	CreateRosterEntry(ctx context.Context, e models.RosterEntry) error
	DeleteRosterEntry(ctx context.Context, id uuid.UUID) error
	ListContractsByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.Contract, error)
	GetContractByRosterEntry(ctx context.Context, rosterEntryID uuid.UUID) (models.Contract, error)
	CreateContract(ctx context.Context, c models.Contract) error
	DeleteContract(ctx context.Context, id uuid.UUID) error
	CreateMovement(ctx context.Context, m models.Movement) error
	ListMovementsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Movement, error)
	DeleteMovementsByAuction(ctx context.Context, auctionID uuid.UUID) error

	CreateSession(ctx context.Context, s models.MarketSession) error
	GetSession(ctx context.Context, id uuid.UUID) (models.MarketSession, error)
	GetActiveSessionByLeague(ctx context.Context, leagueID uuid.UUID) (models.MarketSession, error)
	CountSessionsByLeagueAndType(ctx context.Context, leagueID uuid.UUID, t models.SessionType) (int, error)
	ListSessionsByLeague(ctx context.Context, leagueID uuid.UUID) ([]models.MarketSession, error)
	UpdateSession(ctx context.Context, s models.MarketSession, expectedVersion int64) (bool, error)

	CreateAuction(ctx context.Context, a models.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (models.Auction, error)
	GetLatestAuctionBySession(ctx context.Context, sessionID uuid.UUID) (models.Auction, error)
	ListAuctionsByStatus(ctx context.Context, status models.AuctionStatus) ([]models.Auction, error)
	UpdateAuction(ctx context.Context, a models.Auction, expectedVersion int64) (bool, error)

	CreateBid(ctx context.Context, b models.AuctionBid) error
	GetWinningBid(ctx context.Context, auctionID uuid.UUID) (models.AuctionBid, error)
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionBid, error)
	ClearWinningBid(ctx context.Context, auctionID uuid.UUID) error
	CancelBids(ctx context.Context, auctionID uuid.UUID) error

	CreateAcknowledgment(ctx context.Context, a models.AuctionAcknowledgment) error
	ListAcknowledgments(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAcknowledgment, error)
	DeleteAcknowledgments(ctx context.Context, auctionID uuid.UUID) error

	CreateAppeal(ctx context.Context, a models.AuctionAppeal) error
	GetAppeal(ctx context.Context, id uuid.UUID) (models.AuctionAppeal, error)
	ListAppealsByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AuctionAppeal, error)
	UpdateAppeal(ctx context.Context, a models.AuctionAppeal) error
	RejectPendingAppeals(ctx context.Context, auctionID uuid.UUID, resolvedBy uuid.UUID, at time.Time) error

	CreateAuditEntry(ctx context.Context, e models.AuditEntry) error
	ListAuditEntries(ctx context.Context, sessionID uuid.UUID) ([]models.AuditEntry, error)

	InsertOutboxEvent(ctx context.Context, e OutboxEvent) error
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error)
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
}

// TxOptions selects the isolation of a unit of work.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Store is a Querier that can also run a function inside a transaction.
type Store interface {
	Querier
	ExecTx(ctx context.Context, opts TxOptions, fn func(q Querier) error) error
}
