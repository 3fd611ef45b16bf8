// Package memdb is an in-memory db.Store. Transactions run against a copy of
// all tables that replaces the live copy on success.
package memdb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

type tables struct {
	leagues   map[uuid.UUID]models.League
	members   map[uuid.UUID]models.Member
	players   map[uuid.UUID]models.Player
	sessions  map[uuid.UUID]models.MarketSession
	roster    []models.RosterEntry
	contracts []models.Contract
	movements []models.Movement
	auctions  []models.Auction
	bids      []models.AuctionBid
	acks      []models.AuctionAcknowledgment
	appeals   []models.AuctionAppeal
	audit     []models.AuditEntry
	outbox    []db.OutboxEvent
}

func newTables() *tables {
	return &tables{
		leagues:  make(map[uuid.UUID]models.League),
		members:  make(map[uuid.UUID]models.Member),
		players:  make(map[uuid.UUID]models.Player),
		sessions: make(map[uuid.UUID]models.MarketSession),
	}
}

func (t *tables) clone() *tables {
	out := &tables{
		leagues:   make(map[uuid.UUID]models.League, len(t.leagues)),
		members:   make(map[uuid.UUID]models.Member, len(t.members)),
		players:   make(map[uuid.UUID]models.Player, len(t.players)),
		sessions:  make(map[uuid.UUID]models.MarketSession, len(t.sessions)),
		roster:    append([]models.RosterEntry(nil), t.roster...),
		contracts: append([]models.Contract(nil), t.contracts...),
		movements: append([]models.Movement(nil), t.movements...),
		bids:      append([]models.AuctionBid(nil), t.bids...),
		acks:      append([]models.AuctionAcknowledgment(nil), t.acks...),
		appeals:   append([]models.AuctionAppeal(nil), t.appeals...),
		audit:     append([]models.AuditEntry(nil), t.audit...),
		outbox:    append([]db.OutboxEvent(nil), t.outbox...),
	}
	for k, v := range t.leagues {
		limits := make(models.RosterLimits, len(v.RosterLimits))
		for r, n := range v.RosterLimits {
			limits[r] = n
		}
		v.RosterLimits = limits
		out.leagues[k] = v
	}
	for k, v := range t.members {
		out.members[k] = v
	}
	for k, v := range t.players {
		out.players[k] = v
	}
	for k, v := range t.sessions {
		out.sessions[k] = v.Clone()
	}
	out.auctions = make([]models.Auction, len(t.auctions))
	for i, a := range t.auctions {
		out.auctions[i] = a.Clone()
	}
	return out
}

// Store is safe for concurrent use. Every call, and every transaction as a
// whole, is serialized on one mutex.
type Store struct {
	querier
	mu   sync.Mutex
	data *tables
	// failTx holds errors returned by the next ExecTx calls, in order.
	failTx []error
}

var _ db.Store = (*Store)(nil)

func New() *Store {
	s := &Store{data: newTables()}
	s.querier = querier{t: s.data, mu: &s.mu}
	return s
}

// ExecTx runs fn against a snapshot and publishes it only if fn succeeds.
// The isolation level is always serializable.
func (s *Store) ExecTx(ctx context.Context, _ db.TxOptions, fn func(q db.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failTx) > 0 {
		err := s.failTx[0]
		s.failTx = s.failTx[1:]
		return err
	}

	snapshot := s.data.clone()
	if err := fn(&querier{t: snapshot}); err != nil {
		return err
	}
	*s.data = *snapshot
	return nil
}

// FailNextTx makes the next len(errs) transactions fail with errs before running.
func (s *Store) FailNextTx(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTx = append(s.failTx, errs...)
}

// AddLeague inserts or replaces a league.
func (s *Store) AddLeague(l models.League) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.leagues[l.ID] = l
}

// AddMember inserts or replaces a member.
func (s *Store) AddMember(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.members[m.ID] = m
}

// AddPlayer inserts or replaces a player.
func (s *Store) AddPlayer(p models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.players[p.ID] = p
}

// ListOutbox returns every outbox row, sent or not.
func (s *Store) ListOutbox() []db.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.OutboxEvent(nil), s.data.outbox...)
}
