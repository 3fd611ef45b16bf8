package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// querier implements db.Querier over a set of tables. mu is nil inside a
// transaction, where the Store already holds the lock.
type querier struct {
	t  *tables
	mu *sync.Mutex
}

var _ db.Querier = (*querier)(nil)

func (q *querier) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, db.ErrNotFound)
}

func exists(what string) error {
	return fmt.Errorf("%s: %w", what, db.ErrAlreadyExists)
}

func (q *querier) GetLeague(_ context.Context, id uuid.UUID) (models.League, error) {
	defer q.lock()()
	l, ok := q.t.leagues[id]
	if !ok {
		return models.League{}, notFound("league")
	}
	return l, nil
}

func (q *querier) GetMember(_ context.Context, id uuid.UUID) (models.Member, error) {
	defer q.lock()()
	m, ok := q.t.members[id]
	if !ok {
		return models.Member{}, notFound("member")
	}
	return m, nil
}

func (q *querier) ListActiveMembers(_ context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	defer q.lock()()
	var out []models.Member
	for _, m := range q.t.members {
		if m.LeagueID == leagueID && m.IsActive() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (q *querier) UpdateMemberBudget(_ context.Context, id uuid.UUID, delta int) (models.Member, error) {
	defer q.lock()()
	m, ok := q.t.members[id]
	if !ok {
		return models.Member{}, notFound("member")
	}
	m.Budget += delta
	q.t.members[id] = m
	return m, nil
}

func (q *querier) GetPlayer(_ context.Context, id uuid.UUID) (models.Player, error) {
	defer q.lock()()
	p, ok := q.t.players[id]
	if !ok {
		return models.Player{}, notFound("player")
	}
	return p, nil
}

func (q *querier) ListRosterEntriesByLeague(_ context.Context, leagueID uuid.UUID) ([]models.RosterEntry, error) {
	defer q.lock()()
	var out []models.RosterEntry
	for _, e := range q.t.roster {
		if e.LeagueID == leagueID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *querier) GetRosterEntryByPlayer(_ context.Context, leagueID, playerID uuid.UUID) (models.RosterEntry, error) {
	defer q.lock()()
	for _, e := range q.t.roster {
		if e.LeagueID == leagueID && e.PlayerID == playerID {
			return e, nil
		}
	}
	return models.RosterEntry{}, notFound("roster entry")
}

func (q *querier) GetRosterEntryByAuction(_ context.Context, auctionID uuid.UUID) (models.RosterEntry, error) {
	defer q.lock()()
	for _, e := range q.t.roster {
		if e.AuctionID != nil && *e.AuctionID == auctionID {
			return e, nil
		}
	}
	return models.RosterEntry{}, notFound("roster entry")
}

func (q *querier) CreateRosterEntry(_ context.Context, e models.RosterEntry) error {
	defer q.lock()()
	for _, existing := range q.t.roster {
		if existing.ID == e.ID || (existing.LeagueID == e.LeagueID && existing.PlayerID == e.PlayerID) {
			return exists("roster entry")
		}
	}
	q.t.roster = append(q.t.roster, e)
	return nil
}

func (q *querier) DeleteRosterEntry(_ context.Context, id uuid.UUID) error {
	defer q.lock()()
	out := q.t.roster[:0:0]
	for _, e := range q.t.roster {
		if e.ID != id {
			out = append(out, e)
		}
	}
	q.t.roster = out
	// contracts cascade
	contracts := q.t.contracts[:0:0]
	for _, c := range q.t.contracts {
		if c.RosterEntryID != id {
			contracts = append(contracts, c)
		}
	}
	q.t.contracts = contracts
	return nil
}

func (q *querier) ListContractsByLeague(_ context.Context, leagueID uuid.UUID) ([]models.Contract, error) {
	defer q.lock()()
	inLeague := make(map[uuid.UUID]bool)
	for _, e := range q.t.roster {
		if e.LeagueID == leagueID {
			inLeague[e.ID] = true
		}
	}
	var out []models.Contract
	for _, c := range q.t.contracts {
		if inLeague[c.RosterEntryID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (q *querier) GetContractByRosterEntry(_ context.Context, rosterEntryID uuid.UUID) (models.Contract, error) {
	defer q.lock()()
	for _, c := range q.t.contracts {
		if c.RosterEntryID == rosterEntryID {
			return c, nil
		}
	}
	return models.Contract{}, notFound("contract")
}

func (q *querier) CreateContract(_ context.Context, c models.Contract) error {
	defer q.lock()()
	for _, existing := range q.t.contracts {
		if existing.ID == c.ID {
			return exists("contract")
		}
	}
	q.t.contracts = append(q.t.contracts, c)
	return nil
}

func (q *querier) DeleteContract(_ context.Context, id uuid.UUID) error {
	defer q.lock()()
	out := q.t.contracts[:0:0]
	for _, c := range q.t.contracts {
		if c.ID != id {
			out = append(out, c)
		}
	}
	q.t.contracts = out
	return nil
}

func (q *querier) CreateMovement(_ context.Context, m models.Movement) error {
	defer q.lock()()
	q.t.movements = append(q.t.movements, m)
	return nil
}

func (q *querier) ListMovementsByAuction(_ context.Context, auctionID uuid.UUID) ([]models.Movement, error) {
	defer q.lock()()
	var out []models.Movement
	for _, m := range q.t.movements {
		if m.AuctionID != nil && *m.AuctionID == auctionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (q *querier) DeleteMovementsByAuction(_ context.Context, auctionID uuid.UUID) error {
	defer q.lock()()
	out := q.t.movements[:0:0]
	for _, m := range q.t.movements {
		if m.AuctionID == nil || *m.AuctionID != auctionID {
			out = append(out, m)
		}
	}
	q.t.movements = out
	return nil
}

func (q *querier) CreateSession(_ context.Context, s models.MarketSession) error {
	defer q.lock()()
	if _, ok := q.t.sessions[s.ID]; ok {
		return exists("market session")
	}
	for _, other := range q.t.sessions {
		if other.LeagueID != s.LeagueID {
			continue
		}
		if other.IsActive() && s.IsActive() {
			return exists("active market session")
		}
		if other.IsFirstMarket() && s.IsFirstMarket() {
			return exists("first market session")
		}
	}
	q.t.sessions[s.ID] = s.Clone()
	return nil
}

func (q *querier) GetSession(_ context.Context, id uuid.UUID) (models.MarketSession, error) {
	defer q.lock()()
	s, ok := q.t.sessions[id]
	if !ok {
		return models.MarketSession{}, notFound("market session")
	}
	return s.Clone(), nil
}

func (q *querier) GetActiveSessionByLeague(_ context.Context, leagueID uuid.UUID) (models.MarketSession, error) {
	defer q.lock()()
	for _, s := range q.t.sessions {
		if s.LeagueID == leagueID && s.IsActive() {
			return s.Clone(), nil
		}
	}
	return models.MarketSession{}, notFound("active market session")
}

func (q *querier) CountSessionsByLeagueAndType(_ context.Context, leagueID uuid.UUID, t models.SessionType) (int, error) {
	defer q.lock()()
	n := 0
	for _, s := range q.t.sessions {
		if s.LeagueID == leagueID && s.Type == t {
			n++
		}
	}
	return n, nil
}

func (q *querier) ListSessionsByLeague(_ context.Context, leagueID uuid.UUID) ([]models.MarketSession, error) {
	defer q.lock()()
	var out []models.MarketSession
	for _, s := range q.t.sessions {
		if s.LeagueID == leagueID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *querier) UpdateSession(_ context.Context, s models.MarketSession, expectedVersion int64) (bool, error) {
	defer q.lock()()
	cur, ok := q.t.sessions[s.ID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	if s.IsActive() && !cur.IsActive() {
		for id, other := range q.t.sessions {
			if id != s.ID && other.LeagueID == s.LeagueID && other.IsActive() {
				return false, exists("active market session")
			}
		}
	}
	next := s.Clone()
	next.Version = expectedVersion + 1
	// immutable columns
	next.LeagueID, next.Type, next.CreatedBy, next.CreatedAt = cur.LeagueID, cur.Type, cur.CreatedBy, cur.CreatedAt
	q.t.sessions[s.ID] = next
	return true, nil
}

func (q *querier) auctionIndex(id uuid.UUID) int {
	for i, a := range q.t.auctions {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (q *querier) CreateAuction(_ context.Context, a models.Auction) error {
	defer q.lock()()
	if q.auctionIndex(a.ID) >= 0 {
		return exists("auction")
	}
	if a.Status.IsOpen() {
		for _, other := range q.t.auctions {
			if other.SessionID == a.SessionID && other.Status.IsOpen() {
				return exists("open auction")
			}
		}
	}
	q.t.auctions = append(q.t.auctions, a.Clone())
	return nil
}

func (q *querier) GetAuction(_ context.Context, id uuid.UUID) (models.Auction, error) {
	defer q.lock()()
	i := q.auctionIndex(id)
	if i < 0 {
		return models.Auction{}, notFound("auction")
	}
	return q.t.auctions[i].Clone(), nil
}

func (q *querier) GetLatestAuctionBySession(_ context.Context, sessionID uuid.UUID) (models.Auction, error) {
	defer q.lock()()
	for i := len(q.t.auctions) - 1; i >= 0; i-- {
		if q.t.auctions[i].SessionID == sessionID {
			return q.t.auctions[i].Clone(), nil
		}
	}
	return models.Auction{}, notFound("auction")
}

func (q *querier) ListAuctionsByStatus(_ context.Context, status models.AuctionStatus) ([]models.Auction, error) {
	defer q.lock()()
	var out []models.Auction
	for _, a := range q.t.auctions {
		if a.Status == status {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (q *querier) UpdateAuction(_ context.Context, a models.Auction, expectedVersion int64) (bool, error) {
	defer q.lock()()
	i := q.auctionIndex(a.ID)
	if i < 0 || q.t.auctions[i].Version != expectedVersion {
		return false, nil
	}
	cur := q.t.auctions[i]
	next := a.Clone()
	next.Version = expectedVersion + 1
	next.SessionID, next.LeagueID, next.PlayerID = cur.SessionID, cur.LeagueID, cur.PlayerID
	next.PlayerRole, next.NominatorID, next.BasePrice, next.CreatedAt = cur.PlayerRole, cur.NominatorID, cur.BasePrice, cur.CreatedAt
	q.t.auctions[i] = next
	return true, nil
}

func (q *querier) CreateBid(_ context.Context, b models.AuctionBid) error {
	defer q.lock()()
	for _, existing := range q.t.bids {
		if existing.ID == b.ID {
			return exists("bid")
		}
		if b.IsWinning && !b.IsCancelled && existing.AuctionID == b.AuctionID && existing.IsWinning && !existing.IsCancelled {
			return exists("winning bid")
		}
	}
	q.t.bids = append(q.t.bids, b)
	return nil
}

func (q *querier) GetWinningBid(_ context.Context, auctionID uuid.UUID) (models.AuctionBid, error) {
	defer q.lock()()
	for _, b := range q.t.bids {
		if b.AuctionID == auctionID && b.IsWinning && !b.IsCancelled {
			return b, nil
		}
	}
	return models.AuctionBid{}, notFound("winning bid")
}

func (q *querier) ListBids(_ context.Context, auctionID uuid.UUID) ([]models.AuctionBid, error) {
	defer q.lock()()
	var out []models.AuctionBid
	for _, b := range q.t.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (q *querier) ClearWinningBid(_ context.Context, auctionID uuid.UUID) error {
	defer q.lock()()
	for i := range q.t.bids {
		if q.t.bids[i].AuctionID == auctionID {
			q.t.bids[i].IsWinning = false
		}
	}
	return nil
}

func (q *querier) CancelBids(_ context.Context, auctionID uuid.UUID) error {
	defer q.lock()()
	for i := range q.t.bids {
		if q.t.bids[i].AuctionID == auctionID {
			q.t.bids[i].IsCancelled = true
			q.t.bids[i].IsWinning = false
		}
	}
	return nil
}

func (q *querier) CreateAcknowledgment(_ context.Context, a models.AuctionAcknowledgment) error {
	defer q.lock()()
	for _, existing := range q.t.acks {
		if existing.ID == a.ID || (existing.AuctionID == a.AuctionID && existing.MemberID == a.MemberID) {
			return exists("acknowledgment")
		}
	}
	q.t.acks = append(q.t.acks, a)
	return nil
}

func (q *querier) ListAcknowledgments(_ context.Context, auctionID uuid.UUID) ([]models.AuctionAcknowledgment, error) {
	defer q.lock()()
	var out []models.AuctionAcknowledgment
	for _, a := range q.t.acks {
		if a.AuctionID == auctionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *querier) DeleteAcknowledgments(_ context.Context, auctionID uuid.UUID) error {
	defer q.lock()()
	out := q.t.acks[:0:0]
	for _, a := range q.t.acks {
		if a.AuctionID != auctionID {
			out = append(out, a)
		}
	}
	q.t.acks = out
	return nil
}

func (q *querier) CreateAppeal(_ context.Context, a models.AuctionAppeal) error {
	defer q.lock()()
	for _, existing := range q.t.appeals {
		if existing.ID == a.ID {
			return exists("appeal")
		}
		if a.Status == models.AppealStatusPending && existing.AuctionID == a.AuctionID &&
			existing.Status == models.AppealStatusPending {
			return exists("pending appeal")
		}
	}
	q.t.appeals = append(q.t.appeals, a)
	return nil
}

func (q *querier) GetAppeal(_ context.Context, id uuid.UUID) (models.AuctionAppeal, error) {
	defer q.lock()()
	for _, a := range q.t.appeals {
		if a.ID == id {
			return a, nil
		}
	}
	return models.AuctionAppeal{}, notFound("appeal")
}

func (q *querier) ListAppealsByAuction(_ context.Context, auctionID uuid.UUID) ([]models.AuctionAppeal, error) {
	defer q.lock()()
	var out []models.AuctionAppeal
	for _, a := range q.t.appeals {
		if a.AuctionID == auctionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *querier) UpdateAppeal(_ context.Context, a models.AuctionAppeal) error {
	defer q.lock()()
	for i := range q.t.appeals {
		if q.t.appeals[i].ID == a.ID {
			cur := q.t.appeals[i]
			cur.Status, cur.ResolvedBy, cur.ResolutionNote, cur.ResolvedAt = a.Status, a.ResolvedBy, a.ResolutionNote, a.ResolvedAt
			q.t.appeals[i] = cur
			return nil
		}
	}
	return notFound("appeal")
}

func (q *querier) RejectPendingAppeals(_ context.Context, auctionID uuid.UUID, resolvedBy uuid.UUID, at time.Time) error {
	defer q.lock()()
	for i := range q.t.appeals {
		a := &q.t.appeals[i]
		if a.AuctionID == auctionID && a.Status == models.AppealStatusPending {
			by, when := resolvedBy, at
			a.Status = models.AppealStatusRejected
			a.ResolvedBy = &by
			a.ResolvedAt = &when
		}
	}
	return nil
}

func (q *querier) CreateAuditEntry(_ context.Context, e models.AuditEntry) error {
	defer q.lock()()
	q.t.audit = append(q.t.audit, e)
	return nil
}

func (q *querier) ListAuditEntries(_ context.Context, sessionID uuid.UUID) ([]models.AuditEntry, error) {
	defer q.lock()()
	var out []models.AuditEntry
	for _, e := range q.t.audit {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *querier) InsertOutboxEvent(_ context.Context, e db.OutboxEvent) error {
	defer q.lock()()
	q.t.outbox = append(q.t.outbox, e)
	return nil
}

func (q *querier) FetchOutboxByID(_ context.Context, id uuid.UUID) (db.OutboxEvent, error) {
	defer q.lock()()
	for _, e := range q.t.outbox {
		if e.ID == id {
			return e, nil
		}
	}
	return db.OutboxEvent{}, notFound("outbox event")
}

func (q *querier) FetchUnsentOutbox(_ context.Context, limit int32) ([]db.OutboxEvent, error) {
	defer q.lock()()
	var out []db.OutboxEvent
	for _, e := range q.t.outbox {
		if e.SentAt == nil {
			out = append(out, e)
			if int32(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (q *querier) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	defer q.lock()()
	now := time.Now()
	for i := range q.t.outbox {
		if q.t.outbox[i].ID == id {
			q.t.outbox[i].SentAt = &now
		}
	}
	return nil
}
