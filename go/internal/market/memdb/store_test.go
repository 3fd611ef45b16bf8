package memdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

func seedMember(s *Store, budget int) models.Member {
	m := models.Member{
		ID:       uuid.New(),
		LeagueID: uuid.New(),
		Role:     models.MemberRoleMember,
		Status:   models.MemberStatusActive,
		Budget:   budget,
		JoinedAt: time.Now(),
	}
	s.AddMember(m)
	return m
}

func TestExecTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := seedMember(s, 100)

	boom := errors.New("boom")
	err := s.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		if _, err := q.UpdateMemberBudget(ctx, m.ID, -40); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecTx err = %v, want %v", err, boom)
	}

	got, err := s.GetMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if got.Budget != 100 {
		t.Fatalf("budget = %d, want 100 after rollback", got.Budget)
	}
}

func TestExecTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := seedMember(s, 100)

	err := s.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		_, err := q.UpdateMemberBudget(ctx, m.ID, -40)
		return err
	})
	if err != nil {
		t.Fatalf("ExecTx: %v", err)
	}
	got, _ := s.GetMember(ctx, m.ID)
	if got.Budget != 60 {
		t.Fatalf("budget = %d, want 60", got.Budget)
	}
}

func TestUpdateAuctionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := models.Auction{ID: uuid.New(), SessionID: uuid.New(), Status: models.AuctionStatusActive, CurrentPrice: 1, Version: 1}
	if err := s.CreateAuction(ctx, a); err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}

	a.CurrentPrice = 5
	ok, err := s.UpdateAuction(ctx, a, 1)
	if err != nil || !ok {
		t.Fatalf("first update ok=%v err=%v, want ok", ok, err)
	}
	a.CurrentPrice = 7
	ok, err = s.UpdateAuction(ctx, a, 1)
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("stale update must not apply")
	}

	got, _ := s.GetAuction(ctx, a.ID)
	if got.CurrentPrice != 5 || got.Version != 2 {
		t.Fatalf("auction price=%d version=%d, want 5 and 2", got.CurrentPrice, got.Version)
	}
}

func TestSingleActiveSessionPerLeague(t *testing.T) {
	ctx := context.Background()
	s := New()
	league := uuid.New()
	first := models.MarketSession{ID: uuid.New(), LeagueID: league, Type: models.SessionTypeRecurring, Status: models.SessionStatusActive}
	if err := s.CreateSession(ctx, first); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second := models.MarketSession{ID: uuid.New(), LeagueID: league, Type: models.SessionTypeRecurring, Status: models.SessionStatusActive}
	if err := s.CreateSession(ctx, second); !errors.Is(err, db.ErrAlreadyExists) {
		t.Fatalf("second CreateSession err = %v, want ErrAlreadyExists", err)
	}
}

func TestAcknowledgmentUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	auction, member := uuid.New(), uuid.New()
	ack := models.AuctionAcknowledgment{ID: uuid.New(), AuctionID: auction, MemberID: member}
	if err := s.CreateAcknowledgment(ctx, ack); err != nil {
		t.Fatalf("CreateAcknowledgment: %v", err)
	}
	ack.ID = uuid.New()
	if err := s.CreateAcknowledgment(ctx, ack); !errors.Is(err, db.ErrAlreadyExists) {
		t.Fatalf("duplicate ack err = %v, want ErrAlreadyExists", err)
	}
}

func TestReturnedAggregatesDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := New()
	sess := models.MarketSession{ID: uuid.New(), LeagueID: uuid.New(), Status: models.SessionStatusActive}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, _ := s.GetSession(ctx, sess.ID)
	_ = got.ReadyMembers.Add(uuid.New())

	again, _ := s.GetSession(ctx, sess.ID)
	if again.ReadyMembers.Len() != 0 {
		t.Fatalf("stored ready set mutated through a returned copy")
	}
}
