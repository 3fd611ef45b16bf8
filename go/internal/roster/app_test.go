package roster

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/markettest"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

func TestStandings(t *testing.T) {
	ctx := context.Background()
	f := markettest.New(t, markettest.WithBudget(100))
	ledger := NewLedger(DefaultContractRules(), f.Clock)
	member := f.Member(1)
	f.Fill(t, member.ID, models.RoleGoalkeeper, 2)
	f.Fill(t, member.ID, models.RoleForward, 1)

	standings, err := ledger.Standings(ctx, f.Store, f.League.ID)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	if len(standings) != len(f.Members) {
		t.Fatalf("len(standings) = %d, want %d", len(standings), len(f.Members))
	}
	st := standings.Get(member.ID)
	if st.Count(models.RoleGoalkeeper) != 2 || st.Total() != 3 {
		t.Fatalf("counts = %v, want 2 GK and 3 total", st.Counts)
	}
	if st.Bilancio() != 97 {
		t.Fatalf("bilancio = %d, want 97", st.Bilancio())
	}
	if st.HasSlot(f.League.RosterLimits, models.RoleGoalkeeper) != true {
		t.Fatal("HasSlot(GK) = false with 2 of 3")
	}
}

func TestAssignAndUnwind(t *testing.T) {
	ctx := context.Background()
	f := markettest.New(t, markettest.WithBudget(100))
	ledger := NewLedger(DefaultContractRules(), f.Clock)
	winner := f.Member(2)
	player := f.Player(models.RoleDefender, 0)
	auctionID := uuid.New()

	var got Assignment
	err := f.Store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		var err error
		got, err = ledger.Assign(ctx, q, AssignRequest{
			LeagueID:  f.League.ID,
			SessionID: uuid.New(),
			AuctionID: auctionID,
			PlayerID:  player.ID,
			Role:      player.Role,
			MemberID:  winner.ID,
			Price:     10,
			Type:      models.AcquisitionTypeFirstMarket,
		})
		return err
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.Contract.Salary != 1 || got.Contract.Duration != 3 || got.Contract.RescissionClause != 9 {
		t.Fatalf("contract = %+v, want salary 1, duration 3, rescission 9", got.Contract)
	}
	if got.Member.Budget != 90 {
		t.Fatalf("budget after assign = %d, want 90", got.Member.Budget)
	}
	if got.Movement.Type != models.MovementTypeFirstMarket {
		t.Fatalf("movement type = %v, want %v", got.Movement.Type, models.MovementTypeFirstMarket)
	}

	err = f.Store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		_, err := ledger.Assign(ctx, q, AssignRequest{
			LeagueID: f.League.ID, AuctionID: uuid.New(), PlayerID: player.ID,
			Role: player.Role, MemberID: f.Member(3).ID, Price: 5, Type: models.AcquisitionTypeAuction,
		})
		return err
	})
	if marketerr.CodeOf(err) != marketerr.CodePlayerOwned {
		t.Fatalf("second Assign code = %q, want %q", marketerr.CodeOf(err), marketerr.CodePlayerOwned)
	}

	var unwound Unwound
	var ok bool
	err = f.Store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		var err error
		unwound, ok, err = ledger.Unwind(ctx, q, auctionID)
		return err
	})
	if err != nil || !ok {
		t.Fatalf("Unwind ok=%v err=%v, want ok", ok, err)
	}
	if unwound.Refund != 10 || unwound.MemberID != winner.ID {
		t.Fatalf("unwound = %+v, want refund 10 to %v", unwound, winner.ID)
	}
	if b := f.Budget(t, winner.ID); b != 100 {
		t.Fatalf("budget after unwind = %d, want 100", b)
	}
	if _, err := f.Store.GetRosterEntryByAuction(ctx, auctionID); err == nil {
		t.Fatal("roster entry still present after unwind")
	}
	movements, _ := f.Store.ListMovementsByAuction(ctx, auctionID)
	if len(movements) != 0 {
		t.Fatalf("movements after unwind = %d, want 0", len(movements))
	}
}

func TestUnwindWithoutTransfer(t *testing.T) {
	ctx := context.Background()
	f := markettest.New(t)
	ledger := NewLedger(DefaultContractRules(), f.Clock)

	_, ok, err := ledger.Unwind(ctx, f.Store, uuid.New())
	if err != nil {
		t.Fatalf("Unwind: %v", err)
	}
	if ok {
		t.Fatal("Unwind ok = true for an auction with no transfer")
	}
}
