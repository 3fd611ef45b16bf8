package auction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/markettest"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
)

type env struct {
	f       *markettest.Fixture
	app     *App
	rec     *events.Recorder
	session models.MarketSession
}

func newEnv(t *testing.T, opts ...markettest.Option) *env {
	t.Helper()
	f := markettest.New(t, opts...)
	ledger := roster.NewLedger(roster.DefaultContractRules(), f.Clock)
	rec := &events.Recorder{}
	app := NewApp(Deps{
		Store:  f.Store,
		Ledger: ledger,
		Turns:  turn.NewApp(ledger),
		Clock:  f.Clock,
		Events: events.NewBroadcaster(rec, f.Clock),
	})
	return &env{
		f:       f,
		app:     app,
		rec:     rec,
		session: f.NewSession(t, models.SessionTypeFirstMarket, 30),
	}
}

// open starts an auction for player nominated by member i.
func (e *env) open(t *testing.T, i int, player models.Player, base int) models.Auction {
	t.Helper()
	ctx := context.Background()
	var auc models.Auction
	err := e.f.Store.ExecTx(ctx, db.TxOptions{}, func(q db.Querier) error {
		s, err := q.GetSession(ctx, e.session.ID)
		if err != nil {
			return err
		}
		auc, err = e.app.Open(ctx, q, OpenRequest{
			Session:     &s,
			Player:      player,
			NominatorID: e.f.Member(i).ID,
			BasePrice:   base,
		})
		if err != nil {
			return err
		}
		return db.SaveSession(ctx, q, &s)
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e.app.Started(ctx, auc)
	return auc
}

func (e *env) resolveNow(t *testing.T) *models.Auction {
	t.Helper()
	auc, err := e.app.Current(context.Background(), e.session.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	return auc
}

func TestSoftCloseAndLazyResolution(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a, b := e.f.Member(1), e.f.Member(2)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)

	e.f.Clock.Advance(20 * time.Second)
	got, bid, err := e.app.PlaceBid(ctx, auc.ID, b.ID, 5)
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if got.CurrentPrice != 5 || !bid.IsWinning {
		t.Fatalf("price = %d winning = %v, want 5 and true", got.CurrentPrice, bid.IsWinning)
	}
	wantExpiry := markettest.Epoch.Add(50 * time.Second)
	if !got.TimerExpiresAt.Equal(wantExpiry) {
		t.Fatalf("timer_expires_at = %v, want %v", got.TimerExpiresAt, wantExpiry)
	}

	e.f.Clock.Advance(29 * time.Second)
	if cur := e.resolveNow(t); cur.Status != models.AuctionStatusActive {
		t.Fatalf("status at t=49s = %v, want ACTIVE", cur.Status)
	}

	e.f.Clock.Advance(time.Second)
	cur := e.resolveNow(t)
	if cur.Status != models.AuctionStatusCompleted {
		t.Fatalf("status at t=50s = %v, want COMPLETED", cur.Status)
	}
	if cur.WinnerID == nil || *cur.WinnerID != b.ID || cur.CurrentPrice != 5 {
		t.Fatalf("winner = %v price = %d, want %v at 5", cur.WinnerID, cur.CurrentPrice, b.ID)
	}

	entry, err := e.f.Store.GetRosterEntryByAuction(ctx, auc.ID)
	if err != nil {
		t.Fatalf("GetRosterEntryByAuction: %v", err)
	}
	contract, err := e.f.Store.GetContractByRosterEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetContractByRosterEntry: %v", err)
	}
	if contract.Salary != 1 || contract.Duration != 3 {
		t.Fatalf("contract salary = %d duration = %d, want 1 and 3", contract.Salary, contract.Duration)
	}
	if got := e.f.Budget(t, b.ID); got != 495 {
		t.Fatalf("winner budget = %d, want 495", got)
	}
	if got := e.f.Budget(t, a.ID); got != 500 {
		t.Fatalf("nominator budget = %d, want 500", got)
	}

	var closed events.AuctionClosedPayload
	if err := e.rec.Decode(events.AuctionClosed, &closed); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if closed.Trigger != TriggerRead || closed.Salary != 1 {
		t.Fatalf("closed payload = %+v, want read trigger and salary 1", closed)
	}
}

func TestResolutionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	winner := e.f.Member(1)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)
	e.f.Clock.Advance(31 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.app.Current(ctx, e.session.ID); err != nil {
				t.Errorf("Current: %v", err)
			}
		}()
	}
	wg.Wait()

	resolved, err := e.app.ResolveExpired(ctx, auc.ID)
	if err != nil {
		t.Fatalf("ResolveExpired: %v", err)
	}
	if resolved {
		t.Fatal("second resolution reported work done")
	}
	if _, err := e.app.Close(ctx, auc.ID, e.f.Admin.ID); err != nil {
		t.Fatalf("Close on resolved auction: %v", err)
	}

	entries, _ := e.f.Store.ListRosterEntriesByLeague(ctx, e.f.League.ID)
	if len(entries) != 1 {
		t.Fatalf("roster entries = %d, want 1", len(entries))
	}
	contracts, _ := e.f.Store.ListContractsByLeague(ctx, e.f.League.ID)
	if len(contracts) != 1 {
		t.Fatalf("contracts = %d, want 1", len(contracts))
	}
	if got := e.f.Budget(t, winner.ID); got != 499 {
		t.Fatalf("budget = %d, want a single debit to 499", got)
	}
}

func TestAuctionWithoutBidsResolvesNoBids(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	expiry := e.f.Clock.Now().Add(-time.Second)
	auc := models.Auction{
		ID:             uuid.New(),
		SessionID:      e.session.ID,
		LeagueID:       e.f.League.ID,
		PlayerID:       e.f.Player(models.RoleGoalkeeper, 0).ID,
		PlayerRole:     models.RoleGoalkeeper,
		NominatorID:    e.f.Member(1).ID,
		Status:         models.AuctionStatusActive,
		BasePrice:      1,
		CurrentPrice:   1,
		TimerSeconds:   30,
		TimerExpiresAt: &expiry,
		Version:        1,
	}
	if err := e.f.Store.CreateAuction(ctx, auc); err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}

	resolved, err := e.app.ResolveExpired(ctx, auc.ID)
	if err != nil || !resolved {
		t.Fatalf("ResolveExpired = %v, %v, want true", resolved, err)
	}
	if got := e.f.Auction(t, auc.ID); got.Status != models.AuctionStatusNoBids || got.WinnerID != nil {
		t.Fatalf("status = %v winner = %v, want NO_BIDS and none", got.Status, got.WinnerID)
	}
}

func TestPlaceBidRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)
	full := e.f.Member(3)
	e.f.Fill(t, full.ID, models.RoleGoalkeeper, 3)

	tests := []struct {
		name     string
		memberID uuid.UUID
		amount   int
		code     string
	}{
		{"equal to current price", e.f.Member(2).ID, 1, marketerr.CodeBidTooLow},
		{"over budget", e.f.Member(2).ID, 460, marketerr.CodeInsufficientBudget},
		{"role slots full", full.ID, 2, marketerr.CodeSlotsFull},
		{"stranger", uuid.New(), 2, marketerr.CodeNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.app.PlaceBid(ctx, auc.ID, tt.memberID, tt.amount)
			if got := marketerr.CodeOf(err); got != tt.code {
				t.Fatalf("code = %q (%v), want %q", got, err, tt.code)
			}
		})
	}

	e.f.Clock.Advance(30 * time.Second)
	_, _, err := e.app.PlaceBid(ctx, auc.ID, e.f.Member(2).ID, 10)
	if got := marketerr.CodeOf(err); got != marketerr.CodeAuctionExpired {
		t.Fatalf("late bid code = %q, want %q", got, marketerr.CodeAuctionExpired)
	}
}

func TestValidateBidReserve(t *testing.T) {
	limits := markettest.DefaultLimits()
	st := roster.Standing{Budget: 100, Counts: map[models.Role]int{models.RoleGoalkeeper: 3}}
	auc := models.Auction{Status: models.AuctionStatusActive, PlayerRole: models.RoleDefender, CurrentPrice: 1}
	now := markettest.Epoch

	// 21 empty slots after this pick reserve 42 credits: 100 - 42 = 58 available
	check := BidCheck{Auction: auc, Standing: st, Limits: limits, Rules: roster.DefaultContractRules(), FirstMarket: true, Now: now}

	check.Amount = 52 // 52 + 5 salary = 57
	if err := ValidateBid(check); err != nil {
		t.Fatalf("ValidateBid(52) = %v, want nil", err)
	}
	check.Amount = 53 // 53 + 5 = 58
	if err := ValidateBid(check); err != nil {
		t.Fatalf("ValidateBid(53) = %v, want nil", err)
	}
	check.Amount = 54 // 54 + 5 = 59
	if got := marketerr.CodeOf(ValidateBid(check)); got != marketerr.CodeInsufficientBudget {
		t.Fatalf("ValidateBid(54) code = %q, want %q", got, marketerr.CodeInsufficientBudget)
	}

	check.FirstMarket = false
	if err := ValidateBid(check); err != nil {
		t.Fatalf("recurring ValidateBid(54) = %v, want nil", err)
	}
}

func TestCloseRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)

	_, err := e.app.Close(ctx, auc.ID, e.f.Member(2).ID)
	if got := marketerr.CodeOf(err); got != marketerr.CodeNotAdmin {
		t.Fatalf("code = %q, want %q", got, marketerr.CodeNotAdmin)
	}

	closed, err := e.app.Close(ctx, auc.ID, e.f.Admin.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != models.AuctionStatusCompleted {
		t.Fatalf("status = %v, want COMPLETED before the timer ran out", closed.Status)
	}
	entries, _ := e.f.Store.ListAuditEntries(ctx, e.session.ID)
	if len(entries) != 1 || entries[0].Action != models.AuditActionCloseAuction {
		t.Fatalf("audit = %+v, want one CLOSE_AUCTION entry", entries)
	}
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)

	e.f.Clock.Advance(10 * time.Second)
	if _, err := e.app.Pause(ctx, auc.ID, e.f.Admin.ID, ""); marketerr.CodeOf(err) != marketerr.CodeInvalidArgument {
		t.Fatalf("Pause without reason err = %v, want INVALID_ARGUMENT", err)
	}
	paused, err := e.app.Pause(ctx, auc.ID, e.f.Admin.ID, "connection issues")
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.PausedRemainingMs != 20000 {
		t.Fatalf("remaining = %dms, want 20000", paused.PausedRemainingMs)
	}

	e.f.Clock.Advance(5 * time.Minute)
	if cur := e.resolveNow(t); cur.Status != models.AuctionStatusPaused {
		t.Fatalf("status while paused = %v, want PAUSED", cur.Status)
	}
	if _, _, err := e.app.PlaceBid(ctx, auc.ID, e.f.Member(2).ID, 3); marketerr.CodeOf(err) != marketerr.CodeAuctionNotActive {
		t.Fatalf("bid while paused err = %v, want AUCTION_NOT_ACTIVE", err)
	}

	resumed, err := e.app.Resume(ctx, auc.ID, e.f.Admin.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	want := e.f.Clock.Now().Add(20 * time.Second)
	if resumed.Status != models.AuctionStatusActive || !resumed.TimerExpiresAt.Equal(want) {
		t.Fatalf("resumed = %v expiring %v, want ACTIVE at %v", resumed.Status, resumed.TimerExpiresAt, want)
	}
	if !e.rec.Has(events.PauseRequested) || !e.rec.Has(events.AuctionResumed) {
		t.Fatalf("events = %v, want pause and resume", e.rec.Types())
	}
}

func TestCancelActive(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 1, e.f.Player(models.RoleGoalkeeper, 0), 1)

	cancelled, err := e.app.CancelActive(ctx, auc.ID, e.f.Admin.ID, "wrong player nominated")
	if err != nil {
		t.Fatalf("CancelActive: %v", err)
	}
	if cancelled.Status != models.AuctionStatusCancelled {
		t.Fatalf("status = %v, want CANCELLED", cancelled.Status)
	}
	bids, _ := e.f.Store.ListBids(ctx, auc.ID)
	for _, b := range bids {
		if !b.IsCancelled || b.IsWinning {
			t.Fatalf("bid %+v not cancelled", b)
		}
	}
	gate, err := e.app.Gate(ctx, e.session.ID)
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	if gate.State != GateOpen {
		t.Fatalf("gate = %v, want open after cancellation", gate.State)
	}
	if s := e.f.Session(t, e.session.ID); s.CurrentTurnIndex != 0 {
		t.Fatalf("turn index = %d, want unchanged 0", s.CurrentTurnIndex)
	}
}
