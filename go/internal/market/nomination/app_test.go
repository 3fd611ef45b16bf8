package nomination

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/markettest"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
)

type env struct {
	f        *markettest.Fixture
	app      *App
	auctions *auction.App
	rec      *events.Recorder
	session  models.MarketSession
}

func newEnv(t *testing.T, typ models.SessionType, opts ...markettest.Option) *env {
	t.Helper()
	f := markettest.New(t, opts...)
	ledger := roster.NewLedger(roster.DefaultContractRules(), f.Clock)
	turns := turn.NewApp(ledger)
	rec := &events.Recorder{}
	broadcaster := events.NewBroadcaster(rec, f.Clock)
	auctions := auction.NewApp(auction.Deps{
		Store:  f.Store,
		Ledger: ledger,
		Turns:  turns,
		Clock:  f.Clock,
		Events: broadcaster,
	})
	app := NewApp(Deps{
		Store:    f.Store,
		Ledger:   ledger,
		Turns:    turns,
		Auctions: auctions,
		Clock:    f.Clock,
		Events:   broadcaster,
	})
	return &env{f: f, app: app, auctions: auctions, rec: rec, session: f.NewSession(t, typ, 30)}
}

// edit changes the stored session outside of the engine.
func (e *env) edit(t *testing.T, fn func(s *models.MarketSession)) {
	t.Helper()
	s := e.f.Session(t, e.session.ID)
	fn(&s)
	ok, err := e.f.Store.UpdateSession(context.Background(), s, s.Version)
	if err != nil || !ok {
		t.Fatalf("UpdateSession = %v, %v", ok, err)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := marketerr.CodeOf(err); got != code {
		t.Fatalf("code = %q (%v), want %q", got, err, code)
	}
}

func TestReadyCheckOpensAuction(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeFirstMarket)
	nominator := e.f.Member(0)
	player := e.f.Player(models.RoleGoalkeeper, 0)

	s, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, player.ID, 0)
	if err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if s.NominationState() != models.NominationPending || s.PendingOpeningPrice != FirstMarketBasePrice {
		t.Fatalf("state = %v price = %d, want pending at 1", s.NominationState(), s.PendingOpeningPrice)
	}
	if cur, _ := e.auctions.Current(ctx, e.session.ID); cur != nil {
		t.Fatalf("auction opened before confirmation: %+v", cur)
	}

	res, err := e.app.Confirm(ctx, e.session.ID, nominator.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.Auction != nil || !res.Session.ReadyMembers.Has(nominator.ID) {
		t.Fatalf("confirm result = %+v, want nominator ready and no auction", res)
	}

	for i := 1; i < 3; i++ {
		res, err = e.app.MarkReady(ctx, e.session.ID, e.f.Member(i).ID)
		if err != nil {
			t.Fatalf("MarkReady(%d): %v", i, err)
		}
		if res.Auction != nil {
			t.Fatalf("auction opened with member %d", i)
		}
	}
	_, err = e.app.MarkReady(ctx, e.session.ID, e.f.Member(1).ID)
	wantCode(t, err, marketerr.CodeAlreadyReady)

	e.f.Clock.Advance(5 * time.Second)
	res, err = e.app.MarkReady(ctx, e.session.ID, e.f.Member(3).ID)
	if err != nil {
		t.Fatalf("final MarkReady: %v", err)
	}
	if res.Auction == nil {
		t.Fatal("last ready member did not open the auction")
	}
	auc := res.Auction
	wantExpiry := markettest.Epoch.Add(35 * time.Second)
	if auc.Status != models.AuctionStatusActive || auc.CurrentPrice != 1 || !auc.TimerExpiresAt.Equal(wantExpiry) {
		t.Fatalf("auction = %v at %d expiring %v, want ACTIVE at 1 expiring %v", auc.Status, auc.CurrentPrice, auc.TimerExpiresAt, wantExpiry)
	}
	if res.Session.NominationState() != models.NominationIdle {
		t.Fatalf("session nomination state = %v, want idle", res.Session.NominationState())
	}
	win, err := e.auctions.WinningBid(ctx, auc.ID)
	if err != nil || win == nil || win.MemberID != nominator.ID {
		t.Fatalf("opening bid = %+v, %v, want the nominator's", win, err)
	}
	if !e.rec.Has(events.AuctionStarted) {
		t.Fatalf("events = %v, want auction_started", e.rec.Types())
	}
}

func TestSetPendingRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeFirstMarket)
	nominator := e.f.Member(0)
	owned := e.f.Player(models.RoleGoalkeeper, 1)
	e.f.Give(t, e.f.Member(2).ID, owned, 1)

	tests := []struct {
		name     string
		memberID uuid.UUID
		playerID uuid.UUID
		code     string
	}{
		{"not the nominator", e.f.Member(1).ID, e.f.Player(models.RoleGoalkeeper, 0).ID, marketerr.CodeNotNominator},
		{"wrong role", nominator.ID, e.f.Player(models.RoleDefender, 0).ID, marketerr.CodeWrongRole},
		{"owned player", nominator.ID, owned.ID, marketerr.CodePlayerOwned},
		{"unknown player", nominator.ID, uuid.New(), marketerr.CodePlayerNotFound},
		{"stranger", uuid.New(), e.f.Player(models.RoleGoalkeeper, 0).ID, marketerr.CodeNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.app.SetPending(ctx, e.session.ID, tt.memberID, tt.playerID, 0)
			wantCode(t, err, tt.code)
		})
	}

	if _, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 0).ID, 0); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	_, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 2).ID, 0)
	wantCode(t, err, marketerr.CodeNominationPending)
}

func TestSetPendingWaitsForAcknowledgments(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeFirstMarket)
	e.edit(t, func(s *models.MarketSession) { s.InPersonMode = true })
	nominator := e.f.Member(0)

	if _, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 0).ID, 0); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	res, err := e.app.Confirm(ctx, e.session.ID, nominator.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.Auction == nil {
		t.Fatal("in-person confirmation did not open the auction")
	}

	_, err = e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 1).ID, 0)
	wantCode(t, err, marketerr.CodeAuctionInProgress)

	e.f.Clock.Advance(30 * time.Second)
	_, err = e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 1).ID, 0)
	wantCode(t, err, marketerr.CodeAckPending)
	if pending := err.(*marketerr.Error).Pending; pending != 4 {
		t.Fatalf("pending = %d, want 4", pending)
	}

	for i := 0; i < 4; i++ {
		if _, err := e.auctions.Acknowledge(ctx, res.Auction.ID, e.f.Member(i).ID, nil); err != nil {
			t.Fatalf("Acknowledge(%d): %v", i, err)
		}
	}
	_, err = e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 1).ID, 0)
	wantCode(t, err, marketerr.CodeNotNominator)
	if _, err := e.app.SetPending(ctx, e.session.ID, e.f.Member(1).ID, e.f.Player(models.RoleGoalkeeper, 1).ID, 0); err != nil {
		t.Fatalf("next nominator SetPending: %v", err)
	}
}

func TestSingleMemberConfirmOpensAuction(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeFirstMarket, markettest.WithMembers(1))
	admin := e.f.Admin

	if _, err := e.app.SetPending(ctx, e.session.ID, admin.ID, e.f.Player(models.RoleGoalkeeper, 0).ID, 0); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	res, err := e.app.Confirm(ctx, e.session.ID, admin.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.Auction == nil {
		t.Fatal("single-member confirmation did not open the auction")
	}
}

func TestConfirmAndReadyOrdering(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeFirstMarket)
	nominator := e.f.Member(0)

	_, err := e.app.Confirm(ctx, e.session.ID, nominator.ID)
	wantCode(t, err, marketerr.CodeNoNomination)

	if _, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleGoalkeeper, 0).ID, 0); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	_, err = e.app.MarkReady(ctx, e.session.ID, e.f.Member(1).ID)
	wantCode(t, err, marketerr.CodeNotConfirmed)
	_, err = e.app.Confirm(ctx, e.session.ID, e.f.Member(1).ID)
	wantCode(t, err, marketerr.CodeNotNominator)

	if _, err := e.app.Confirm(ctx, e.session.ID, nominator.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	_, err = e.app.Confirm(ctx, e.session.ID, nominator.ID)
	wantCode(t, err, marketerr.CodeAlreadyConfirmed)
	_, err = e.app.MarkReady(ctx, e.session.ID, nominator.ID)
	wantCode(t, err, marketerr.CodeAlreadyReady)
}

func TestCancelNomination(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeRecurring)
	e.edit(t, func(s *models.MarketSession) { s.CurrentTurnIndex = 1 })
	nominator := e.f.Member(1)
	player := e.f.Player(models.RoleMidfielder, 0)

	if _, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, player.ID, 3); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	s, err := e.app.Cancel(ctx, e.session.ID, nominator.ID, "")
	if err != nil {
		t.Fatalf("nominator Cancel: %v", err)
	}
	if s.NominationState() != models.NominationIdle {
		t.Fatalf("state = %v, want idle", s.NominationState())
	}

	if _, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, player.ID, 3); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if _, err := e.app.Confirm(ctx, e.session.ID, nominator.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	_, err = e.app.Cancel(ctx, e.session.ID, nominator.ID, "")
	wantCode(t, err, marketerr.CodeAlreadyConfirmed)
	_, err = e.app.Cancel(ctx, e.session.ID, e.f.Member(2).ID, "")
	wantCode(t, err, marketerr.CodeNotAdmin)
	_, err = e.app.Cancel(ctx, e.session.ID, e.f.Admin.ID, " ")
	wantCode(t, err, marketerr.CodeInvalidArgument)

	s, err = e.app.Cancel(ctx, e.session.ID, e.f.Admin.ID, "player injured")
	if err != nil {
		t.Fatalf("admin Cancel: %v", err)
	}
	if s.NominationState() != models.NominationIdle || s.ReadyMembers.Len() != 0 {
		t.Fatalf("state = %v ready = %d, want idle and empty", s.NominationState(), s.ReadyMembers.Len())
	}
	entries, _ := e.f.Store.ListAuditEntries(ctx, e.session.ID)
	if len(entries) != 1 || entries[0].Action != models.AuditActionCancelNomination || entries[0].Reason != "player injured" {
		t.Fatalf("audit = %+v, want one CANCEL_NOMINATION entry", entries)
	}
	if !e.rec.Has(events.NominationCancelled) {
		t.Fatalf("events = %v, want nomination_cancelled", e.rec.Types())
	}
}

func TestRecurringNomination(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeRecurring)
	nominator := e.f.Member(0)
	forward := e.f.Player(models.RoleForward, 0)

	_, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, forward.ID, 0)
	wantCode(t, err, marketerr.CodeInvalidArgument)
	_, err = e.app.SetPending(ctx, e.session.ID, nominator.ID, forward.ID, 460)
	wantCode(t, err, marketerr.CodeInsufficientBudget)

	e.f.Fill(t, nominator.ID, models.RoleForward, 6)
	_, err = e.app.SetPending(ctx, e.session.ID, nominator.ID, forward.ID, 10)
	wantCode(t, err, marketerr.CodeSlotsFull)

	s, err := e.app.SetPending(ctx, e.session.ID, nominator.ID, e.f.Player(models.RoleDefender, 0).ID, 10)
	if err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if s.PendingOpeningPrice != 10 {
		t.Fatalf("opening price = %d, want 10", s.PendingOpeningPrice)
	}
}

func TestNominationOutsideAuctionPhase(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, models.SessionTypeRecurring)
	e.edit(t, func(s *models.MarketSession) { s.Phase = models.SessionPhaseTrades })

	_, err := e.app.SetPending(ctx, e.session.ID, e.f.Member(0).ID, e.f.Player(models.RoleForward, 0).ID, 1)
	wantCode(t, err, marketerr.CodeWrongPhase)
}
