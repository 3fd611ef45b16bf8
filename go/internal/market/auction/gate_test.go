package auction

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/markettest"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

func TestAcknowledgmentGate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	auc := e.open(t, 0, e.f.Player(models.RoleGoalkeeper, 0), 1)

	gate, err := e.app.Gate(ctx, e.session.ID)
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	if gate.State != GateAuctionInProgress || marketerr.CodeOf(gate.Err()) != marketerr.CodeAuctionInProgress {
		t.Fatalf("gate = %v, want auction in progress", gate.State)
	}
	if _, err := e.app.Acknowledge(ctx, auc.ID, e.f.Member(1).ID, nil); marketerr.CodeOf(err) != marketerr.CodeInvalidTransition {
		t.Fatalf("ack on active auction err = %v, want INVALID_TRANSITION", err)
	}

	e.f.Clock.Advance(30 * time.Second)
	for i := 0; i < 3; i++ {
		gate, err = e.app.Acknowledge(ctx, auc.ID, e.f.Member(i).ID, nil)
		if err != nil {
			t.Fatalf("Acknowledge(%d): %v", i, err)
		}
	}
	if gate.State != GateAwaitingAcks || gate.Acknowledged != 3 || gate.Total != 4 {
		t.Fatalf("gate = %+v, want 3 of 4 acknowledged", gate)
	}
	gateErr := gate.Err()
	if marketerr.CodeOf(gateErr) != marketerr.CodeAckPending {
		t.Fatalf("gate err = %v, want ACKNOWLEDGMENTS_PENDING", gateErr)
	}
	if pending := gateErr.(*marketerr.Error).Pending; pending != 1 {
		t.Fatalf("pending = %d, want 1", pending)
	}

	if _, err := e.app.Acknowledge(ctx, auc.ID, e.f.Member(1).ID, nil); marketerr.CodeOf(err) != marketerr.CodeAlreadyAcknowledged {
		t.Fatalf("duplicate ack err = %v, want ALREADY_ACKNOWLEDGED", err)
	}
	if s := e.f.Session(t, e.session.ID); s.CurrentTurnIndex != 0 {
		t.Fatalf("turn index = %d before release, want 0", s.CurrentTurnIndex)
	}

	note := "gg"
	gate, err = e.app.Acknowledge(ctx, auc.ID, e.f.Member(3).ID, &note)
	if err != nil {
		t.Fatalf("final Acknowledge: %v", err)
	}
	if gate.State != GateOpen || len(gate.Pending) != 0 {
		t.Fatalf("gate = %+v, want open", gate)
	}
	if s := e.f.Session(t, e.session.ID); s.CurrentTurnIndex != 1 {
		t.Fatalf("turn index = %d after release, want 1", s.CurrentTurnIndex)
	}
	if got := e.f.Auction(t, auc.ID); got.GateReleasedAt == nil {
		t.Fatal("gate_released_at not set")
	}

	var advanced events.TurnAdvancedPayload
	if err := e.rec.Decode(events.TurnAdvanced, &advanced); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if advanced.NominatorID == nil || *advanced.NominatorID != e.f.Member(1).ID {
		t.Fatalf("next nominator = %v, want %v", advanced.NominatorID, e.f.Member(1).ID)
	}

	if _, err := e.app.Acknowledge(ctx, auc.ID, e.f.Member(2).ID, nil); marketerr.CodeOf(err) != marketerr.CodeGateReleased {
		t.Fatalf("ack after release err = %v, want GATE_RELEASED", err)
	}
}

func TestGateCountsOnlyActiveMembers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, markettest.WithMembers(3))
	auc := e.open(t, 0, e.f.Player(models.RoleGoalkeeper, 0), 1)
	e.f.Clock.Advance(30 * time.Second)

	left := e.f.Member(2)
	left.Status = models.MemberStatusInactive
	e.f.Store.AddMember(left)

	for i := 0; i < 2; i++ {
		if _, err := e.app.Acknowledge(ctx, auc.ID, e.f.Member(i).ID, nil); err != nil {
			t.Fatalf("Acknowledge(%d): %v", i, err)
		}
	}
	gate, err := e.app.Gate(ctx, e.session.ID)
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	if gate.State != GateOpen || gate.Total != 2 {
		t.Fatalf("gate = %+v, want open with 2 members", gate)
	}
}

func TestTurnAnnouncementFlagsNoEligible(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	role := models.RoleDefender
	e.app.announceTurn(ctx, e.session.ID, turn.Result{Outcome: turn.NoEligible, Role: &role, Index: 2})

	var got events.TurnAdvancedPayload
	if err := e.rec.Decode(events.TurnAdvanced, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.NoEligible {
		t.Fatalf("no_eligible = %v, want %v", got.NoEligible, true)
	}
	if got.RoundComplete || got.NominatorID != nil {
		t.Fatalf("payload = %+v, want no nominator and round not complete", got)
	}
	if got.Role != string(models.RoleDefender) || got.TurnIndex != 2 {
		t.Fatalf("role = %q index = %d, want %q and 2", got.Role, got.TurnIndex, models.RoleDefender)
	}

	e.app.announceTurn(ctx, e.session.ID, turn.Result{Outcome: turn.Nominator, NominatorID: e.f.Member(0).ID, Role: &role})
	if err := e.rec.Decode(events.TurnAdvanced, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.NoEligible {
		t.Fatalf("no_eligible = %v, want %v", got.NoEligible, false)
	}
}
