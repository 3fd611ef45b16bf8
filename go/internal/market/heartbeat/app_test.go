package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

func TestSnapshotThreshold(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	app := NewApp(NewMemoryTracker(clock), clock, 0)
	session := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	_ = app.Beat(ctx, session, a)
	_ = app.Beat(ctx, session, b)
	clock.Advance(30 * time.Second)
	_ = app.Beat(ctx, session, a)

	snap := app.Snapshot(ctx, session, []uuid.UUID{a, b})
	if !snap.AllConnected {
		t.Fatalf("AllConnected = false at 30s, want true: %+v", snap.Members)
	}

	clock.Advance(16 * time.Second)
	snap = app.Snapshot(ctx, session, []uuid.UUID{a, b, c})
	if snap.AllConnected {
		t.Fatal("AllConnected = true, want false after 46s of silence from b")
	}
	connected := map[uuid.UUID]bool{}
	for _, p := range snap.Members {
		connected[p.MemberID] = p.Connected
	}
	if !connected[a] || connected[b] || connected[c] {
		t.Fatalf("connected = %v, want only a", connected)
	}
	if snap.Members[0].MemberID != a {
		t.Fatalf("first member = %v, want connected member first", snap.Members[0].MemberID)
	}
}

func TestForgetClearsSession(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	tracker := NewMemoryTracker(clock)
	app := NewApp(tracker, clock, time.Minute)
	session, member := uuid.New(), uuid.New()

	_ = app.Beat(ctx, session, member)
	app.Forget(ctx, session)

	seen, _ := tracker.LastSeen(ctx, session)
	if len(seen) != 0 {
		t.Fatalf("len(seen) = %d, want 0", len(seen))
	}
}
