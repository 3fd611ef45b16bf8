package timer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type chanResolver struct {
	fired chan uuid.UUID
}

func (r *chanResolver) ResolveExpired(_ context.Context, id uuid.UUID) (bool, error) {
	r.fired <- id
	return true, nil
}

func start(t *testing.T) (*Orchestrator, *clockwork.FakeClock, *chanResolver) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	o := NewOrchestrator(clock, 2, nil)
	r := &chanResolver{fired: make(chan uuid.UUID, 8)}
	o.SetResolver(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return o, clock, r
}

func waitFired(t *testing.T, r *chanResolver) uuid.UUID {
	t.Helper()
	select {
	case id := <-r.fired:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("resolver was not called")
		return uuid.Nil
	}
}

func TestTimerFiresAtDeadline(t *testing.T) {
	o, clock, r := start(t)
	id := uuid.New()

	o.Schedule(id, clock.Now().Add(30*time.Second))
	if o.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", o.Pending())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext: %v", err)
	}

	clock.Advance(30 * time.Second)
	if got := waitFired(t, r); got != id {
		t.Fatalf("fired = %v, want %v", got, id)
	}
	if o.Pending() != 0 {
		t.Fatalf("Pending after fire = %d, want 0", o.Pending())
	}
}

func TestRescheduleReplacesDeadline(t *testing.T) {
	o, clock, r := start(t)
	id := uuid.New()

	o.Schedule(id, clock.Now().Add(30*time.Second))
	o.Schedule(id, clock.Now().Add(60*time.Second))
	if d, ok := o.Deadline(id); !ok || !d.Equal(clock.Now().Add(60*time.Second)) {
		t.Fatalf("Deadline = %v %v, want now+60s", d, ok)
	}

	clock.Advance(30 * time.Second)
	select {
	case <-r.fired:
		t.Fatal("replaced timer fired")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(30 * time.Second)
	waitFired(t, r)
}

func TestCancelDisarms(t *testing.T) {
	o, clock, r := start(t)
	id := uuid.New()

	o.Schedule(id, clock.Now().Add(10*time.Second))
	o.Cancel(id)
	if o.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", o.Pending())
	}
	clock.Advance(time.Minute)
	select {
	case <-r.fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPastDeadlineEnqueuesImmediately(t *testing.T) {
	o, clock, r := start(t)
	id := uuid.New()

	o.Schedule(id, clock.Now().Add(-time.Second))
	if got := waitFired(t, r); got != id {
		t.Fatalf("fired = %v, want %v", got, id)
	}
}
