package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/memdb"
)

type fakePublisher struct {
	mu        sync.Mutex
	failures  int
	published []db.OutboxEvent
	calls     int
}

func (p *fakePublisher) Publish(_ context.Context, event db.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("nats unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fakeNotifier struct {
	ch     chan *pq.Notification
	closed bool
}

func (n *fakeNotifier) NotificationChannel() <-chan *pq.Notification { return n.ch }
func (n *fakeNotifier) Ping() error                                  { return nil }
func (n *fakeNotifier) Close() error {
	n.closed = true
	return nil
}

func testConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	return cfg
}

func emit(t *testing.T, store *memdb.Store, sessionID uuid.UUID, n int) {
	t.Helper()
	b := events.NewBroadcaster(NewEmitter(store), clockwork.NewRealClock())
	for i := 0; i < n; i++ {
		b.Send(context.Background(), sessionID, events.BidPlaced, events.BidPlacedPayload{AuctionID: uuid.New(), Amount: i + 1})
	}
	if got := len(store.ListOutbox()); got != n {
		t.Fatalf("outbox rows = %d, want %d", got, n)
	}
}

func unsent(store *memdb.Store) int {
	n := 0
	for _, e := range store.ListOutbox() {
		if e.SentAt == nil {
			n++
		}
	}
	return n
}

func TestEmitterRejectsEmptyPayload(t *testing.T) {
	store := memdb.New()
	err := NewEmitter(store).Emit(context.Background(), events.Event{ID: uuid.New(), Type: events.BidPlaced})
	if err == nil {
		t.Fatal("Emit with empty payload succeeded, want error")
	}
	if got := len(store.ListOutbox()); got != 0 {
		t.Fatalf("outbox rows = %d, want 0", got)
	}
}

func TestProcessUnsentRetriesAndMarksSent(t *testing.T) {
	store := memdb.New()
	sessionID := uuid.New()
	emit(t, store, sessionID, 3)

	pub := &fakePublisher{failures: 1}
	l := newListener(store, &fakeNotifier{}, pub, nil, testConfig())
	if err := l.processUnsent(context.Background()); err != nil {
		t.Fatalf("processUnsent: %v", err)
	}

	if pub.calls != 4 {
		t.Fatalf("publish calls = %d, want 4", pub.calls)
	}
	if pub.count() != 3 {
		t.Fatalf("published = %d, want 3", pub.count())
	}
	if pub.published[0].SessionID != sessionID {
		t.Fatalf("session = %v, want %v", pub.published[0].SessionID, sessionID)
	}
	if n := unsent(store); n != 0 {
		t.Fatalf("unsent rows = %d, want 0", n)
	}
}

func TestPublishFailureLeavesRowUnsent(t *testing.T) {
	store := memdb.New()
	emit(t, store, uuid.New(), 1)

	pub := &fakePublisher{failures: 10}
	l := newListener(store, &fakeNotifier{}, pub, nil, testConfig())
	row := store.ListOutbox()[0]
	if err := l.handleNotification(context.Background(), row.ID.String()); err == nil {
		t.Fatal("handleNotification succeeded, want publish error")
	}
	if pub.calls != 3 {
		t.Fatalf("publish calls = %d, want 3", pub.calls)
	}
	if n := unsent(store); n != 1 {
		t.Fatalf("unsent rows = %d, want 1", n)
	}
}

func TestHandleNotificationSkipsSentRows(t *testing.T) {
	store := memdb.New()
	emit(t, store, uuid.New(), 1)
	row := store.ListOutbox()[0]
	if err := store.MarkOutboxSent(context.Background(), row.ID); err != nil {
		t.Fatalf("MarkOutboxSent: %v", err)
	}

	pub := &fakePublisher{}
	l := newListener(store, &fakeNotifier{}, pub, nil, testConfig())
	if err := l.handleNotification(context.Background(), row.ID.String()); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
	if pub.calls != 0 {
		t.Fatalf("publish calls = %d, want 0", pub.calls)
	}
	if err := l.handleNotification(context.Background(), "not-a-uuid"); err == nil {
		t.Fatal("handleNotification with bad id succeeded, want error")
	}
}

func TestStartRelaysNotifications(t *testing.T) {
	store := memdb.New()
	pub := &fakePublisher{}
	n := &fakeNotifier{ch: make(chan *pq.Notification, 1)}
	l := newListener(store, n, pub, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	emit(t, store, uuid.New(), 1)
	n.ch <- &pq.Notification{Channel: "market_outbox_events", Extra: store.ListOutbox()[0].ID.String()}

	deadline := time.Now().Add(2 * time.Second)
	for unsent(store) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification was not relayed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !n.closed {
		t.Fatal("listener not closed on shutdown")
	}
	if pub.count() != 1 {
		t.Fatalf("published = %d, want 1", pub.count())
	}
}

func TestEnvelopeCarriesSession(t *testing.T) {
	row := db.OutboxEvent{ID: uuid.New(), SessionID: uuid.New(), EventType: "AuctionClosed", Payload: []byte(`{}`)}
	env := NewEnvelope(row)
	if env.SessionID != row.SessionID.String() || env.EventID != row.ID.String() {
		t.Fatalf("envelope = %+v, want ids of %+v", env, row)
	}
	if got := Subject("market.events", row.EventType); got != "market.events.AuctionClosed" {
		t.Fatalf("Subject = %q, want market.events.AuctionClosed", got)
	}
}
