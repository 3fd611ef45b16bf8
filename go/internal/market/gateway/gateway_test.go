package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/market/outbox"
)

type fakePresence struct {
	mu      sync.Mutex
	members map[uuid.UUID]bool
	beats   int
}

func (p *fakePresence) Heartbeat(_ context.Context, _, memberID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.members[memberID] {
		return marketerr.Authorization(marketerr.CodeNotMember, "member %s is not in the league", memberID)
	}
	p.beats++
	return nil
}

func (p *fakePresence) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.beats
}

type harness struct {
	cm       *ConnectionManager
	presence *fakePresence
	server   *httptest.Server
}

func newHarness(t *testing.T, members ...uuid.UUID) *harness {
	t.Helper()
	presence := &fakePresence{members: map[uuid.UUID]bool{}}
	for _, m := range members {
		presence.members[m] = true
	}
	cm := NewConnectionManager(DefaultConnectionConfig(), presence)
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &harness{cm: cm, presence: presence, server: srv}
}

func (h *harness) dial(sessionID, memberID uuid.UUID) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws/session?session_id=" + sessionID.String()
	header := http.Header{}
	header.Set(MemberHeader, memberID.String())
	return websocket.DefaultDialer.Dial(url, header)
}

func (h *harness) waitConnections(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.cm.Stats().TotalConnections != n {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", h.cm.Stats().TotalConnections, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesOnlySessionClients(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	h := newHarness(t, alice, bob)
	sessionA, sessionB := uuid.New(), uuid.New()

	connA, _, err := h.dial(sessionA, alice)
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer connA.Close()
	connB, _, err := h.dial(sessionB, bob)
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer connB.Close()
	h.waitConnections(t, 2)

	event := events.Event{ID: uuid.New(), SessionID: sessionA, Type: events.AuctionClosed, Payload: json.RawMessage(`{"price":7}`)}
	if err := h.cm.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := connA.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.ID != event.ID || got.Type != events.AuctionClosed {
		t.Fatalf("event = %+v, want %+v", got, event)
	}

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Fatal("client of another session received the event")
	}
}

func TestUpgradeRejectsNonMembers(t *testing.T) {
	h := newHarness(t)
	_, resp, err := h.dial(uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("dial succeeded, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %v, want 403", resp)
	}
}

func TestClientHeartbeatIsRecorded(t *testing.T) {
	alice := uuid.New()
	h := newHarness(t, alice)
	conn, _, err := h.dial(uuid.New(), alice)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "heartbeat"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.presence.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("beats = %d, want 2", h.presence.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	row := db.OutboxEvent{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		EventType: string(events.BidPlaced),
		Payload:   json.RawMessage(`{"amount":3}`),
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(outbox.NewEnvelope(row))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if got.ID != row.ID || got.SessionID != row.SessionID || got.Type != events.BidPlaced {
		t.Fatalf("event = %+v, want ids of %+v", got, row)
	}

	if _, err := decodeEnvelope([]byte(`{"eventId":"x"}`)); err == nil {
		t.Fatal("decodeEnvelope accepted a bad id")
	}
}
