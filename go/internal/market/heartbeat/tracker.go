// Package heartbeat tracks which members of a session are connected. The
// registry is advisory and never gates engine operations.
package heartbeat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultInterval  = 30 * time.Second
	DefaultThreshold = 45 * time.Second
)

// Tracker stores the last time each member of a session was seen.
type Tracker interface {
	Beat(ctx context.Context, sessionID, memberID uuid.UUID) error
	LastSeen(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]time.Time, error)
	Forget(ctx context.Context, sessionID uuid.UUID) error
}

// MemoryTracker is a process-local Tracker.
type MemoryTracker struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	sessions map[uuid.UUID]map[uuid.UUID]time.Time
}

var _ Tracker = (*MemoryTracker)(nil)

func NewMemoryTracker(clock clockwork.Clock) *MemoryTracker {
	return &MemoryTracker{
		clock:    clock,
		sessions: make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (t *MemoryTracker) Beat(_ context.Context, sessionID, memberID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.sessions[sessionID]
	if !ok {
		members = make(map[uuid.UUID]time.Time)
		t.sessions[sessionID] = members
	}
	members[memberID] = t.clock.Now()
	return nil
}

func (t *MemoryTracker) LastSeen(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uuid.UUID]time.Time, len(t.sessions[sessionID]))
	for id, at := range t.sessions[sessionID] {
		out[id] = at
	}
	return out, nil
}

func (t *MemoryTracker) Forget(_ context.Context, sessionID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
	return nil
}

// Presence is one member's connectivity.
type Presence struct {
	MemberID  uuid.UUID  `json:"member_id"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Connected bool       `json:"connected"`
}

// Snapshot is the connectivity of a session's members.
type Snapshot struct {
	Members      []Presence `json:"members"`
	AllConnected bool       `json:"all_connected"`
}

func snapshot(now time.Time, threshold time.Duration, members []uuid.UUID, seen map[uuid.UUID]time.Time) Snapshot {
	out := Snapshot{Members: make([]Presence, 0, len(members)), AllConnected: true}
	for _, id := range members {
		p := Presence{MemberID: id}
		if at, ok := seen[id]; ok {
			at := at
			p.LastSeen = &at
			p.Connected = now.Sub(at) <= threshold
		}
		if !p.Connected {
			out.AllConnected = false
		}
		out.Members = append(out.Members, p)
	}
	sort.SliceStable(out.Members, func(i, j int) bool {
		return out.Members[i].Connected && !out.Members[j].Connected
	})
	return out
}
