package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/mcdev12/fantamarket/go/internal/models"
)

// versioned answers the two conditional writes against a stored version.
type versioned struct {
	Querier
	version int64
	err     error
	writes  int
}

func (v *versioned) UpdateAuction(_ context.Context, a models.Auction, expected int64) (bool, error) {
	return v.update(expected)
}

func (v *versioned) UpdateSession(_ context.Context, s models.MarketSession, expected int64) (bool, error) {
	return v.update(expected)
}

func (v *versioned) update(expected int64) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	if expected != v.version {
		return false, nil
	}
	v.version++
	v.writes++
	return true, nil
}

func TestSaveAuction(t *testing.T) {
	q := &versioned{version: 3}
	a := &models.Auction{ID: uuid.New(), Version: 3}
	if err := SaveAuction(context.Background(), q, a); err != nil {
		t.Fatalf("SaveAuction() error = %v", err)
	}
	if a.Version != 4 {
		t.Fatalf("version = %d, want %d", a.Version, 4)
	}
	if q.writes != 1 {
		t.Fatalf("writes = %d, want %d", q.writes, 1)
	}
}

func TestSaveAuctionStale(t *testing.T) {
	q := &versioned{version: 5}
	a := &models.Auction{ID: uuid.New(), Version: 4}
	err := SaveAuction(context.Background(), q, a)
	if !errors.Is(err, marketerr.ErrVersionConflict) {
		t.Fatalf("err = %v, want %v", err, marketerr.ErrVersionConflict)
	}
	if a.Version != 4 {
		t.Fatalf("version = %d, want %d", a.Version, 4)
	}
	if q.writes != 0 {
		t.Fatalf("writes = %d, want %d", q.writes, 0)
	}
}

func TestSaveAuctionWrapsStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	q := &versioned{err: boom}
	a := &models.Auction{ID: uuid.New()}
	err := SaveAuction(context.Background(), q, a)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if errors.Is(err, marketerr.ErrVersionConflict) {
		t.Fatalf("err = %v, want a non-conflict error", err)
	}
	if a.Version != 0 {
		t.Fatalf("version = %d, want %d", a.Version, 0)
	}
}

func TestSaveSession(t *testing.T) {
	q := &versioned{version: 1}
	s := &models.MarketSession{ID: uuid.New(), Version: 1}
	if err := SaveSession(context.Background(), q, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if s.Version != 2 {
		t.Fatalf("version = %d, want %d", s.Version, 2)
	}

	stale := &models.MarketSession{ID: s.ID, Version: 1}
	err := SaveSession(context.Background(), q, stale)
	if !errors.Is(err, marketerr.ErrVersionConflict) {
		t.Fatalf("err = %v, want %v", err, marketerr.ErrVersionConflict)
	}
	if stale.Version != 1 {
		t.Fatalf("version = %d, want %d", stale.Version, 1)
	}
}
