package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(context.Context, Event) error {
	f.calls++
	return errors.New("bus down")
}

func TestBroadcasterSwallowsFailures(t *testing.T) {
	rec := &Recorder{}
	failing := &failingEmitter{}
	b := NewBroadcaster(Multi{failing, rec}, clockwork.NewFakeClock())

	auctionID := uuid.New()
	b.Send(context.Background(), uuid.New(), BidPlaced, BidPlacedPayload{AuctionID: auctionID, Amount: 5})

	if failing.calls != 1 {
		t.Fatalf("failing emitter calls = %d, want 1", failing.calls)
	}
	var got BidPlacedPayload
	if err := rec.Decode(BidPlaced, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.AuctionID != auctionID || got.Amount != 5 {
		t.Fatalf("payload = %+v, want auction %v amount 5", got, auctionID)
	}
}

func TestRecorderDecodeMissing(t *testing.T) {
	rec := &Recorder{}
	if err := rec.Decode(AuctionClosed, &AuctionClosedPayload{}); err == nil {
		t.Fatal("Decode err = nil, want error for missing event")
	}
	if rec.Has(AuctionClosed) {
		t.Fatal("Has = true on empty recorder")
	}
}
