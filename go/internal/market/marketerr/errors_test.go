package marketerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to place bid: %w", BusinessRule(CodeBidTooLow, "bid %d must exceed %d", 3, 5))
	if got := KindOf(err); got != KindBusinessRule {
		t.Fatalf("KindOf = %v, want %v", got, KindBusinessRule)
	}
	if got := CodeOf(err); got != CodeBidTooLow {
		t.Fatalf("CodeOf = %q, want %q", got, CodeBidTooLow)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestVersionConflictSentinel(t *testing.T) {
	err := fmt.Errorf("failed to update auction: %w", ErrVersionConflict)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatal("errors.Is should match ErrVersionConflict")
	}
	if errors.Is(Conflict(CodeAuctionNotActive, "x"), ErrVersionConflict) {
		t.Fatal("a plain conflict must not match the version sentinel")
	}
}

func TestAcksPendingCarriesCount(t *testing.T) {
	err := AcksPending(2)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.Pending != 2 {
		t.Fatalf("Pending = %d, want 2", e.Pending)
	}
	if e.Kind != KindConflict {
		t.Fatalf("Kind = %v, want conflict", e.Kind)
	}
}

func TestTransientUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(cause)
	if !errors.Is(err, cause) {
		t.Fatal("Transient should unwrap to its cause")
	}
}
