package sqlutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization", &pq.Error{Code: "40001"}, true},
		{"wrapped deadlock", fmt.Errorf("failed to create session: %w", &pq.Error{Code: "40P01"}), true},
		{"bad conn", driver.ErrBadConn, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastRetry(), IsTransient, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &pq.Error{Code: "40001"}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Fatalf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	want := errors.New("not retryable")
	calls := 0
	_, err := Retry(context.Background(), fastRetry(), IsTransient, func() (int, error) {
		calls++
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryBounded(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetry(), IsTransient, func() (int, error) {
		calls++
		return 0, driver.ErrBadConn
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
