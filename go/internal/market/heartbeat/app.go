package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// App answers connectivity questions on top of a Tracker.
type App struct {
	tracker   Tracker
	clock     clockwork.Clock
	threshold time.Duration
}

func NewApp(tracker Tracker, clock clockwork.Clock, threshold time.Duration) *App {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &App{tracker: tracker, clock: clock, threshold: threshold}
}

// Beat records that memberID is alive in sessionID.
func (a *App) Beat(ctx context.Context, sessionID, memberID uuid.UUID) error {
	if err := a.tracker.Beat(ctx, sessionID, memberID); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	log.Debug().
		Str("session_id", sessionID.String()).
		Str("member_id", memberID.String()).
		Msg("heartbeat")
	return nil
}

// Snapshot reports connectivity for members. Tracker failures degrade to an
// all-disconnected snapshot.
func (a *App) Snapshot(ctx context.Context, sessionID uuid.UUID, members []uuid.UUID) Snapshot {
	seen, err := a.tracker.LastSeen(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("heartbeat registry unavailable")
		seen = nil
	}
	return snapshot(a.clock.Now(), a.threshold, members, seen)
}

// Forget drops all liveness data for a closed session.
func (a *App) Forget(ctx context.Context, sessionID uuid.UUID) {
	if err := a.tracker.Forget(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to forget heartbeats")
	}
}
