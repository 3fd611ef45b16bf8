package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "market_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// notifier is the part of *pq.Listener the relay loop uses.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type Listener struct {
	queries   db.Querier
	notifier  notifier
	publisher Publisher
	metrics   metrics.Collector
	cfg       ListenerConfig
}

func NewListener(queries db.Querier, publisher Publisher, m metrics.Collector, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return newListener(queries, l, publisher, m, cfg), nil
}

func newListener(queries db.Querier, n notifier, publisher Publisher, m metrics.Collector, cfg ListenerConfig) *Listener {
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Listener{
		queries:   queries,
		notifier:  n,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
	}
}

// Start relays events until ctx is done. Unsent rows left from a previous
// run are published first.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	notes := l.notifier.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-notes:
			if note == nil {
				// the connection was re-established; rows may have been missed
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.notifier.Close()
}

// handleNotification publishes the row whose id is the notification payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	row, err := l.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	if row.SentAt != nil {
		return nil
	}
	return l.relay(ctx, row)
}

func (l *Listener) processUnsent(ctx context.Context) error {
	unsent, err := l.queries.FetchUnsentOutbox(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	for _, row := range unsent {
		if err := l.relay(ctx, row); err != nil {
			log.Error().Err(err).Str("event_id", row.ID.String()).Msg("failed to relay event")
		}
	}
	return nil
}

func (l *Listener) relay(ctx context.Context, row db.OutboxEvent) error {
	start := time.Now()
	err := l.publishWithRetry(ctx, row)
	l.metrics.RecordEventProcessed(row.EventType, err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := l.queries.MarkOutboxSent(ctx, row.ID); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}

	log.Info().
		Str("event_id", row.ID.String()).
		Str("session_id", row.SessionID.String()).
		Str("event_type", row.EventType).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry waits RetryDelay times the attempt number between tries.
func (l *Listener) publishWithRetry(ctx context.Context, row db.OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := l.publisher.Publish(ctx, row)
		l.metrics.RecordPublishAttempt(row.EventType, attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", row.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", row.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
