package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/config"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/gateway"
	"github.com/mcdev12/fantamarket/go/internal/market/heartbeat"
	"github.com/mcdev12/fantamarket/go/internal/market/memdb"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/mcdev12/fantamarket/go/internal/market/outbox"
	"github.com/mcdev12/fantamarket/go/internal/market/session"
	"github.com/mcdev12/fantamarket/go/internal/market/timer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the market RPC server, auction timers and event gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), s)
		},
	}
}

// sessionPresence lets the connection manager record heartbeats through the
// session app, which is built after the manager it emits to.
type sessionPresence struct {
	app *session.App
}

func (p *sessionPresence) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID) error {
	return p.app.Heartbeat(ctx, sessionID, memberID)
}

func openStore(ctx context.Context, s settings) (db.Store, *sql.DB, error) {
	if s.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory store, state is lost on restart")
		return memdb.New(), nil, nil
	}
	database, err := setupDatabase(ctx, s.DB)
	if err != nil {
		return nil, nil, err
	}
	return db.NewSQLStore(database), database, nil
}

func openTracker(ctx context.Context, s settings, clock clockwork.Clock) (heartbeat.Tracker, func() error, healthCheck, error) {
	if s.Redis.Addr == "" {
		return heartbeat.NewMemoryTracker(clock), func() error { return nil }, nil, nil
	}
	rdb, err := heartbeat.NewRedisClient(ctx, heartbeat.ClientConfig{
		Addr:       s.Redis.Addr,
		Password:   s.Redis.Password,
		DB:         s.Redis.DB,
		PoolSize:   s.Redis.PoolSize,
		TLSEnabled: s.Redis.TLS,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("addr", s.Redis.Addr).Msg("heartbeats tracked in redis")

	// keys outlive the threshold so a member reads as disconnected before expiry
	ttl := 4 * s.Rules.Heartbeat.DisconnectThreshold
	check := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	return heartbeat.NewRedisTracker(rdb, ttl, clock.Now), rdb.Close, check, nil
}

func serve(ctx context.Context, s settings) error {
	clock := clockwork.NewRealClock()
	prom := metrics.NewPrometheus()
	timers := timer.NewOrchestrator(clock, s.TimerWorkers, prom)
	checks := map[string]healthCheck{}

	store, database, err := openStore(ctx, s)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		checks["postgres"] = database.PingContext
	}

	tracker, closeTracker, trackerCheck, err := openTracker(ctx, s, clock)
	if err != nil {
		return err
	}
	defer closeTracker()
	if trackerCheck != nil {
		checks["redis"] = trackerCheck
	}

	presence := &sessionPresence{}
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), presence)

	// Postgres with NATS relays events through the outbox; otherwise they
	// go straight to the local websocket clients.
	relay := database != nil && s.NATSURL != ""
	var emitter events.Emitter = connections
	if relay {
		emitter = outbox.NewEmitter(store)
	}

	services := setupServices(dependencies{
		Store:   store,
		Emitter: emitter,
		Tracker: tracker,
		Timers:  timers,
		Metrics: prom,
		Clock:   clock,
		Rules:   s.Rules,
	})
	presence.app = services.sessionApp
	timers.SetResolver(services.auctionApp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return timers.Run(gctx) })
	g.Go(func() error { return connections.Start(gctx) })

	if relay {
		pubCfg := outbox.DefaultJetStreamConfig()
		pubCfg.URL = s.NATSURL
		publisher, err := outbox.NewJetStreamPublisher(ctx, pubCfg)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		defer publisher.Close()
		checks["nats"] = func(context.Context) error { return publisher.Healthy() }

		listenerCfg := outbox.DefaultListenerConfig()
		listenerCfg.DatabaseURL = s.DB.DSN()
		listener, err := outbox.NewListener(store, publisher, prom, listenerCfg)
		if err != nil {
			return fmt.Errorf("failed to create outbox listener: %w", err)
		}

		consumerCfg := gateway.DefaultJetStreamConsumerConfig()
		consumerCfg.URL = s.NATSURL
		consumer, err := gateway.NewEventConsumer(ctx, connections, consumerCfg)
		if err != nil {
			_ = listener.Stop()
			return fmt.Errorf("failed to create event consumer: %w", err)
		}

		g.Go(func() error { return listener.Start(gctx) })
		g.Go(func() error { return consumer.Start(gctx) })
	}

	g.Go(func() error {
		if err := services.auctionApp.Recover(gctx); err != nil {
			return fmt.Errorf("failed to recover auction timers: %w", err)
		}
		return nil
	})

	server := setupServer(serverConfig{
		Port:           s.Port,
		AllowedOrigins: s.AllowedOrigins,
		Metrics:        prom.Handler(),
		Checks:         checks,
	}, services, gateway.NewWebSocketHandler(connections))

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Bool("relay", relay).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}
