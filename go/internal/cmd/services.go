package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/config"
	"github.com/mcdev12/fantamarket/go/internal/market/appeal"
	"github.com/mcdev12/fantamarket/go/internal/market/auction"
	"github.com/mcdev12/fantamarket/go/internal/market/db"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/heartbeat"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/mcdev12/fantamarket/go/internal/market/nomination"
	"github.com/mcdev12/fantamarket/go/internal/market/session"
	"github.com/mcdev12/fantamarket/go/internal/market/turn"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"github.com/mcdev12/fantamarket/go/internal/sqlutil"
)

type Services struct {
	Auctions    *auction.Service
	Nominations *nomination.Service
	Appeals     *appeal.Service
	Sessions    *session.Service

	auctionApp *auction.App
	sessionApp *session.App
}

type dependencies struct {
	Store   db.Store
	Emitter events.Emitter
	Tracker heartbeat.Tracker
	Timers  auction.Scheduler
	Metrics metrics.Collector
	Clock   clockwork.Clock
	Rules   config.Rules
}

func setupServices(d dependencies) *Services {
	// Wire up dependency injection chain
	// Store → domain apps → connect services
	ledger := roster.NewLedger(d.Rules.Contract, d.Clock)
	turns := turn.NewApp(ledger)
	broadcaster := events.NewBroadcaster(d.Emitter, d.Clock)
	retry := sqlutil.DefaultRetryConfig()

	createRetry := sqlutil.DefaultRetryConfig()
	createRetry.MaxTries = d.Rules.SessionCreateRetries

	// Auctions
	auctionApp := auction.NewApp(auction.Deps{
		Store:   d.Store,
		Ledger:  ledger,
		Turns:   turns,
		Clock:   d.Clock,
		Events:  broadcaster,
		Timers:  d.Timers,
		Metrics: d.Metrics,
		Retry:   retry,
	})

	// Nominations
	nominationApp := nomination.NewApp(nomination.Deps{
		Store:           d.Store,
		Ledger:          ledger,
		Turns:           turns,
		Auctions:        auctionApp,
		Clock:           d.Clock,
		Events:          broadcaster,
		Retry:           retry,
		PlayerCacheSize: d.Rules.PlayerCacheSize,
	})

	// Appeals
	appealApp := appeal.NewApp(appeal.Deps{
		Store:    d.Store,
		Ledger:   ledger,
		Auctions: auctionApp,
		Clock:    d.Clock,
		Events:   broadcaster,
		Timers:   d.Timers,
		Metrics:  d.Metrics,
		Retry:    retry,
	})

	// Sessions
	sessionApp := session.NewApp(session.Deps{
		Store:        d.Store,
		Ledger:       ledger,
		Turns:        turns,
		Auctions:     auctionApp,
		Heartbeat:    heartbeat.NewApp(d.Tracker, d.Clock, d.Rules.Heartbeat.DisconnectThreshold),
		Clock:        d.Clock,
		Events:       broadcaster,
		Timers:       d.Timers,
		CreateRetry:  createRetry,
		Retry:        retry,
		TimerSeconds: d.Rules.AuctionTimerSeconds,
	})

	return &Services{
		Auctions:    auction.NewService(auctionApp),
		Nominations: nomination.NewService(nominationApp),
		Appeals:     appeal.NewService(appealApp),
		Sessions:    session.NewService(sessionApp),
		auctionApp:  auctionApp,
		sessionApp:  sessionApp,
	}
}
