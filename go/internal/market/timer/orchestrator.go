// Package timer runs one countdown per live auction and asks a Resolver to
// settle the auction when it fires. Read-time resolution remains the fallback
// for timers lost to a restart or a full work queue.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fantamarket/go/internal/market/metrics"
	"github.com/rs/zerolog/log"
)

// Resolver settles an auction whose countdown has run out. It reports false
// when the auction was not due, e.g. because a bid moved the deadline.
type Resolver interface {
	ResolveExpired(ctx context.Context, auctionID uuid.UUID) (bool, error)
}

type entry struct {
	timer    clockwork.Timer
	deadline time.Time
	stop     chan struct{}
}

type Orchestrator struct {
	clock      clockwork.Clock
	metrics    metrics.Collector
	instanceID string

	resolverMu sync.RWMutex
	resolver   Resolver

	// Worker pool configuration
	numWorkers int
	workCh     chan uuid.UUID

	activeTimers   map[uuid.UUID]*entry
	activeTimersMu sync.Mutex

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func NewOrchestrator(clock clockwork.Clock, numWorkers int, m metrics.Collector) *Orchestrator {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Orchestrator{
		clock:        clock,
		metrics:      m,
		instanceID:   uuid.New().String()[:8],
		numWorkers:   numWorkers,
		workCh:       make(chan uuid.UUID, numWorkers*16),
		activeTimers: make(map[uuid.UUID]*entry),
		inFlight:     make(map[uuid.UUID]bool),
	}
}

// SetResolver wires the component that settles fired auctions.
func (o *Orchestrator) SetResolver(r Resolver) {
	o.resolverMu.Lock()
	defer o.resolverMu.Unlock()
	o.resolver = r
}

// Schedule (re)arms the countdown of an auction. A deadline in the past
// enqueues the auction immediately.
func (o *Orchestrator) Schedule(auctionID uuid.UUID, deadline time.Time) {
	duration := deadline.Sub(o.clock.Now())
	if duration <= 0 {
		o.cancel(auctionID)
		o.enqueue(auctionID)
		return
	}

	e := &entry{
		timer:    o.clock.NewTimer(duration),
		deadline: deadline,
		stop:     make(chan struct{}),
	}
	o.replaceTimer(auctionID, e)

	go func(id uuid.UUID, e *entry) {
		select {
		case <-e.timer.Chan():
			if !o.removeTimer(id, e) {
				return
			}
			o.metrics.RecordTimerFire()
			o.enqueue(id)
		case <-e.stop:
		}
	}(auctionID, e)

	log.Debug().
		Str("auction_id", auctionID.String()).
		Time("deadline", deadline).
		Dur("duration", duration).
		Msg("scheduled auction timer")
}

// Cancel disarms the countdown of an auction, if any.
func (o *Orchestrator) Cancel(auctionID uuid.UUID) {
	if o.cancel(auctionID) {
		log.Debug().Str("auction_id", auctionID.String()).Msg("cancelled auction timer")
	}
}

// Deadline returns the armed deadline of an auction.
func (o *Orchestrator) Deadline(auctionID uuid.UUID) (time.Time, bool) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	e, ok := o.activeTimers[auctionID]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Pending returns the number of armed timers.
func (o *Orchestrator) Pending() int {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	return len(o.activeTimers)
}

// Run starts the worker pool and blocks until ctx is done, then disarms all
// timers.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("auction timer orchestrator started")

	var wg sync.WaitGroup
	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")
	wg.Wait()

	o.activeTimersMu.Lock()
	for id, e := range o.activeTimers {
		stopAndDrainTimer(e)
		delete(o.activeTimers, id)
	}
	o.activeTimersMu.Unlock()

	log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	return nil
}

func (o *Orchestrator) enqueue(id uuid.UUID) {
	select {
	case o.workCh <- id:
		log.Debug().Str("auction_id", id.String()).Msg("timer fired - enqueued for resolution")
	default:
		log.Warn().Str("auction_id", id.String()).Msg("timer fired but work channel full")
	}
}

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-o.workCh:
			o.handle(ctx, id, workerID)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, id uuid.UUID, workerID int) {
	o.inFlightMu.Lock()
	if o.inFlight[id] {
		o.inFlightMu.Unlock()
		return
	}
	o.inFlight[id] = true
	o.inFlightMu.Unlock()
	defer func() {
		o.inFlightMu.Lock()
		delete(o.inFlight, id)
		o.inFlightMu.Unlock()
	}()

	o.resolverMu.RLock()
	r := o.resolver
	o.resolverMu.RUnlock()
	if r == nil {
		log.Warn().Str("auction_id", id.String()).Msg("no resolver configured, leaving auction to read-time resolution")
		return
	}

	resolved, err := r.ResolveExpired(ctx, id)
	if err != nil {
		log.Error().
			Err(err).
			Str("auction_id", id.String()).
			Str("instance", o.instanceID).
			Int("worker_id", workerID).
			Msg("timer resolution failed")
		return
	}
	log.Info().
		Str("auction_id", id.String()).
		Bool("resolved", resolved).
		Int("worker_id", workerID).
		Msg("worker handled auction timer")
}

// replaceTimer stores e, disarming any timer it replaces.
func (o *Orchestrator) replaceTimer(id uuid.UUID, e *entry) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	if existing, ok := o.activeTimers[id]; ok {
		stopAndDrainTimer(existing)
	}
	o.activeTimers[id] = e
}

func (o *Orchestrator) cancel(id uuid.UUID) bool {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	e, ok := o.activeTimers[id]
	if !ok {
		return false
	}
	stopAndDrainTimer(e)
	delete(o.activeTimers, id)
	return true
}

// removeTimer drops a fired timer unless it has already been replaced.
func (o *Orchestrator) removeTimer(id uuid.UUID, e *entry) bool {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	if o.activeTimers[id] != e {
		return false
	}
	delete(o.activeTimers, id)
	return true
}

// stopAndDrainTimer stops the timer and releases its waiting goroutine.
func stopAndDrainTimer(e *entry) {
	if !e.timer.Stop() {
		select {
		case <-e.timer.Chan():
		default:
		}
	}
	close(e.stop)
}
