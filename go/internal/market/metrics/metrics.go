// Package metrics records engine and outbox activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for collecting market metrics
type Collector interface {
	RecordBid(accepted bool, code string, duration time.Duration)
	RecordResolution(outcome, trigger string)
	RecordAppeal(decision string)
	RecordRectification()
	RecordTimerFire()
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordBid(bool, string, time.Duration)            {}
func (NoOp) RecordResolution(string, string)                  {}
func (NoOp) RecordAppeal(string)                              {}
func (NoOp) RecordRectification()                             {}
func (NoOp) RecordTimerFire()                                 {}
func (NoOp) RecordEventProcessed(string, bool, time.Duration) {}
func (NoOp) RecordPublishAttempt(string, int, bool)           {}

// Prometheus implements Collector with a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	bids            *prometheus.CounterVec
	bidDuration     prometheus.Histogram
	resolutions     *prometheus.CounterVec
	appeals         *prometheus.CounterVec
	rectifications  prometheus.Counter
	timerFires      prometheus.Counter
	eventsProcessed *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	publishAttempts *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "bids_total",
			Help:      "Bids by result and rejection code.",
		}, []string{"result", "code"}),
		bidDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fantamarket",
			Name:      "bid_duration_seconds",
			Help:      "Time to validate and record a bid.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "auction_resolutions_total",
			Help:      "Auction resolutions by outcome and trigger.",
		}, []string{"outcome", "trigger"}),
		appeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "appeals_total",
			Help:      "Appeals by decision.",
		}, []string{"decision"}),
		rectifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "rectifications_total",
			Help:      "Administrative rectifications.",
		}),
		timerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "auction_timer_fires_total",
			Help:      "Auction countdown timers that fired.",
		}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "outbox_events_processed_total",
			Help:      "Outbox events published.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fantamarket",
			Name:      "outbox_publish_duration_seconds",
			Help:      "Outbox publish latency.",
		}, []string{"event_type"}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fantamarket",
			Name:      "outbox_publish_attempts_total",
			Help:      "Outbox publish attempts.",
		}, []string{"event_type", "status"}),
	}
	m.registry.MustRegister(
		m.bids, m.bidDuration, m.resolutions, m.appeals, m.rectifications,
		m.timerFires, m.eventsProcessed, m.eventDuration, m.publishAttempts,
	)
	return m
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Prometheus) RecordBid(accepted bool, code string, duration time.Duration) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.bids.WithLabelValues(result, code).Inc()
	m.bidDuration.Observe(duration.Seconds())
}

func (m *Prometheus) RecordResolution(outcome, trigger string) {
	m.resolutions.WithLabelValues(outcome, trigger).Inc()
}

func (m *Prometheus) RecordAppeal(decision string) {
	m.appeals.WithLabelValues(decision).Inc()
}

func (m *Prometheus) RecordRectification() {
	m.rectifications.Inc()
}

func (m *Prometheus) RecordTimerFire() {
	m.timerFires.Inc()
}

func (m *Prometheus) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.eventsProcessed.WithLabelValues(eventType, status(success)).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *Prometheus) RecordPublishAttempt(eventType string, _ int, success bool) {
	m.publishAttempts.WithLabelValues(eventType, status(success)).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
