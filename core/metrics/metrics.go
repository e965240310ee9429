// Package metrics exposes Prometheus instrumentation for the conversation
// engine. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swingbot"

// Cache results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheError  = "error"
	CacheSkip   = "skip"
	CacheStored = "stored"
)

// Recorder owns the engine collectors.
type Recorder struct {
	advanceTotal    *prometheus.CounterVec
	advanceDuration *prometheus.HistogramVec
	cacheTotal      *prometheus.CounterVec
	durableErrors   *prometheus.CounterVec
	sweptTotal      prometheus.Counter
	actionsTotal    *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		advanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advance_total",
				Help:      "Advance calls by scenario and outcome kind",
			},
			[]string{"scenario", "kind"},
		),
		advanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advance_duration_seconds",
				Help:      "Duration of Advance calls including lock wait",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "cache_total",
				Help:      "Cache tier operations by op and result",
			},
			[]string{"op", "result"}, // result: hit, miss, error, skip
		),
		durableErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "durable_errors_total",
				Help:      "Failed durable tier operations",
			},
			[]string{"op"},
		),
		sweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "swept_total",
				Help:      "Expired records removed by the sweeper",
			},
		),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "terminal_actions_total",
				Help:      "Terminal action invocations by scenario and status",
			},
			[]string{"scenario", "status"}, // status: ok, fail
		),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tg",
				Name:      "messages_sent_total",
				Help:      "Messages sent to users",
			},
			[]string{"keyboard"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.collectors()...)
	}
	return r
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.advanceTotal,
		r.advanceDuration,
		r.cacheTotal,
		r.durableErrors,
		r.sweptTotal,
		r.actionsTotal,
		r.messagesSent,
	}
}

// Advance records one Advance call.
func (r *Recorder) Advance(scenario, kind string, d time.Duration) {
	if r == nil {
		return
	}
	if scenario == "" {
		scenario = "none"
	}
	r.advanceTotal.WithLabelValues(scenario, kind).Inc()
	r.advanceDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Cache records a cache tier operation.
func (r *Recorder) Cache(op, result string) {
	if r == nil {
		return
	}
	r.cacheTotal.WithLabelValues(op, result).Inc()
}

// DurableError records a failed durable operation.
func (r *Recorder) DurableError(op string) {
	if r == nil {
		return
	}
	r.durableErrors.WithLabelValues(op).Inc()
}

// Swept records records removed by a sweep.
func (r *Recorder) Swept(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.sweptTotal.Add(float64(n))
}

// TerminalAction records a terminal action result.
func (r *Recorder) TerminalAction(scenario string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	r.actionsTotal.WithLabelValues(scenario, status).Inc()
}

// MessageSent records an outbound chat message.
func (r *Recorder) MessageSent(keyboard bool) {
	if r == nil {
		return
	}
	label := "false"
	if keyboard {
		label = "true"
	}
	r.messagesSent.WithLabelValues(label).Inc()
}
