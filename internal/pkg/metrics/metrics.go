// Package metrics holds the Prometheus collectors of the API-key gateway.
package metrics

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "eln"

// Validity cache lookup results.
const (
	CacheHitPositive = "hit_positive"
	CacheHitNegative = "hit_negative"
	CacheMiss        = "miss"
	CacheCorrupt     = "corrupt"
)

// AuthMetrics is safe to use as a nil pointer; every method is then a no-op.
type AuthMetrics struct {
	authTotal        *prometheus.CounterVec
	authDuration     prometheus.Histogram
	cacheTotal       *prometheus.CounterVec
	recordFailures   *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
	breakerState     *prometheus.GaugeVec
}

// NewAuthMetrics creates the collectors and registers them on reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "auth_total",
			Help:      "API key authentication decisions by outcome.",
		}, []string{"outcome"}),
		authDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "auth_duration_seconds",
			Help:      "Time spent in API key authentication.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "validity_cache_total",
			Help:      "Validity cache lookups by result.",
		}, []string{"result"}),
		recordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "usage_record_failures_total",
			Help:      "Usage recording failures by effect.",
		}, []string{"effect"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-key quota.",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "store_breaker_state",
			Help:      "Key store circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(m.authTotal, m.authDuration, m.cacheTotal, m.recordFailures, m.rateLimitedTotal, m.breakerState)
	}
	return m
}

func (m *AuthMetrics) ObserveAuth(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(outcome).Inc()
	m.authDuration.Observe(seconds)
}

func (m *AuthMetrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *AuthMetrics) RecordFailure(effect string) {
	if m == nil {
		return
	}
	m.recordFailures.WithLabelValues(effect).Inc()
}

func (m *AuthMetrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

func (m *AuthMetrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// AuthTotal exposes the outcome counter for tests.
func (m *AuthMetrics) AuthTotal() *prometheus.CounterVec { return m.authTotal }

// CacheTotal exposes the cache counter for tests.
func (m *AuthMetrics) CacheTotal() *prometheus.CounterVec { return m.cacheTotal }

// RecordFailures exposes the recorder failure counter for tests.
func (m *AuthMetrics) RecordFailures() *prometheus.CounterVec { return m.recordFailures }

// BreakerStates exposes the breaker gauge for tests.
func (m *AuthMetrics) BreakerStates() *prometheus.GaugeVec { return m.breakerState }

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProviderSet is the metrics providers.
var ProviderSet = wire.NewSet(
	NewRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	NewAuthMetrics,
)
