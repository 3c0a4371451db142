package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "click_lite_discover_"

// Query outcomes
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

var queriesCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "queries_total",
		Help: "Number of discover queries by outcome",
	},
	[]string{"status"},
)

var queryDurationHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    metricsPrefix + "query_duration_seconds",
		Help:    "Time taken to execute a discover query against ClickHouse",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

var cacheHitsCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "cache_hits_total",
		Help: "Number of discover queries answered from the result cache",
	},
)

var sessionsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metricsPrefix + "sessions_active",
		Help: "Number of connected discover sessions",
	},
)

type Metrics struct{}

var m = &Metrics{}

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordQuery(status string, duration time.Duration) {
	queriesCounter.WithLabelValues(status).Inc()
	if status == StatusOK {
		queryDurationHist.Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordCacheHit() {
	cacheHitsCounter.Inc()
}

func (m *Metrics) SessionOpened() {
	sessionsGauge.Inc()
}

func (m *Metrics) SessionClosed() {
	sessionsGauge.Dec()
}
