package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Backing store
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec

	// Record cache
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec

	// Triage
	AlertsRaised  *prometheus.CounterVec
	AlertsHandled *prometheus.CounterVec
	PendingAlerts *prometheus.GaugeVec

	// HTTP
	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all application metrics on reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of backing store operations",
		}, []string{"operation", "status"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of backing store operations",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "breaker_open",
			Help:      "1 while the store circuit breaker is open",
		}, []string{"breaker"}),

		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Table reads served from cache",
		}, []string{"table"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Table reads that went to the backing store",
		}, []string{"table"}),
		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Global cache flushes by origin",
		}, []string{"origin"}),

		AlertsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "triage",
			Name:      "alerts_raised_total",
			Help:      "Reports classified into an actionable alert level",
		}, []string{"level"}),
		AlertsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "triage",
			Name:      "alerts_handled_total",
			Help:      "Alerts moved from pending to handled",
		}, []string{"level"}),
		PendingAlerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "triage",
			Name:      "pending_alerts",
			Help:      "Pending alerts seen by the last queue read",
		}, []string{"level"}),

		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) ObserveStore(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(op, status).Inc()
	m.StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

func (m *Metrics) CacheHit(table string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(table).Inc()
}

func (m *Metrics) CacheMiss(table string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(table).Inc()
}

func (m *Metrics) CacheFlushed(origin string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(origin).Inc()
}

func (m *Metrics) AlertRaised(level string) {
	if m == nil {
		return
	}
	m.AlertsRaised.WithLabelValues(level).Inc()
}

func (m *Metrics) AlertHandled(level string) {
	if m == nil {
		return
	}
	m.AlertsHandled.WithLabelValues(level).Inc()
}

func (m *Metrics) SetPending(level string, n int) {
	if m == nil {
		return
	}
	m.PendingAlerts.WithLabelValues(level).Set(float64(n))
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
