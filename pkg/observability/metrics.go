package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics exposed by the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	ProviderCallsTotal    *prometheus.CounterVec
	ProviderCallDuration  *prometheus.HistogramVec
	CycleResolutionsTotal *prometheus.CounterVec

	// Usage metrics
	UsageEventsTotal     prometheus.Counter
	WordsRecordedTotal   prometheus.Counter
	QuotaRejectionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orato_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orato_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orato_provider_calls_total",
				Help: "Total number of subscription provider lookups",
			},
			[]string{"provider", "outcome"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orato_provider_call_duration_seconds",
				Help:    "Subscription provider lookup duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		CycleResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orato_cycle_resolutions_total",
				Help: "Total number of billing cycle resolutions",
			},
			[]string{"source", "degraded"},
		),

		UsageEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orato_usage_events_total",
				Help: "Total number of word usage events recorded",
			},
		),
		WordsRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orato_words_recorded_total",
				Help: "Total number of words recorded across all usage events",
			},
		),
		QuotaRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orato_quota_rejections_total",
				Help: "Total number of requests rejected by word quota enforcement",
			},
			[]string{"plan"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orato_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orato_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orato_db_connections_wait_count",
				Help: "Cumulative count of waits for a database connection",
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ProviderCallsTotal,
		m.ProviderCallDuration,
		m.CycleResolutionsTotal,
		m.UsageEventsTotal,
		m.WordsRecordedTotal,
		m.QuotaRejectionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveProviderCall records one provider lookup with its outcome
// ("ok", "not_found", "unavailable").
func (m *Metrics) ObserveProviderCall(provider, outcome string, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveCycleResolution records one billing cycle resolution.
func (m *Metrics) ObserveCycleResolution(source string, degraded bool) {
	m.CycleResolutionsTotal.WithLabelValues(source, strconv.FormatBool(degraded)).Inc()
}

// ObserveUsageEvent records one persisted usage event.
func (m *Metrics) ObserveUsageEvent(words int64) {
	m.UsageEventsTotal.Inc()
	m.WordsRecordedTotal.Add(float64(words))
}

// ObserveQuotaRejection records one request rejected by quota enforcement.
func (m *Metrics) ObserveQuotaRejection(plan string) {
	m.QuotaRejectionsTotal.WithLabelValues(plan).Inc()
}
