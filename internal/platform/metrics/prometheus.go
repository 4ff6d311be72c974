package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager holds the storefront Prometheus collectors.
// A nil *MetricsManager is valid and records nothing.
type MetricsManager struct {
	Registry *prometheus.Registry

	FetchesTotal         *prometheus.CounterVec
	FetchLatency         *prometheus.HistogramVec
	FetchFailuresTotal   *prometheus.CounterVec
	StaleResponsesTotal  prometheus.Counter
	CartMutationsTotal   *prometheus.CounterVec
	FavoriteMutations    *prometheus.CounterVec
	PersistFailuresTotal *prometheus.CounterVec
	AlertsTriggeredTotal prometheus.Counter
	ActiveSessions       prometheus.Gauge
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestLatency   *prometheus.HistogramVec
	ProductCacheLookups  *prometheus.CounterVec
}

func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "product_fetches_total",
			Help:      "Product fetches issued by the query coordinator, by source.",
		}, []string{"source"}),
		FetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Name:      "product_fetch_latency_seconds",
			Help:      "Latency of product fetches by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "product_fetch_failures_total",
			Help:      "Failed product fetches by reason.",
		}, []string{"reason"}),
		StaleResponsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "stale_responses_discarded_total",
			Help:      "Fetch responses discarded because a newer request was issued.",
		}),
		CartMutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
		FavoriteMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "favorite_mutations_total",
			Help:      "Favorites mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		PersistFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "persist_failures_total",
			Help:      "Failed background writes of client state, by store.",
		}, []string{"store"}),
		AlertsTriggeredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "price_alerts_triggered_total",
			Help:      "Price alerts that reached their target.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Name:      "active_sessions",
			Help:      "Client sessions currently held in memory.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Name:      "http_request_latency_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ProductCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Name:      "product_cache_lookups_total",
			Help:      "Product query cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.FetchesTotal,
		m.FetchLatency,
		m.FetchFailuresTotal,
		m.StaleResponsesTotal,
		m.CartMutationsTotal,
		m.FavoriteMutations,
		m.PersistFailuresTotal,
		m.AlertsTriggeredTotal,
		m.ActiveSessions,
		m.HTTPRequestsTotal,
		m.HTTPRequestLatency,
		m.ProductCacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *MetricsManager) ObserveFetch(source string, started time.Time) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(source).Inc()
	m.FetchLatency.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func (m *MetricsManager) FetchFailed(reason string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *MetricsManager) StaleDiscarded() {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.Inc()
}

func (m *MetricsManager) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutationsTotal.WithLabelValues(op).Inc()
}

func (m *MetricsManager) FavoriteMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.FavoriteMutations.WithLabelValues(op, outcome).Inc()
}

func (m *MetricsManager) PersistFailed(store string) {
	if m == nil {
		return
	}
	m.PersistFailuresTotal.WithLabelValues(store).Inc()
}

func (m *MetricsManager) AlertTriggered() {
	if m == nil {
		return
	}
	m.AlertsTriggeredTotal.Inc()
}

func (m *MetricsManager) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *MetricsManager) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.ProductCacheLookups.WithLabelValues(result).Inc()
}

func (m *MetricsManager) ObserveHTTP(method, route string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestLatency.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsManager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
