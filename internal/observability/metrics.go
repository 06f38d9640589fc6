package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream source labels for API call metrics.
const (
	SourceMETAR    = "metar"
	SourceForecast = "forecast"
	SourceCurrent  = "current"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream weather API call rate per source. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream API latency per source. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts against the keyed current-weather API. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal prometheus.Counter

	// Circuit breaker opens for the forecast source. Watch for: sustained opens = upstream outage.
	BreakerOpenTotal prometheus.Counter

	// Cache hits per cache. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Stale values served after an upstream failure. Watch for: nonzero = degraded freshness.
	CacheStaleServesTotal *prometheus.CounterVec

	// Total station condition lookups. Watch for: traffic volume, rate() for QPS.
	StationQueriesTotal prometheus.Counter

	// Per-station query count (allow-list; others go to "other"). Watch for: top stations, traffic distribution.
	StationQueriesByStationTotal *prometheus.CounterVec

	// Departure window computations. Watch for: forecast traffic volume.
	WindowQueriesTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// trackedStations is built from config; used to resolve station for metrics.
	trackedStationsMu sync.RWMutex
	trackedStations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream weather API calls",
		},
		[]string{"source", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream weather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for current-weather API calls",
		},
	)
	BreakerOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "breakerOpenTotal",
			Help: "Times the forecast circuit breaker transitioned to open",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of fresh cache hits, per cache",
		},
		[]string{"cacheType"},
	)
	CacheStaleServesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStaleServesTotal",
			Help: "Expired cache entries served because the upstream fetch failed",
		},
		[]string{"cacheType"},
	)
	StationQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stationQueriesTotal",
			Help: "Total number of station condition lookups",
		},
	)
	StationQueriesByStationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationQueriesByStationTotal",
			Help: "Station condition lookups by station (allow-list; others use station=other)",
		},
		[]string{"station"},
	)
	WindowQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "windowQueriesTotal",
			Help: "Total number of departure window computations",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		BreakerOpenTotal,
		CacheHitsTotal, CacheStaleServesTotal,
		StationQueriesTotal, StationQueriesByStationTotal,
		WindowQueriesTotal,
		RateLimitDeniedTotal,
	)
}

// SetTrackedStations sets the allow-list for station metrics. Non-tracked stations increment "other".
func SetTrackedStations(stations []string) {
	trackedStationsMu.Lock()
	defer trackedStationsMu.Unlock()
	trackedStations = make(map[string]struct{}, len(stations))
	for _, s := range stations {
		trackedStations[normalizeStationForMetrics(s)] = struct{}{}
	}
}

// RecordStationQuery records a condition lookup for the given station.
func RecordStationQuery(station string) {
	StationQueriesTotal.Inc()
	s := normalizeStationForMetrics(station)
	trackedStationsMu.RLock()
	_, ok := trackedStations[s] // nil map read is safe in Go
	trackedStationsMu.RUnlock()
	if ok {
		StationQueriesByStationTotal.WithLabelValues(s).Inc()
	} else {
		StationQueriesByStationTotal.WithLabelValues("other").Inc()
	}
}

func normalizeStationForMetrics(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
