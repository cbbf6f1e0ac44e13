// Package metrics exposes Prometheus collectors for the indicator feed.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cascadeAttemptsTotal          *prometheus.CounterVec
	cascadeAttemptDuration        *prometheus.HistogramVec
	cascadeExhaustedTotal         prometheus.Counter
	cascadeBytesTotal             *prometheus.CounterVec
	readingsTotal                 *prometheus.CounterVec
	fetchCycleDuration            *prometheus.HistogramVec
	cacheLookupsTotal             *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cascadeAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_cascade_attempts_total",
				Help: "Total number of proxy attempts, labeled by proxy and outcome.",
			},
			[]string{"proxy", "outcome"},
		)

		cascadeAttemptDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feed_cascade_attempt_duration_seconds",
				Help:    "Histogram of proxy attempt latencies, labeled by proxy.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
			},
			[]string{"proxy"},
		)

		cascadeExhaustedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_cascade_exhausted_total",
				Help: "Total number of cascade calls that ran out of proxies.",
			},
		)

		cascadeBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_cascade_bytes_total",
				Help: "Total number of accepted payload bytes, labeled by site.",
			},
			[]string{"site"},
		)

		readingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_readings_total",
				Help: "Total number of readings produced, labeled by group and data source class.",
			},
			[]string{"group", "source"},
		)

		fetchCycleDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feed_fetch_cycle_duration_seconds",
				Help:    "Histogram of full fan-out durations, labeled by group.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"group"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_cache_lookups_total",
				Help: "Total number of cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feed_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveCascadeAttempt records one proxy attempt.
func ObserveCascadeAttempt(proxy, outcome string, duration time.Duration) {
	Init()
	cascadeAttemptsTotal.WithLabelValues(proxy, outcome).Inc()
	cascadeAttemptDuration.WithLabelValues(proxy).Observe(duration.Seconds())
}

// ObserveCascadeExhausted increments the exhausted counter.
func ObserveCascadeExhausted() {
	Init()
	cascadeExhaustedTotal.Inc()
}

// ObservePayload adds accepted payload bytes for the target site.
func ObservePayload(target string, bytesFetched int) {
	if bytesFetched <= 0 {
		return
	}
	Init()
	cascadeBytesTotal.WithLabelValues(SanitizeSite(target)).Add(float64(bytesFetched))
}

// ObserveReading counts one reading by group and provenance. Real readings share
// the "real" source label.
func ObserveReading(group, dataSource string, isReal bool) {
	Init()
	source := dataSource
	if isReal {
		source = "real"
	}
	readingsTotal.WithLabelValues(group, source).Inc()
}

// ObserveFetchCycle records the duration of one full fan-out.
func ObserveFetchCycle(group string, duration time.Duration) {
	Init()
	fetchCycleDuration.WithLabelValues(group).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
