// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the service-level collectors. A nil *Collectors is valid
// and records nothing.
type Collectors struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	fetchesTotal               *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	artifactUploadsTotal       *prometheus.CounterVec
}

// New registers the collectors against reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total number of page and sitemap fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		rateLimitDelaySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		),
		artifactUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_artifact_uploads_total",
				Help: "Spreadsheet uploads, labeled by backend and status.",
			},
			[]string{"backend", "status"},
		),
	}
	for _, collector := range []prometheus.Collector{
		c.httpRequestsTotal,
		c.httpRequestDurationSeconds,
		c.fetchesTotal,
		c.rateLimitDelaySeconds,
		c.artifactUploadsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
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

// Handler returns an http.Handler exposing g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch counts a fetch of rawURL. status is "ok" or "error".
func (c *Collectors) ObserveFetch(rawURL, status string) {
	if c == nil {
		return
	}
	c.fetchesTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func (c *Collectors) ObserveRateLimitDelay(site string, duration time.Duration) {
	if c == nil {
		return
	}
	c.rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveUpload counts an artifact upload attempt against backend.
func (c *Collectors) ObserveUpload(backend string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.artifactUploadsTotal.WithLabelValues(backend, status).Inc()
}
