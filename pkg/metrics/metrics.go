// Package metrics holds the Prometheus collectors for the MTOP client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles collectors on a dedicated registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	RestartsTotal   *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
	CookieSaves     *prometheus.CounterVec
	SessionActive   prometheus.Gauge
	CaptchaFailures prometheus.Gauge
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtop_requests_total",
			Help: "MTOP requests by classified outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mtop_request_duration_seconds",
			Help:    "Latency of a single MTOP HTTP exchange.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mtop_retries_total",
			Help: "Retry attempts scheduled by the client.",
		},
	)
	restarts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtop_session_restarts_total",
			Help: "Browser session restarts by reason.",
		},
		[]string{"reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtop_errors_total",
			Help: "Errors surfaced to callers by kind.",
		},
		[]string{"kind"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mtop_cache_hits_total",
			Help: "Product fetches served from the response cache.",
		},
	)
	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtop_cookie_saves_total",
			Help: "Cookie store writes by result.",
		},
		[]string{"result"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtop_session_active",
			Help: "1 while a browser session is running.",
		},
	)
	captcha := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtop_captcha_failures",
			Help: "Current consecutive CAPTCHA failure count.",
		},
	)

	registry.MustRegister(requests, duration, retries, restarts, errorsTotal, cacheHits, saves, active, captcha)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: duration,
		RetriesTotal:    retries,
		RestartsTotal:   restarts,
		ErrorsTotal:     errorsTotal,
		CacheHitsTotal:  cacheHits,
		CookieSaves:     saves,
		SessionActive:   active,
		CaptchaFailures: captcha,
	}
}

func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncRestart(reason string) {
	if m == nil {
		return
	}
	m.RestartsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncCookieSave records a cookie store write; ok=false counts a failed write.
func (m *Metrics) IncCookieSave(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CookieSaves.WithLabelValues(result).Inc()
}

// SetSession publishes the session gauges.
func (m *Metrics) SetSession(active bool, captchaFailures int) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.SessionActive.Set(v)
	m.CaptchaFailures.Set(float64(captchaFailures))
}
