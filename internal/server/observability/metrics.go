// Package observability содержит Prometheus-метрики сервера
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthOperationsTotal *prometheus.CounterVec
	CaptchaIssuedTotal  prometheus.Counter
	RateLimitRejections prometheus.Counter
	SweepRemovedTotal   *prometheus.CounterVec
	SweepFailuresTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics in registry.
// Go runtime and process collectors are registered as well
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mooday_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mooday_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mooday_auth_operations_total",
				Help: "Total number of auth operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		CaptchaIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mooday_captcha_issued_total",
				Help: "Total number of issued captcha challenges",
			},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mooday_ratelimit_rejections_total",
				Help: "Total number of captcha requests rejected by the rate limiter",
			},
		),
		SweepRemovedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mooday_sweep_removed_total",
				Help: "Total number of expired entries removed by background sweeps",
			},
			[]string{"store"},
		),
		SweepFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mooday_sweep_failures_total",
				Help: "Total number of failed background sweeps",
			},
			[]string{"store"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.CaptchaIssuedTotal,
		m.RateLimitRejections,
		m.SweepRemovedTotal,
		m.SweepFailuresTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// AuthOperation учитывает результат операции аутентификации.
// outcome - "success" или вид ошибки
func (m *Metrics) AuthOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// CaptchaIssued учитывает выданную капчу
func (m *Metrics) CaptchaIssued() {
	if m == nil {
		return
	}
	m.CaptchaIssuedTotal.Inc()
}

// RateLimited учитывает отказ лимитера
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

// Swept учитывает результат фоновой очистки хранилища store
func (m *Metrics) Swept(store string, removed int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepFailuresTotal.WithLabelValues(store).Inc()
		return
	}
	m.SweepRemovedTotal.WithLabelValues(store).Add(float64(removed))
}

// Handler возвращает HTTP handler для /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Маршрут берется из шаблона ServeMux, чтобы не плодить метки
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
