package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Nippo server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics.
	LoginSuccessesTotal prometheus.Counter
	LoginFailuresTotal  *prometheus.CounterVec
	SessionTimeoutsTotal prometheus.Counter

	// Guard metrics.
	RateLimitRejectionsTotal *prometheus.CounterVec
	CSRFRejectionsTotal      prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nippo_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nippo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		LoginSuccessesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nippo_login_successes_total",
			Help: "Total number of successful logins.",
		}),

		LoginFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nippo_login_failures_total",
			Help: "Total number of failed login attempts.",
		}, []string{"reason"}),

		SessionTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nippo_session_timeouts_total",
			Help: "Total number of sessions destroyed by inactivity timeout.",
		}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nippo_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"limiter_type"}),

		CSRFRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nippo_csrf_rejections_total",
			Help: "Total number of requests rejected by CSRF protection.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nippo_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginSuccessesTotal,
		m.LoginFailuresTotal,
		m.SessionTimeoutsTotal,
		m.RateLimitRejectionsTotal,
		m.CSRFRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncLoginFailure increments the login failure counter for the given reason.
func (m *Metrics) IncLoginFailure(reason string) {
	m.LoginFailuresTotal.WithLabelValues(reason).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(limiterType string) {
	m.RateLimitRejectionsTotal.WithLabelValues(limiterType).Inc()
}
