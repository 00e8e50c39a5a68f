package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nippolabs/nippo/internal/metrics"
	"github.com/nippolabs/nippo/internal/ratelimit"
	"github.com/nippolabs/nippo/internal/session"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users    UserDirectory
	Reports  ReportLister
	Sessions *session.Manager
	CSRF     *session.Guard
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(httpMetrics(deps.Metrics))
	}
	r.Use(gatekeeper(deps.Sessions.CookieName(), func() {
		if deps.Metrics != nil {
			deps.Metrics.CSRFRejectionsTotal.Inc()
		}
	}))

	// Handlers.
	auth := newAuthHandler(deps.Users, deps.Sessions, deps.CSRF, deps.Limiter, deps.Metrics)
	reports := newReportsHandler(deps.Users, deps.Reports, deps.Sessions)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics: JSON summary plus Prometheus exposition.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.SummaryHandler())
		r.Handle("/metrics/prometheus", promhttp.HandlerFor(
			deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Auth endpoints. Login and logout are CSRF-exempt by design.
	r.Post("/api/auth/login", auth.Login)
	r.Post("/api/auth/logout", auth.Logout)
	r.Get("/api/auth/me", auth.Me)
	r.Get("/api/csrf-token", auth.CSRFToken)

	// Report endpoints: general API rate limit plus the strict CSRF layer
	// for any unsafe method added here later.
	r.Route("/api/daily-reports", func(rr chi.Router) {
		rr.Use(apiRateLimit(deps.Limiter, deps.Metrics))
		rr.Use(requireCSRF(deps.Sessions, deps.CSRF, func() {
			if deps.Metrics != nil {
				deps.Metrics.CSRFRejectionsTotal.Inc()
			}
		}))

		rr.Get("/", reports.List)
	})

	return r
}

// apiRateLimit applies the general per-IP API limit.
func apiRateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.AllowAPI(ratelimit.ClientIP(r)) {
				if m != nil {
					m.IncRateLimitRejection("api")
				}
				writeError(w, http.StatusTooManyRequests, CodeRateLimited,
					"rate limit exceeded, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
		)
	})
}

// httpMetrics records request counts and latency per chi route pattern.
func httpMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(
				r.Method, pattern, fmt.Sprintf("%d", ww.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(
				r.Method, pattern).Observe(time.Since(start).Seconds())
		})
	}
}
