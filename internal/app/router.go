// Package app wires configuration, middleware and routes into the HTTP
// handler the server binary runs.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandlens/brandlens/internal/adapter/httpserver"
	"github.com/brandlens/brandlens/internal/adapter/observability"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/domain"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces. Empty
// input allows every origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server, verifier domain.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Authenticated API. The fan-out endpoint gets a long handler timeout
	// because it waits on provider calls; an IP flood guard sits in front of
	// the per-user limiter inside the usecase.
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(cfg.RateLimitPerMinIP, 1*time.Minute))
		ar.Use(httpserver.BearerAuth(verifier))

		ar.With(httpserver.TimeoutMiddleware(cfg.HTTPWriteTimeout)).
			Post("/v1/queries", srv.QueriesHandler())
		ar.With(httpserver.TimeoutMiddleware(30 * time.Second)).
			Get("/v1/analytics/brands", srv.AnalyticsBrandsHandler())
		ar.With(httpserver.TimeoutMiddleware(30 * time.Second)).
			Get("/v1/analytics/competitive", srv.AnalyticsCompetitiveHandler())
	})

	r.Get("/healthz", httpserver.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
