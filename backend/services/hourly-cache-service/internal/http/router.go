package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ac360/backend/services/hourly-cache-service/internal/http/middleware"
)

// Routes groups handlers.
type Routes struct {
	Recalculate    http.HandlerFunc
	SessionWritten http.HandlerFunc
	HourlyTotals   http.HandlerFunc
	LiveFeed       http.HandlerFunc
	Health         http.HandlerFunc
}

// RouterOptions configures the internal route group.
type RouterOptions struct {
	JWTSecret          string
	RateLimitPerMinute int
}

// NewRouter registers endpoints.
func NewRouter(routes Routes, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	if routes.Health != nil {
		r.Get("/health", routes.Health)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if routes.HourlyTotals != nil {
		r.Get("/hourly-totals", routes.HourlyTotals)
	}
	if routes.LiveFeed != nil {
		r.Get("/ws/hourly-totals", routes.LiveFeed)
	}

	r.Route("/internal", func(r chi.Router) {
		if opts.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
		}
		r.Use(middleware.ServiceAuth(opts.JWTSecret))
		if routes.SessionWritten != nil {
			r.Post("/sessions/written", routes.SessionWritten)
		}
		if routes.Recalculate != nil {
			r.Post("/machines/{serial}/hourly-totals/recalculate", routes.Recalculate)
		}
	})
	return r
}
