package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	httpmiddleware "github.com/wolfman30/grooming-booking/internal/http/middleware"
	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BookingsHandler    *bookings.Handler
	PricesHandler      *pricing.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Applied to the two booking-creation endpoints only.
	RateLimiter *httpmiddleware.RateLimiter

	// Named dependency checks served on /ready.
	ReadinessChecks map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.BookingsHandler == nil {
		panic("router: bookings handler required")
	}
	prices := cfg.PricesHandler
	if prices == nil {
		prices = pricing.NewHandler(nil, cfg.Logger)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	create := func(h http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return h
		}
		return httpmiddleware.RateLimit(cfg.RateLimiter)(h)
	}

	r.Get("/health", health)
	r.Get("/ready", readiness(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/grooming", func(api chi.Router) {
		api.Get("/prices", prices.GetPrices)
		api.Method(http.MethodPost, "/bookings", create(cfg.BookingsHandler.CreateBooking))
		api.Get("/bookings/{bookingNumber}", cfg.BookingsHandler.GetBooking)
		api.Get("/users/{userID}/bookings", cfg.BookingsHandler.ListUserBookings)
	})

	r.Route("/api/agent/tools", func(tools chi.Router) {
		tools.Method(http.MethodPost, "/book-grooming", create(cfg.BookingsHandler.BookGroomingTool))
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(checks map[string]ReadinessCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
