package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/xannhsux/dsci560-hikebot/internal/api/middleware"
	"github.com/xannhsux/dsci560-hikebot/internal/config"
	"github.com/xannhsux/dsci560-hikebot/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil,
// in which case the rate limiter passes everything through.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, redisClient *redis.Client, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisClient, logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})
	r.Use(limiter.Middleware)

	// CORS - allow all origins (the gateway fronts the real clients)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-User-Name"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no identity required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/rooms", h.ListRooms)
	r.Get("/rooms/{roomID}", h.GetRoom)
	r.Get("/stats", h.Stats)
	r.Get("/find", h.Find)

	// Identity-required routes (gateway-injected headers)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Post("/rooms", h.CreateRoom)
		r.Get("/rooms/{roomID}/members", h.ListMembers)
		r.Get("/rooms/{roomID}/messages", h.History)
		r.Get("/rooms/{roomID}/messages/latest", h.LatestMessage)
		r.Post("/rooms/{roomID}/messages", h.PostMessage)
		r.Get("/rooms/{roomID}/ws", h.ServeWS)
	})

	return r
}
