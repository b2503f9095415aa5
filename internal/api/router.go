package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/api/middleware"
	"github.com/viveksharma1514/UniVerse/internal/config"
	"github.com/viveksharma1514/UniVerse/internal/handlers"
	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting; disabled automatically when Redis is not configured
	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}
	limiter := middleware.NewRateLimiter(redisClient, logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})

	// CORS for the portal frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.With(limiter.Middleware).Get("/health", h.Health)

	// Authenticated routes. The limiter runs after RequireAuth so its
	// per-user keys see the resolved identity.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(limiter.Middleware)

		r.Get("/ws", h.ServeWS)

		r.Route("/api", func(r chi.Router) {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Get("/unread-count", h.UnreadCount)
				r.Patch("/mark-all-read", h.MarkAllNotificationsRead)
				r.Patch("/{id}/read", h.MarkNotificationRead)
				r.Delete("/{id}", h.DeleteNotification)

				r.With(middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)).
					Post("/", h.CreateNotification)
			})

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", h.ListConversations)
				r.Post("/", h.CreateConversation)
				r.Get("/{id}/messages", h.ListMessages)
				r.Post("/{id}/messages", h.SendMessage)
			})

			r.Get("/teachers/online", h.OnlineTeachers)
		})
	})

	return r
}
