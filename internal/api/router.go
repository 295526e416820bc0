package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
	"github.com/hughes7370/fundconnectv3-sub001/internal/handlers"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, ds store.DataStore, redisStore *store.RedisStore, sessions session.Store) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.StorageMaxBytes + 64*1024))
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (no-op when Redis is not configured)
	limiter := middleware.NewRateLimiter(redisStore, logger)
	r.Use(limiter.Middleware)

	// CORS - browser clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(ds, sessions)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Get("/auth/verify", h.Verify)
	r.Get("/api/storage/check", h.StorageCheck)
	r.Get("/funds", h.ListFunds)
	r.Get("/funds/{fundID}", h.GetFund)
	r.Get("/funds/{fundID}/documents", h.ListFundDocuments)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/session", h.Session)
		r.Post("/auth/resend-verification", h.ResendVerification)

		r.Post("/conversations", h.ResolveConversation)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{conversationID}/messages", h.ListMessages)
		r.Post("/conversations/{conversationID}/messages", h.SendMessage)
		r.Get("/ws/notifications", h.StreamNotifications)

		// Agent-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAgent))

			r.Post("/funds", h.CreateFund)
			r.Delete("/funds/{fundID}", h.DeleteFund)
			r.Post("/funds/{fundID}/documents", h.UploadFundDocument)
			r.Delete("/funds/{fundID}/documents/{documentID}", h.DeleteFundDocument)
			r.Get("/interests/received", h.ListReceivedInterests)
		})

		// Investor-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleInvestor))

			r.Post("/interests", h.ExpressInterest)
			r.Delete("/interests/{interestID}", h.WithdrawInterest)
			r.Get("/interests", h.ListMyInterests)
		})
	})

	return r
}
