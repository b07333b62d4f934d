package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Aditya1056/interact-backend/internal/api/middleware"
	"github.com/Aditya1056/interact-backend/internal/auth"
	"github.com/Aditya1056/interact-backend/internal/config"
	"github.com/Aditya1056/interact-backend/internal/crypto"
	"github.com/Aditya1056/interact-backend/internal/handlers"
	"github.com/Aditya1056/interact-backend/internal/realtime"
	"github.com/Aditya1056/interact-backend/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, ds store.DataStore, rdb *redis.Client, hub *realtime.Hub, cipher *crypto.Cipher, tokens *auth.TokenService) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (no-op when Redis is not configured)
	limiter := middleware.NewRateLimiter(rdb, logger, cfg.RateLimitWhitelist)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(ds, cipher, tokens, rdb, logger)
	authmw := middleware.NewAuthMiddleware(tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Avatar images
	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.ImagesDir))))

	// Realtime channel; userId is carried in the query, not the token
	r.Get("/ws", realtime.ServeWS(hub, logger))

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/avatars", h.GetAvatars)
		r.Get("/usernames", h.CheckUsernameAvailability)
		r.Post("/login", h.Login)
		r.Post("/signup", h.Signup)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth)

			r.Post("/", h.SearchUsers)
			r.Patch("/change-avatar", h.ChangeAvatar)
			r.Get("/{userId}", h.GetUser)
		})
	})

	r.Route("/api/chats", func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Get("/", h.GetChats)
		r.Get("/search", h.SearchChats)
		r.Post("/create", h.CreateChat)
		r.Post("/message", h.CreateMessage)
		r.Post("/add-user/{groupId}", h.AddUsersToGroup)
		r.Delete("/{groupId}", h.DeleteGroup)
		r.Delete("/{groupId}/{userId}", h.RemoveUserFromGroup)
		r.Get("/{chatId}", h.GetMessages)
	})

	r.NotFound(h.NotFoundRoute)

	return r
}
