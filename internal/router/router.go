package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tenxcards-backend/internal/handlers"
	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/middleware"
	"tenxcards-backend/internal/websocket"
)

// HealthChecker reports whether a backing service is reachable.
type HealthChecker func(ctx context.Context) error

type Deps struct {
	JWTAuth           *middleware.JWTAuth
	AuthHandler       *handlers.AuthHandler
	GenerationHandler *handlers.GenerationHandler
	FlashcardHandler  *handlers.FlashcardHandler
	SourceHandler     *handlers.SourceHandler
	Hub               *websocket.Hub
	Health            map[string]HealthChecker
	FrontendURL       string
	Log               *logger.Logger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.FrontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Get("/health", healthHandler(d.Health))

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimiter.Middleware)
				r.Post("/register", d.AuthHandler.Register)
				r.Post("/login", d.AuthHandler.Login)
				r.Post("/refresh", d.AuthHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Post("/logout", d.AuthHandler.Logout)
				r.Get("/me", d.AuthHandler.Me)
			})
		})

		// ──── Generation Routes ────
		r.Route("/generations", func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)
			r.Post("/", d.GenerationHandler.Create)
			r.Get("/", d.GenerationHandler.List)
			r.Get("/{id}", d.GenerationHandler.Get)
		})

		// ──── Flashcard Routes ────
		r.Route("/flashcards", func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)
			r.Post("/", d.FlashcardHandler.Create)
			r.Get("/", d.FlashcardHandler.List)
			r.Get("/{id}", d.FlashcardHandler.Get)
			r.Put("/{id}", d.FlashcardHandler.Update)
			r.Delete("/{id}", d.FlashcardHandler.Delete)
		})

		// ──── Source Text Routes ────
		r.Route("/sources", func(r chi.Router) {
			r.Get("/supported-formats", d.SourceHandler.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Post("/extract", d.SourceHandler.Extract)
				r.Post("/youtube", d.SourceHandler.YouTube)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", d.Hub.HandleWebSocket)
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]interface{}{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(result)
	}
}
