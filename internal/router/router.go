package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gemini-relay/internal/handlers"
	"gemini-relay/internal/middleware"
	"gemini-relay/web"
)

func New(
	chatHandler *handlers.ChatHandler,
	allowedOrigins []string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	// Liveness and health
	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)

	// ──── Chat widget ────
	r.Get("/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/chat/", http.StatusMovedPermanently)
	})
	r.Handle("/chat/*", http.StripPrefix("/chat", web.Handler()))

	// ──── Relay API ────
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chatHandler.Generate)
		r.Delete("/sessions/{id}", chatHandler.EndSession)
	})

	return r
}
