package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter registers all routes with the shared middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/google/start", h.GoogleStart)
		r.Get("/google/callback", h.GoogleCallback)
		r.Get("/google/tx/{state}", h.GoogleStatus)
	})

	r.Route("/password", func(r chi.Router) {
		r.Post("/forgot", h.ForgotPassword)
		r.Get("/reset/{token}", h.ResetPasswordForm)
		r.Post("/reset", h.ResetPassword)
	})

	r.Route("/progress", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/{userID}", h.SaveProgress)
		r.Get("/{userID}", h.LoadProgress)
	})

	return r
}
