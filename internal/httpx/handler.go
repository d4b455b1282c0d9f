// Package httpx is the HTTP surface of the backend: routing, request
// decoding and the JSON envelope the game client expects.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/sizzle-game/server/internal/auth"
	"github.com/sizzle-game/server/internal/handshake"
	"github.com/sizzle-game/server/internal/progress"
	"github.com/sizzle-game/server/internal/token"
)

// Handler holds the services the endpoints delegate to.
type Handler struct {
	accounts  *auth.Service
	handshake *handshake.Service
	progress  progress.Repository
	verifier  *token.Issuer
}

// NewHandler initializes the handler with its required services.
func NewHandler(accounts *auth.Service, hs *handshake.Service, progressRepo progress.Repository, verifier *token.Issuer) *Handler {
	return &Handler{
		accounts:  accounts,
		handshake: hs,
		progress:  progressRepo,
		verifier:  verifier,
	}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Server up"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}
