package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sizzle-game/server/internal/auth"
)

// Register creates a local account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, tok, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var vErr *auth.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, auth.ErrDuplicateAccount):
			writeError(w, http.StatusConflict, "email or username already exists")
		default:
			slog.ErrorContext(r.Context(), "register failed", "error", err)
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{OK: true, User: u.Public(), Token: tok})
}

// Login authenticates by email or username.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, tok, err := h.accounts.Login(r.Context(), req.EmailOrUser, req.Password)
	if err != nil {
		var vErr *auth.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			slog.ErrorContext(r.Context(), "login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{OK: true, User: u.Public(), Token: tok})
}
