package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizzle-game/server/internal/handshake"
)

// callbackAckHTML is the minimal page shown in the user's browser after the
// provider callback; the game client learns the outcome by polling.
const callbackAckHTML = `<html><body><p>Google sign-in complete. You can return to the game.</p></body></html>`

// GoogleStart opens a handshake and redirects the user agent to Google. The
// game client may supply its own correlation key via the state query
// parameter; short keys are rejected.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	authURL, _, err := h.handshake.Begin(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		if errors.Is(err, handshake.ErrWeakKey) {
			writeError(w, http.StatusBadRequest, "state too short")
			return
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GoogleCallback is the provider's redirect target. The response is for the
// user's browser only; no OAuth details are ever included.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if err := h.handshake.Resolve(r.Context(), code, state); err != nil {
		if errors.Is(err, handshake.ErrBadRequest) {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		http.Error(w, "Google auth failed", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(callbackAckHTML))
}

// GoogleStatus serves the polling endpoint: the transaction record as JSON,
// with unknown and expired keys masked as pending.
func (h *Handler) GoogleStatus(w http.ResponseWriter, r *http.Request) {
	rec := h.handshake.Status(r.Context(), chi.URLParam(r, "state"))
	writeJSON(w, http.StatusOK, rec)
}
