package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// pathUserID parses the {userID} route parameter and checks it against the
// authenticated session; a token for one account cannot touch another's save.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "token required")
		return 0, false
	}
	if claims.UserID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return id, true
}

// SaveProgress overwrites the account's save slot. Both sections are
// required; the client always sends the full state.
func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Supplies == nil || req.Upgrades == nil {
		writeError(w, http.StatusBadRequest, "supplies and upgrades are required")
		return
	}

	if err := h.progress.Save(r.Context(), id, *req.Supplies, *req.Upgrades); err != nil {
		slog.ErrorContext(r.Context(), "save progress failed", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{OK: true, Message: "Progress saved"})
}

// LoadProgress returns the account's save slot; a fresh account gets zero
// values rather than an error.
func (h *Handler) LoadProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}

	supplies, upgrades, err := h.progress.Load(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "load progress failed", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponse{UserID: id, Supplies: supplies, Upgrades: upgrades})
}
