package httpx

import (
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizzle-game/server/internal/auth"
)

//go:embed reset_form.html
var resetFormHTML string

var resetFormTmpl = template.Must(template.New("reset_form").Parse(resetFormHTML))

// ForgotPassword starts the reset flow. It answers 200 with the same message
// whether or not the email belongs to an account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		var vErr *auth.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Msg)
			return
		}
		slog.ErrorContext(r.Context(), "password reset request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{OK: true, Message: "If that email exists, a reset link has been sent"})
}

// ResetPasswordForm serves the browser page the emailed link points at. The
// token is only validated when the form submits.
func (h *Handler) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resetFormTmpl.Execute(w, struct{ Token string }{Token: chi.URLParam(r, "token")}); err != nil {
		slog.ErrorContext(r.Context(), "render reset form failed", "error", err)
	}
}

// ResetPassword consumes the reset token and stores the new password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		var vErr *auth.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, auth.ErrInvalidResetToken):
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
		default:
			slog.ErrorContext(r.Context(), "password reset failed", "error", err)
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{OK: true, Message: "Password updated"})
}
