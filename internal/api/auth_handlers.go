package api

import (
	"log/slog"
	"net/http"

	"yamdb/internal/domain"
)

// Signup registers a pending user (or re-sends the code) and mails a
// confirmation code.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.SignupRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "HTTP Signup request received", slog.String("username", req.Username))

	resp, err := h.signup.RequestSignup(ctx, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}

// Token exchanges a confirmation code for an access token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.TokenRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "HTTP Token request received", slog.String("username", req.Username))

	resp, err := h.signup.ConfirmSignup(ctx, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}
