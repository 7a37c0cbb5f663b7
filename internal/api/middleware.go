package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/logging"
	"yamdb/internal/store"
)

type contextKey string

const callerKey contextKey = "caller"

const requestIDHeader = "X-Request-ID"

// RequestID tags the request with an id, taken from X-Request-ID when the
// client sends one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// callerFrom returns the identity attached by Authenticate, or the
// anonymous caller.
func callerFrom(ctx context.Context) access.Caller {
	if c, ok := ctx.Value(callerKey).(access.Caller); ok {
		return c
	}
	return access.Anonymous()
}

// Authenticate resolves an optional bearer token to a caller. Requests
// without a token continue as anonymous; a malformed, expired or orphaned
// token is rejected with 401. The role is read from the store, so role
// changes apply to tokens issued earlier.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.logger.WarnContext(r.Context(), "Invalid Authorization header format")
			h.respondError(w, r, domain.Unauthenticated("invalid Authorization header format"))
			return
		}

		claims, err := h.tokens.Validate(parts[1])
		if err != nil {
			h.logger.WarnContext(r.Context(), "Invalid or expired token", slog.String("error", err.Error()))
			h.respondError(w, r, domain.Unauthenticated("invalid or expired token"))
			return
		}

		user, err := h.accounts.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				h.logger.WarnContext(r.Context(), "Token subject no longer exists", slog.Int64("userID", claims.UserID))
				h.respondError(w, r, domain.Unauthenticated("user not found"))
				return
			}
			h.respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, access.UserCaller(user))
		h.logger.DebugContext(ctx, "Token validated successfully", slog.Int64("userID", user.ID), slog.String("role", string(user.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
