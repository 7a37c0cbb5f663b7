package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"yamdb/internal/catalog"
	"yamdb/internal/domain"
	"yamdb/internal/identity"
	"yamdb/internal/review"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Catalog  *catalog.Service
	Reviews  *review.Engine
	Signup   *identity.Service
	Users    *identity.Directory
	Tokens   auth.TokenManager
	Accounts store.UserStore
	Health   Pinger
	Logger   *slog.Logger

	DefaultPageSize int
	MaxPageSize     int
}

// Handler holds the HTTP handlers of the API.
type Handler struct {
	catalog  *catalog.Service
	reviews  *review.Engine
	signup   *identity.Service
	users    *identity.Directory
	tokens   auth.TokenManager
	accounts store.UserStore
	health   Pinger
	logger   *slog.Logger

	defaultPageSize int
	maxPageSize     int
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		catalog:         d.Catalog,
		reviews:         d.Reviews,
		signup:          d.Signup,
		users:           d.Users,
		tokens:          d.Tokens,
		accounts:        d.Accounts,
		health:          d.Health,
		logger:          d.Logger,
		defaultPageSize: d.DefaultPageSize,
		maxPageSize:     d.MaxPageSize,
	}
	if h.defaultPageSize <= 0 {
		h.defaultPageSize = 10
	}
	if h.maxPageSize < h.defaultPageSize {
		h.maxPageSize = 100
	}
	return h
}

// --- response helpers ---

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.ErrorContext(r.Context(), "Failed to encode JSON response", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		}
	}
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindDuplicateReview, domain.KindConflict, domain.KindInvalidCode:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDispatch:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "kind"} plus {field: message} for
// field errors. Unclassified errors are logged and reported generically.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	body := map[string]any{"kind": kind}

	var derr *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &derr) {
		h.logger.ErrorContext(r.Context(), "Request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		body["error"] = "internal server error"
		body["kind"] = domain.KindInternal
		h.respondJSON(w, r, http.StatusInternalServerError, body)
		return
	}

	msg := derr.Message
	if msg == "" {
		msg = string(derr.Kind)
	}
	body["error"] = msg
	if derr.Field != "" {
		body[derr.Field] = msg
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	h.respondJSON(w, r, status, body)
}

// decode reads a JSON body into dst.
func (h *Handler) decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("", "request body is empty")
		}
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.String("error", err.Error()))
		return domain.Validation("", "invalid request payload")
	}
	return nil
}

// --- pagination ---

type pageEnvelope struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  any `json:"results"`
}

func (h *Handler) pageFrom(r *http.Request) domain.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = h.defaultPageSize
	} else if limit > h.maxPageSize {
		limit = h.maxPageSize
	}
	return domain.Page{Number: page, Size: limit}
}

func paginated[T any](items []T, total int, p domain.Page) pageEnvelope {
	if items == nil {
		items = []T{}
	}
	return pageEnvelope{Count: total, Page: p.Number, PageSize: p.Size, Results: items}
}

// --- path parameters ---

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NotFound(name)
	}
	return id, nil
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "Health check failed", slog.String("error", err.Error()))
			h.respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
