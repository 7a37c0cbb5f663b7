package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yamdb/internal/metrics"
)

// RouterConfig tunes the cross-cutting middleware.
type RouterConfig struct {
	CORSOrigins    []string
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// NewRouter wires every endpoint under /api/v1. Paths are canonical with a
// trailing slash.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.StrictSlash(true)
	router.Use(RequestID, metrics.Middleware)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(h.Authenticate)

	// Signup and token exchange send mail and verify codes; both are rate
	// limited per client address.
	authRouter := api.PathPrefix("/auth").Subrouter()
	if cfg.AuthRateLimit > 0 {
		authRouter.Use(httprate.Limit(cfg.AuthRateLimit, cfg.AuthRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(h.tooManyRequests)))
	}
	authRouter.HandleFunc("/signup/", h.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/token/", h.Token).Methods(http.MethodPost)

	api.HandleFunc("/categories/", h.ListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/", h.CreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{slug}/", h.DeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/genres/", h.ListGenres).Methods(http.MethodGet)
	api.HandleFunc("/genres/", h.CreateGenre).Methods(http.MethodPost)
	api.HandleFunc("/genres/{slug}/", h.DeleteGenre).Methods(http.MethodDelete)

	titles := api.PathPrefix("/titles").Subrouter()
	titles.HandleFunc("/", h.ListTitles).Methods(http.MethodGet)
	titles.HandleFunc("/", h.CreateTitle).Methods(http.MethodPost)
	titles.HandleFunc("/{title_id:[0-9]+}/", h.GetTitle).Methods(http.MethodGet)
	titles.HandleFunc("/{title_id:[0-9]+}/", h.UpdateTitle).Methods(http.MethodPatch)
	titles.HandleFunc("/{title_id:[0-9]+}/", h.DeleteTitle).Methods(http.MethodDelete)

	reviews := titles.PathPrefix("/{title_id:[0-9]+}/reviews").Subrouter()
	reviews.HandleFunc("/", h.ListReviews).Methods(http.MethodGet)
	reviews.HandleFunc("/", h.CreateReview).Methods(http.MethodPost)
	reviews.HandleFunc("/{review_id:[0-9]+}/", h.GetReview).Methods(http.MethodGet)
	reviews.HandleFunc("/{review_id:[0-9]+}/", h.UpdateReview).Methods(http.MethodPatch)
	reviews.HandleFunc("/{review_id:[0-9]+}/", h.DeleteReview).Methods(http.MethodDelete)

	comments := reviews.PathPrefix("/{review_id:[0-9]+}/comments").Subrouter()
	comments.HandleFunc("/", h.ListComments).Methods(http.MethodGet)
	comments.HandleFunc("/", h.CreateComment).Methods(http.MethodPost)
	comments.HandleFunc("/{comment_id:[0-9]+}/", h.GetComment).Methods(http.MethodGet)
	comments.HandleFunc("/{comment_id:[0-9]+}/", h.UpdateComment).Methods(http.MethodPatch)
	comments.HandleFunc("/{comment_id:[0-9]+}/", h.DeleteComment).Methods(http.MethodDelete)

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/", h.ListUsers).Methods(http.MethodGet)
	users.HandleFunc("/", h.CreateUser).Methods(http.MethodPost)
	// /me/ before /{username}/ so that "me" never resolves as a username.
	users.HandleFunc("/me/", h.GetMe).Methods(http.MethodGet)
	users.HandleFunc("/me/", h.UpdateMe).Methods(http.MethodPatch)
	users.HandleFunc("/{username}/", h.GetUser).Methods(http.MethodGet)
	users.HandleFunc("/{username}/", h.UpdateUser).Methods(http.MethodPatch)
	users.HandleFunc("/{username}/", h.DeleteUser).Methods(http.MethodDelete)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})
	return corsHandler(router)
}

func (h *Handler) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusTooManyRequests, map[string]string{
		"error": "too many requests",
		"kind":  "rate_limited",
	})
}
