package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"yamdb/internal/domain"
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := h.pageFrom(r)
	users, total, err := h.users.List(r.Context(), callerFrom(r.Context()), r.URL.Query().Get("search"), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(users, total, page))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.users.Create(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), callerFrom(r.Context()), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), callerFrom(r.Context()), mux.Vars(r)["username"], req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), callerFrom(r.Context()), mux.Vars(r)["username"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns the caller's profile.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, u)
}

// UpdateMe edits the caller's profile; a role in the payload is ignored.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	u, err := h.users.UpdateMe(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, u)
}
