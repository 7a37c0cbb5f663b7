package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"yamdb/internal/domain"
)

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page := h.pageFrom(r)
	items, total, err := h.catalog.ListCategories(r.Context(), r.URL.Query().Get("search"), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(items, total, page))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), callerFrom(r.Context()), mux.Vars(r)["slug"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	page := h.pageFrom(r)
	items, total, err := h.catalog.ListGenres(r.Context(), r.URL.Query().Get("search"), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(items, total, page))
}

func (h *Handler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.catalog.CreateGenre(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, g)
}

func (h *Handler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteGenre(r.Context(), callerFrom(r.Context()), mux.Vars(r)["slug"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTitles supports the category, genre, name and year filters.
func (h *Handler) ListTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TitleFilter{
		Category: q.Get("category"),
		Genre:    q.Get("genre"),
		Name:     q.Get("name"),
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			h.respondError(w, r, domain.Validation("year", "enter a whole number"))
			return
		}
		filter.Year = year
	}

	page := h.pageFrom(r)
	titles, total, err := h.catalog.ListTitles(r.Context(), filter, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(titles, total, page))
}

func (h *Handler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req domain.TitleRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.catalog.CreateTitle(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, t)
}

func (h *Handler) GetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "title_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.catalog.GetTitle(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, t)
}

func (h *Handler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "title_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req domain.TitleRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.catalog.UpdateTitle(r.Context(), callerFrom(r.Context()), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, t)
}

func (h *Handler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "title_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.catalog.DeleteTitle(r.Context(), callerFrom(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
