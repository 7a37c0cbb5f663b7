package api

import (
	"log/slog"
	"net/http"

	"yamdb/internal/domain"
)

// reviewPath extracts the title and review ids of a nested route.
func reviewPath(r *http.Request) (titleID, reviewID int64, err error) {
	if titleID, err = pathID(r, "title_id"); err != nil {
		return 0, 0, err
	}
	if reviewID, err = pathID(r, "review_id"); err != nil {
		return 0, 0, err
	}
	return titleID, reviewID, nil
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	titleID, err := pathID(r, "title_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	page := h.pageFrom(r)
	reviews, total, err := h.reviews.ListReviews(r.Context(), titleID, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(reviews, total, page))
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	titleID, err := pathID(r, "title_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req domain.ReviewRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	caller := callerFrom(ctx)
	h.logger.InfoContext(ctx, "User attempting to create review", slog.Int64("userID", caller.UserID), slog.Int64("titleID", titleID))

	rev, err := h.reviews.CreateReview(ctx, caller, titleID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, rev)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	rev, err := h.reviews.GetReview(r.Context(), titleID, reviewID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, rev)
}

func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req domain.UpdateReviewRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	rev, err := h.reviews.UpdateReview(r.Context(), callerFrom(r.Context()), titleID, reviewID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, rev)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.reviews.DeleteReview(r.Context(), callerFrom(r.Context()), titleID, reviewID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	page := h.pageFrom(r)
	comments, total, err := h.reviews.ListComments(r.Context(), titleID, reviewID, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, paginated(comments, total, page))
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req domain.CommentRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.reviews.CreateComment(r.Context(), callerFrom(r.Context()), titleID, reviewID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, c)
}

func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	commentID, err := pathID(r, "comment_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.reviews.GetComment(r.Context(), titleID, reviewID, commentID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	commentID, err := pathID(r, "comment_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req domain.CommentRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	c, err := h.reviews.UpdateComment(r.Context(), callerFrom(r.Context()), titleID, reviewID, commentID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	commentID, err := pathID(r, "comment_id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.reviews.DeleteComment(r.Context(), callerFrom(r.Context()), titleID, reviewID, commentID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
