// Package review holds the review and comment engine: one review per user
// and title, ownership-checked edits, and rating aggregation.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/metrics"
	"yamdb/internal/store"
	"yamdb/internal/validation"
)

// TitleChecker reports whether a title exists. The store implements it
// directly; the gRPC catalog client does too.
type TitleChecker interface {
	TitleExists(ctx context.Context, id int64) (bool, error)
}

type Engine struct {
	store  store.ReviewStore
	titles TitleChecker
	authz  *access.Authorizer
	logger *slog.Logger
}

func NewEngine(s store.ReviewStore, titles TitleChecker, authz *access.Authorizer, logger *slog.Logger) *Engine {
	return &Engine{store: s, titles: titles, authz: authz, logger: logger}
}

func checkScore(score int) error {
	if score < domain.MinScore || score > domain.MaxScore {
		return domain.Validation("score", "ensure this value is between %d and %d", domain.MinScore, domain.MaxScore)
	}
	return nil
}

func (e *Engine) requireTitle(ctx context.Context, titleID int64) error {
	ok, err := e.titles.TitleExists(ctx, titleID)
	if err != nil {
		return fmt.Errorf("failed to check title existence: %w", err)
	}
	if !ok {
		e.logger.WarnContext(ctx, "Title not found", slog.Int64("titleID", titleID))
		return domain.NotFound("title")
	}
	return nil
}

func mapReviewErr(err error) error {
	switch {
	case errors.Is(err, store.ErrReviewNotFound):
		return domain.NotFound("review")
	case errors.Is(err, store.ErrCommentNotFound):
		return domain.NotFound("comment")
	case errors.Is(err, store.ErrTitleNotFound):
		return domain.NotFound("title")
	case errors.Is(err, store.ErrDuplicateReview):
		metrics.DuplicateReviews.Inc()
		return domain.DuplicateReview()
	}
	return err
}

// CreateReview publishes the caller's review of a title. The existence
// pre-check gives a fast answer; the store's unique constraint decides
// races between concurrent requests.
func (e *Engine) CreateReview(ctx context.Context, c access.Caller, titleID int64, req domain.ReviewRequest) (*domain.Review, error) {
	if err := e.authz.Authorize(ctx, c, access.Reviews, access.Create); err != nil {
		return nil, err
	}
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	if err := checkScore(req.Score); err != nil {
		return nil, err
	}

	exists, err := e.store.HasReview(ctx, titleID, c.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		e.logger.WarnContext(ctx, "User has already reviewed this title",
			slog.Int64("titleID", titleID), slog.Int64("userID", c.UserID))
		metrics.DuplicateReviews.Inc()
		return nil, domain.DuplicateReview()
	}

	r := &domain.Review{TitleID: titleID, AuthorID: c.UserID, Author: c.Username, Text: req.Text, Score: req.Score}
	if err := e.store.CreateReview(ctx, r); err != nil {
		return nil, mapReviewErr(err)
	}
	metrics.ReviewsCreated.Inc()
	e.logger.InfoContext(ctx, "Review created",
		slog.Int64("reviewID", r.ID), slog.Int64("titleID", titleID), slog.String("author", c.Username))
	return r, nil
}

func (e *Engine) GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	r, err := e.store.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return r, nil
}

// ListReviews returns a page of the title's reviews, oldest first.
func (e *Engine) ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]domain.Review, int, error) {
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, 0, err
	}
	reviews, total, err := e.store.ListReviews(ctx, titleID, page)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// UpdateReview applies a partial edit. Only the author and staff may edit.
func (e *Engine) UpdateReview(ctx context.Context, c access.Caller, titleID, reviewID int64, req domain.UpdateReviewRequest) (*domain.Review, error) {
	if err := e.authz.Authorize(ctx, c, access.Reviews, access.Update); err != nil {
		return nil, err
	}
	r, err := e.store.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	if err := e.authz.AuthorizeObject(ctx, c, access.Reviews, access.Update, r.AuthorID); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	if req.Text != nil {
		r.Text = *req.Text
	}
	if req.Score != nil {
		if err := checkScore(*req.Score); err != nil {
			return nil, err
		}
		r.Score = *req.Score
	}
	if err := e.store.UpdateReview(ctx, r); err != nil {
		return nil, mapReviewErr(err)
	}
	e.logger.InfoContext(ctx, "Review updated", slog.Int64("reviewID", r.ID), slog.String("by", c.Username))
	return r, nil
}

// DeleteReview removes a review together with its comments.
func (e *Engine) DeleteReview(ctx context.Context, c access.Caller, titleID, reviewID int64) error {
	if err := e.authz.Authorize(ctx, c, access.Reviews, access.Delete); err != nil {
		return err
	}
	r, err := e.store.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return mapReviewErr(err)
	}
	if err := e.authz.AuthorizeObject(ctx, c, access.Reviews, access.Delete, r.AuthorID); err != nil {
		return err
	}
	if err := e.store.DeleteReview(ctx, titleID, reviewID); err != nil {
		return mapReviewErr(err)
	}
	e.logger.InfoContext(ctx, "Review deleted", slog.Int64("reviewID", reviewID), slog.String("by", c.Username))
	return nil
}

// ComputeRating returns the title's mean score rounded to one decimal, or
// nil when it has no reviews.
func (e *Engine) ComputeRating(ctx context.Context, titleID int64) (*float64, error) {
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	ratings, err := e.Ratings(ctx, []int64{titleID})
	if err != nil {
		return nil, err
	}
	return ratings[titleID], nil
}

// Ratings computes the ratings of several titles in one query. Titles
// without reviews are absent from the result.
func (e *Engine) Ratings(ctx context.Context, titleIDs []int64) (map[int64]*float64, error) {
	out := make(map[int64]*float64, len(titleIDs))
	if len(titleIDs) == 0 {
		return out, nil
	}
	stats, err := e.store.RatingStats(ctx, titleIDs)
	if err != nil {
		return nil, err
	}
	for id, st := range stats {
		out[id] = domain.Rating(st.Sum, st.Count)
	}
	return out, nil
}
