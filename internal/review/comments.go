package review

import (
	"context"
	"log/slog"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/metrics"
	"yamdb/internal/validation"
)

// parentReview resolves the review a comment path points at. A review
// addressed under the wrong title is not found.
func (e *Engine) parentReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	r, err := e.store.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return r, nil
}

func (e *Engine) CreateComment(ctx context.Context, c access.Caller, titleID, reviewID int64, req domain.CommentRequest) (*domain.Comment, error) {
	if err := e.authz.Authorize(ctx, c, access.Comments, access.Create); err != nil {
		return nil, err
	}
	if _, err := e.parentReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	cm := &domain.Comment{ReviewID: reviewID, AuthorID: c.UserID, Author: c.Username, Text: req.Text}
	if err := e.store.CreateComment(ctx, cm); err != nil {
		return nil, mapReviewErr(err)
	}
	metrics.CommentsCreated.Inc()
	e.logger.InfoContext(ctx, "Comment created",
		slog.Int64("commentID", cm.ID), slog.Int64("reviewID", reviewID), slog.String("author", c.Username))
	return cm, nil
}

func (e *Engine) GetComment(ctx context.Context, titleID, reviewID, commentID int64) (*domain.Comment, error) {
	if _, err := e.parentReview(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	cm, err := e.store.GetComment(ctx, reviewID, commentID)
	if err != nil {
		return nil, mapReviewErr(err)
	}
	return cm, nil
}

func (e *Engine) ListComments(ctx context.Context, titleID, reviewID int64, page domain.Page) ([]domain.Comment, int, error) {
	if _, err := e.parentReview(ctx, titleID, reviewID); err != nil {
		return nil, 0, err
	}
	return e.store.ListComments(ctx, reviewID, page)
}

func (e *Engine) UpdateComment(ctx context.Context, c access.Caller, titleID, reviewID, commentID int64, req domain.CommentRequest) (*domain.Comment, error) {
	if err := e.authz.Authorize(ctx, c, access.Comments, access.Update); err != nil {
		return nil, err
	}
	cm, err := e.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := e.authz.AuthorizeObject(ctx, c, access.Comments, access.Update, cm.AuthorID); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	cm.Text = req.Text
	if err := e.store.UpdateComment(ctx, cm); err != nil {
		return nil, mapReviewErr(err)
	}
	return cm, nil
}

func (e *Engine) DeleteComment(ctx context.Context, c access.Caller, titleID, reviewID, commentID int64) error {
	if err := e.authz.Authorize(ctx, c, access.Comments, access.Delete); err != nil {
		return err
	}
	cm, err := e.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if err := e.authz.AuthorizeObject(ctx, c, access.Comments, access.Delete, cm.AuthorID); err != nil {
		return err
	}
	if err := e.store.DeleteComment(ctx, reviewID, commentID); err != nil {
		return mapReviewErr(err)
	}
	e.logger.InfoContext(ctx, "Comment deleted", slog.Int64("commentID", commentID), slog.String("by", c.Username))
	return nil
}
