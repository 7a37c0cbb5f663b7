package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"yamdb/internal/domain"
)

const reviewSelect = `SELECT r.id, r.title_id, r.author_id, u.username AS author, r.text, r.score, r.pub_date
	FROM reviews r JOIN users u ON u.id = r.author_id`

const commentSelect = `SELECT cm.id, cm.review_id, cm.author_id, u.username AS author, cm.text, cm.pub_date
	FROM comments cm JOIN users u ON u.id = cm.author_id`

// CreateReview inserts a review. A second review by the same author for
// the same title fails with ErrDuplicateReview; this is the authoritative
// check under concurrent creation.
func (s *SQLStore) CreateReview(ctx context.Context, r *domain.Review) error {
	if r.PubDate.IsZero() {
		r.PubDate = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES (?, ?, ?, ?, ?) RETURNING id`)

	s.logger.DebugContext(ctx, "Executing CreateReview query",
		slog.Int64("titleID", r.TitleID),
		slog.Int64("authorID", r.AuthorID))

	err := s.db.QueryRowxContext(ctx, query, r.TitleID, r.AuthorID, r.Text, r.Score, r.PubDate).Scan(&r.ID)
	if err != nil {
		if detail, ok := uniqueViolation(err); ok {
			if violates(detail, constraintReviewAuthorTitle, "reviews.author_id") {
				s.logger.WarnContext(ctx, "User has already reviewed this title (DB constraint)",
					slog.Int64("titleID", r.TitleID), slog.Int64("authorID", r.AuthorID))
				return ErrDuplicateReview
			}
			return fmt.Errorf("failed to create review due to unique constraint %s: %w", detail, err)
		}
		if foreignKeyViolation(err) {
			return ErrTitleNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to create review in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create review: %w", err)
	}
	s.logger.InfoContext(ctx, "Review created successfully in DB", slog.Int64("reviewID", r.ID))
	return nil
}

func (s *SQLStore) GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	var r domain.Review
	err := s.db.GetContext(ctx, &r, s.rebind(reviewSelect+` WHERE r.id = ? AND r.title_id = ?`), reviewID, titleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Review not found in DB", slog.Int64("titleID", titleID), slog.Int64("reviewID", reviewID))
			return nil, ErrReviewNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get review from DB", slog.Int64("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &r, nil
}

func (s *SQLStore) HasReview(ctx context.Context, titleID, authorID int64) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.rebind(`SELECT COUNT(*) FROM reviews WHERE title_id = ? AND author_id = ?`), titleID, authorID)
	if err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) UpdateReview(ctx context.Context, r *domain.Review) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE reviews SET text = ?, score = ? WHERE id = ? AND title_id = ?`),
		r.Text, r.Score, r.ID, r.TitleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update review in DB", slog.Int64("reviewID", r.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReviewNotFound
	}
	s.logger.InfoContext(ctx, "Review updated successfully in DB", slog.Int64("reviewID", r.ID))
	return nil
}

// DeleteReview removes the review and, by cascade, its comments.
func (s *SQLStore) DeleteReview(ctx context.Context, titleID, reviewID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM reviews WHERE id = ? AND title_id = ?`), reviewID, titleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete review from DB", slog.Int64("reviewID", reviewID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReviewNotFound
	}
	s.logger.InfoContext(ctx, "Review deleted successfully from DB", slog.Int64("reviewID", reviewID))
	return nil
}

// ListReviews returns the title's reviews, oldest first.
func (s *SQLStore) ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]domain.Review, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, s.rebind(`SELECT COUNT(*) FROM reviews WHERE title_id = ?`), titleID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count reviews in DB", slog.Int64("titleID", titleID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	reviews := []domain.Review{}
	if total == 0 {
		return reviews, 0, nil
	}
	query := s.rebind(reviewSelect + ` WHERE r.title_id = ? ORDER BY r.pub_date, r.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &reviews, query, titleID, page.Size, page.Offset()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list reviews from DB", slog.Int64("titleID", titleID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

// RatingStats aggregates score sums and counts for the given titles.
// Titles without reviews are absent from the result.
func (s *SQLStore) RatingStats(ctx context.Context, titleIDs []int64) (map[int64]RatingStat, error) {
	out := make(map[int64]RatingStat, len(titleIDs))
	if len(titleIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT title_id, SUM(score) AS total, COUNT(*) AS cnt
		FROM reviews WHERE title_id IN (?) GROUP BY title_id`, titleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build rating query: %w", err)
	}
	var stats []RatingStat
	if err := s.db.SelectContext(ctx, &stats, s.rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to aggregate ratings in DB", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	for _, st := range stats {
		out[st.TitleID] = st
	}
	return out, nil
}

func (s *SQLStore) CreateComment(ctx context.Context, c *domain.Comment) error {
	if c.PubDate.IsZero() {
		c.PubDate = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO comments (review_id, author_id, text, pub_date) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, c.ReviewID, c.AuthorID, c.Text, c.PubDate).Scan(&c.ID); err != nil {
		if foreignKeyViolation(err) {
			return ErrReviewNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to create comment in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	s.logger.InfoContext(ctx, "Comment created successfully in DB", slog.Int64("commentID", c.ID), slog.Int64("reviewID", c.ReviewID))
	return nil
}

func (s *SQLStore) GetComment(ctx context.Context, reviewID, commentID int64) (*domain.Comment, error) {
	var c domain.Comment
	err := s.db.GetContext(ctx, &c, s.rebind(commentSelect+` WHERE cm.id = ? AND cm.review_id = ?`), commentID, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

func (s *SQLStore) UpdateComment(ctx context.Context, c *domain.Comment) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE comments SET text = ? WHERE id = ? AND review_id = ?`), c.Text, c.ID, c.ReviewID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (s *SQLStore) DeleteComment(ctx context.Context, reviewID, commentID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM comments WHERE id = ? AND review_id = ?`), commentID, reviewID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCommentNotFound
	}
	s.logger.InfoContext(ctx, "Comment deleted from DB", slog.Int64("commentID", commentID))
	return nil
}

// ListComments returns the review's comments, oldest first.
func (s *SQLStore) ListComments(ctx context.Context, reviewID int64, page domain.Page) ([]domain.Comment, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, s.rebind(`SELECT COUNT(*) FROM comments WHERE review_id = ?`), reviewID); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}
	comments := []domain.Comment{}
	if total == 0 {
		return comments, 0, nil
	}
	query := s.rebind(commentSelect + ` WHERE cm.review_id = ? ORDER BY cm.pub_date, cm.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &comments, query, reviewID, page.Size, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}
