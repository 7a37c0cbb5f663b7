package domain

import "time"

// Review is a user's scored opinion about a title. A user can review a
// title at most once.
type Review struct {
	ID       int64     `json:"id" db:"id"`
	TitleID  int64     `json:"-" db:"title_id"`
	AuthorID int64     `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"`
	Text     string    `json:"text" db:"text"`
	Score    int       `json:"score" db:"score"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

// Comment is a reply to a review.
type Comment struct {
	ID       int64     `json:"id" db:"id"`
	ReviewID int64     `json:"-" db:"review_id"`
	AuthorID int64     `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"`
	Text     string    `json:"text" db:"text"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

const (
	MinScore = 1
	MaxScore = 10
)

// ReviewRequest creates a review.
type ReviewRequest struct {
	Text  string `json:"text" validate:"required"`
	Score int    `json:"score"`
}

// UpdateReviewRequest is a partial review update.
type UpdateReviewRequest struct {
	Text  *string `json:"text" validate:"omitempty,min=1"`
	Score *int    `json:"score"`
}

// CommentRequest creates or updates a comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
