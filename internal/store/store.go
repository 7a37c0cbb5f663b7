package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"yamdb/internal/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrGenreNotFound    = errors.New("genre not found")
	ErrTitleNotFound    = errors.New("title not found")
	ErrReviewNotFound   = errors.New("review not found")
	ErrCommentNotFound  = errors.New("comment not found")

	ErrDuplicateReview   = errors.New("user has already reviewed this title")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateSlug     = errors.New("slug already exists")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context, search string, page domain.Page) ([]domain.User, int, error)
}

// CatalogStore persists categories, genres and titles.
type CatalogStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, slug string) error
	ListCategories(ctx context.Context, search string, page domain.Page) ([]domain.Category, int, error)

	CreateGenre(ctx context.Context, g *domain.Genre) error
	GetGenreBySlug(ctx context.Context, slug string) (*domain.Genre, error)
	DeleteGenre(ctx context.Context, slug string) error
	ListGenres(ctx context.Context, search string, page domain.Page) ([]domain.Genre, int, error)

	CreateTitle(ctx context.Context, t *domain.Title) error
	GetTitle(ctx context.Context, id int64) (*domain.Title, error)
	UpdateTitle(ctx context.Context, t *domain.Title, replaceGenres bool) error
	DeleteTitle(ctx context.Context, id int64) error
	ListTitles(ctx context.Context, filter domain.TitleFilter, page domain.Page) ([]domain.Title, int, error)
	TitleExists(ctx context.Context, id int64) (bool, error)
}

// ReviewStore persists reviews and comments. Lookups are scoped by the
// parent id so that a child addressed under the wrong parent is not found.
type ReviewStore interface {
	CreateReview(ctx context.Context, r *domain.Review) error
	GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error)
	HasReview(ctx context.Context, titleID, authorID int64) (bool, error)
	UpdateReview(ctx context.Context, r *domain.Review) error
	DeleteReview(ctx context.Context, titleID, reviewID int64) error
	ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]domain.Review, int, error)
	RatingStats(ctx context.Context, titleIDs []int64) (map[int64]RatingStat, error)

	CreateComment(ctx context.Context, c *domain.Comment) error
	GetComment(ctx context.Context, reviewID, commentID int64) (*domain.Comment, error)
	UpdateComment(ctx context.Context, c *domain.Comment) error
	DeleteComment(ctx context.Context, reviewID, commentID int64) error
	ListComments(ctx context.Context, reviewID int64, page domain.Page) ([]domain.Comment, int, error)
}

// RatingStat is the score aggregate of one title.
type RatingStat struct {
	TitleID int64 `db:"title_id"`
	Sum     int64 `db:"total"`
	Count   int64 `db:"cnt"`
}

// Config selects and tunes the database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// SQLStore implements every store interface on top of sqlx. The same
// queries run on PostgreSQL and SQLite; placeholders are rebound per driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger
}

var (
	_ UserStore    = (*SQLStore)(nil)
	_ CatalogStore = (*SQLStore)(nil)
	_ ReviewStore  = (*SQLStore)(nil)
)

// Open connects to the database described by cfg and verifies the
// connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SQLStore, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logger.InfoContext(ctx, "Connecting to database", slog.String("driver", cfg.Driver), slog.String("dsn", MaskDSN(cfg.DSN)))
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return New(db, logger)
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *slog.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	return &SQLStore{db: db, driver: db.DriverName(), logger: logger}, nil
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// Driver returns the driver name the store was opened with.
func (s *SQLStore) Driver() string { return s.driver }

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) rebind(query string) string { return s.db.Rebind(query) }

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// MaskDSN hides the password of a URL-style DSN for logging.
func MaskDSN(dsn string) string {
	at := strings.Index(dsn, "@")
	if at <= 0 {
		return dsn
	}
	colon := strings.LastIndex(dsn[:at], ":")
	scheme := strings.Index(dsn, "://")
	if colon <= scheme+2 {
		return dsn
	}
	return dsn[:colon] + ":********" + dsn[at:]
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
