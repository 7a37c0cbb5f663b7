package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Constraint names shared by the schema and the error mapping.
const (
	constraintReviewAuthorTitle = "uq_review_author_title"
	constraintUsersUsername     = "uq_users_username"
	constraintUsersEmail        = "uq_users_email"
	constraintCategoriesSlug    = "uq_categories_slug"
	constraintGenresSlug        = "uq_genres_slug"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		username VARCHAR(150) NOT NULL,
		email VARCHAR(254) NOT NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		confirmed BOOLEAN NOT NULL DEFAULT {{false}},
		last_login {{ts}} NULL,
		date_joined {{ts}} NOT NULL,
		CONSTRAINT uq_users_username UNIQUE (username),
		CONSTRAINT uq_users_email UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id {{pk}},
		name VARCHAR(256) NOT NULL,
		slug VARCHAR(50) NOT NULL,
		CONSTRAINT uq_categories_slug UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id {{pk}},
		name VARCHAR(256) NOT NULL,
		slug VARCHAR(50) NOT NULL,
		CONSTRAINT uq_genres_slug UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS titles (
		id {{pk}},
		name VARCHAR(256) NOT NULL,
		year INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id BIGINT NULL REFERENCES categories(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genre_title (
		id {{pk}},
		title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		genre_id BIGINT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
		CONSTRAINT uq_genre_title UNIQUE (title_id, genre_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id {{pk}},
		title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		score SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 10),
		pub_date {{ts}} NOT NULL,
		CONSTRAINT uq_review_author_title UNIQUE (author_id, title_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {{pk}},
		review_id BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		pub_date {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_titles_category ON titles (category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_genre_title_genre ON genre_title (genre_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_title ON reviews (title_id, pub_date)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_review ON comments (review_id, pub_date)`,
}

func (s *SQLStore) dialect() *strings.Replacer {
	if s.driver == DriverPostgres {
		return strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{false}}", "FALSE",
		)
	}
	return strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "TIMESTAMP",
		"{{false}}", "0",
	)
}

// Migrate creates the schema if it does not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	r := s.dialect()
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	s.logger.InfoContext(ctx, "Database schema is up to date", slog.String("driver", s.driver), slog.Int("statements", len(schema)))
	return nil
}
