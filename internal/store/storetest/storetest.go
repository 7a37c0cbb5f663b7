// Package storetest provides SQLite-backed stores and fixtures for tests.
package storetest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"yamdb/internal/domain"
	"yamdb/internal/store"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New opens a migrated SQLite store in a temporary directory. The store is
// closed when the test ends.
func New(t testing.TB) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "yamdb.db"),
	}, Logger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// User creates a confirmed user with the given role.
func User(t testing.TB, s *store.SQLStore, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		Confirmed: true,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// Category creates a category named after its slug.
func Category(t testing.TB, s *store.SQLStore, slug string) *domain.Category {
	t.Helper()
	c := &domain.Category{Name: slug, Slug: slug}
	if err := s.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category %s: %v", slug, err)
	}
	return c
}

// Genre creates a genre named after its slug.
func Genre(t testing.TB, s *store.SQLStore, slug string) *domain.Genre {
	t.Helper()
	g := &domain.Genre{Name: slug, Slug: slug}
	if err := s.CreateGenre(context.Background(), g); err != nil {
		t.Fatalf("create genre %s: %v", slug, err)
	}
	return g
}

// Title creates a title with an optional category and genres.
func Title(t testing.TB, s *store.SQLStore, name string, year int, category *domain.Category, genres ...*domain.Genre) *domain.Title {
	t.Helper()
	title := &domain.Title{Name: name, Year: year, Category: category}
	for _, g := range genres {
		title.Genres = append(title.Genres, *g)
	}
	if err := s.CreateTitle(context.Background(), title); err != nil {
		t.Fatalf("create title %s: %v", name, err)
	}
	return title
}

// Review creates a review by author on title.
func Review(t testing.TB, s *store.SQLStore, title *domain.Title, author *domain.User, score int) *domain.Review {
	t.Helper()
	r := &domain.Review{TitleID: title.ID, AuthorID: author.ID, Text: "review by " + author.Username, Score: score}
	if err := s.CreateReview(context.Background(), r); err != nil {
		t.Fatalf("create review: %v", err)
	}
	return r
}
