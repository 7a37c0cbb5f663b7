// Package catalog manages categories, genres and titles. Title ratings are
// not stored; they are attached on every read from the review engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/store"
	"yamdb/internal/validation"
)

// RatingSource computes title ratings.
type RatingSource interface {
	Ratings(ctx context.Context, titleIDs []int64) (map[int64]*float64, error)
}

type Service struct {
	store   store.CatalogStore
	ratings RatingSource
	authz   *access.Authorizer
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(s store.CatalogStore, ratings RatingSource, authz *access.Authorizer, logger *slog.Logger) *Service {
	return &Service{store: s, ratings: ratings, authz: authz, logger: logger, now: time.Now}
}

func mapCatalogErr(err error) error {
	switch {
	case errors.Is(err, store.ErrCategoryNotFound):
		return domain.NotFound("category")
	case errors.Is(err, store.ErrGenreNotFound):
		return domain.NotFound("genre")
	case errors.Is(err, store.ErrTitleNotFound):
		return domain.NotFound("title")
	}
	return err
}

func (s *Service) CreateCategory(ctx context.Context, c access.Caller, req domain.CategoryRequest) (*domain.Category, error) {
	if err := s.authz.Authorize(ctx, c, access.Categories, access.Create); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	cat := &domain.Category{Name: req.Name, Slug: req.Slug}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			return nil, domain.Validation("slug", "category with this slug already exists")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "Category created", slog.String("slug", cat.Slug))
	return cat, nil
}

func (s *Service) ListCategories(ctx context.Context, search string, page domain.Page) ([]domain.Category, int, error) {
	return s.store.ListCategories(ctx, search, page)
}

// DeleteCategory removes a category; its titles remain, uncategorized.
func (s *Service) DeleteCategory(ctx context.Context, c access.Caller, slug string) error {
	if err := s.authz.Authorize(ctx, c, access.Categories, access.Delete); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, slug); err != nil {
		return mapCatalogErr(err)
	}
	s.logger.InfoContext(ctx, "Category deleted", slog.String("slug", slug))
	return nil
}

func (s *Service) CreateGenre(ctx context.Context, c access.Caller, req domain.CategoryRequest) (*domain.Genre, error) {
	if err := s.authz.Authorize(ctx, c, access.Genres, access.Create); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	g := &domain.Genre{Name: req.Name, Slug: req.Slug}
	if err := s.store.CreateGenre(ctx, g); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			return nil, domain.Validation("slug", "genre with this slug already exists")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "Genre created", slog.String("slug", g.Slug))
	return g, nil
}

func (s *Service) ListGenres(ctx context.Context, search string, page domain.Page) ([]domain.Genre, int, error) {
	return s.store.ListGenres(ctx, search, page)
}

func (s *Service) DeleteGenre(ctx context.Context, c access.Caller, slug string) error {
	if err := s.authz.Authorize(ctx, c, access.Genres, access.Delete); err != nil {
		return err
	}
	if err := s.store.DeleteGenre(ctx, slug); err != nil {
		return mapCatalogErr(err)
	}
	s.logger.InfoContext(ctx, "Genre deleted", slog.String("slug", slug))
	return nil
}

// CreateTitle adds a title. Name and year are required; category and genres
// are referenced by slug and must exist.
func (s *Service) CreateTitle(ctx context.Context, c access.Caller, req domain.TitleRequest) (*domain.Title, error) {
	if err := s.authz.Authorize(ctx, c, access.Titles, access.Create); err != nil {
		return nil, err
	}
	if req.Name == nil || *req.Name == "" {
		return nil, domain.Validation("name", "this field is required")
	}
	if req.Year == nil {
		return nil, domain.Validation("year", "this field is required")
	}
	t := &domain.Title{Genres: []domain.Genre{}}
	if err := s.apply(ctx, t, req); err != nil {
		return nil, err
	}
	if err := s.store.CreateTitle(ctx, t); err != nil {
		return nil, mapCatalogErr(err)
	}
	s.logger.InfoContext(ctx, "Title created", slog.Int64("titleID", t.ID), slog.String("name", t.Name))
	return t, nil
}

// apply validates req and copies its set fields onto t, resolving slugs.
func (s *Service) apply(ctx context.Context, t *domain.Title, req domain.TitleRequest) error {
	if err := validation.Struct(ctx, req); err != nil {
		return err
	}
	if req.Name != nil {
		if *req.Name == "" {
			return domain.Validation("name", "this field may not be blank")
		}
		t.Name = *req.Name
	}
	if req.Year != nil {
		if current := s.now().Year(); *req.Year > current {
			return domain.Validation("year", "year cannot be later than %d", current)
		}
		t.Year = *req.Year
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Category != nil && *req.Category == "" {
		t.Category = nil
	} else if req.Category != nil {
		cat, err := s.store.GetCategoryBySlug(ctx, *req.Category)
		if err != nil {
			if errors.Is(err, store.ErrCategoryNotFound) {
				return domain.Validation("category", "object with slug %q does not exist", *req.Category)
			}
			return err
		}
		t.Category = cat
	}
	if req.Genre != nil {
		genres := make([]domain.Genre, 0, len(*req.Genre))
		seen := make(map[string]bool, len(*req.Genre))
		for _, slug := range *req.Genre {
			if seen[slug] {
				continue
			}
			seen[slug] = true
			g, err := s.store.GetGenreBySlug(ctx, slug)
			if err != nil {
				if errors.Is(err, store.ErrGenreNotFound) {
					return domain.Validation("genre", "object with slug %q does not exist", slug)
				}
				return err
			}
			genres = append(genres, *g)
		}
		t.Genres = genres
	}
	return nil
}

func (s *Service) GetTitle(ctx context.Context, id int64) (*domain.Title, error) {
	t, err := s.store.GetTitle(ctx, id)
	if err != nil {
		return nil, mapCatalogErr(err)
	}
	if err := s.attachRatings(ctx, []*domain.Title{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) UpdateTitle(ctx context.Context, c access.Caller, id int64, req domain.TitleRequest) (*domain.Title, error) {
	if err := s.authz.Authorize(ctx, c, access.Titles, access.Update); err != nil {
		return nil, err
	}
	t, err := s.store.GetTitle(ctx, id)
	if err != nil {
		return nil, mapCatalogErr(err)
	}
	if err := s.apply(ctx, t, req); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTitle(ctx, t, req.Genre != nil); err != nil {
		return nil, mapCatalogErr(err)
	}
	if err := s.attachRatings(ctx, []*domain.Title{t}); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Title updated", slog.Int64("titleID", id))
	return t, nil
}

// DeleteTitle removes a title with its reviews and their comments.
func (s *Service) DeleteTitle(ctx context.Context, c access.Caller, id int64) error {
	if err := s.authz.Authorize(ctx, c, access.Titles, access.Delete); err != nil {
		return err
	}
	if err := s.store.DeleteTitle(ctx, id); err != nil {
		return mapCatalogErr(err)
	}
	s.logger.InfoContext(ctx, "Title deleted", slog.Int64("titleID", id))
	return nil
}

// ListTitles returns a filtered page of titles ordered by year.
func (s *Service) ListTitles(ctx context.Context, filter domain.TitleFilter, page domain.Page) ([]domain.Title, int, error) {
	titles, total, err := s.store.ListTitles(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	ptrs := make([]*domain.Title, len(titles))
	for i := range titles {
		ptrs[i] = &titles[i]
	}
	if err := s.attachRatings(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

func (s *Service) attachRatings(ctx context.Context, titles []*domain.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]int64, len(titles))
	for i, t := range titles {
		ids[i] = t.ID
	}
	ratings, err := s.ratings.Ratings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to compute ratings: %w", err)
	}
	for _, t := range titles {
		t.Rating = ratings[t.ID]
	}
	return nil
}

// TitleExists reports whether a title with the given id exists.
func (s *Service) TitleExists(ctx context.Context, id int64) (bool, error) {
	return s.store.TitleExists(ctx, id)
}
