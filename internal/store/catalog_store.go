package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"yamdb/internal/domain"
)

// slugTable describes the two slug-keyed lookup tables.
type slugTable struct {
	name       string
	constraint string
	notFound   error
}

var (
	categoriesTable = slugTable{name: "categories", constraint: constraintCategoriesSlug, notFound: ErrCategoryNotFound}
	genresTable     = slugTable{name: "genres", constraint: constraintGenresSlug, notFound: ErrGenreNotFound}
)

type slugRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

func (s *SQLStore) createSlugged(ctx context.Context, t slugTable, name, slug string) (int64, error) {
	var id int64
	query := s.rebind(`INSERT INTO ` + t.name + ` (name, slug) VALUES (?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, name, slug).Scan(&id); err != nil {
		if detail, ok := uniqueViolation(err); ok && violates(detail, t.constraint, t.name+".slug") {
			s.logger.WarnContext(ctx, "Slug already exists", slog.String("table", t.name), slog.String("slug", slug))
			return 0, ErrDuplicateSlug
		}
		s.logger.ErrorContext(ctx, "Failed to insert slugged row", slog.String("table", t.name), slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to create %s row: %w", t.name, err)
	}
	s.logger.InfoContext(ctx, "Slugged row created in DB", slog.String("table", t.name), slog.String("slug", slug))
	return id, nil
}

func (s *SQLStore) getSlugged(ctx context.Context, t slugTable, slug string) (*slugRow, error) {
	var row slugRow
	err := s.db.GetContext(ctx, &row, s.rebind(`SELECT id, name, slug FROM `+t.name+` WHERE slug = ?`), slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, t.notFound
		}
		return nil, fmt.Errorf("failed to get %s row: %w", t.name, err)
	}
	return &row, nil
}

func (s *SQLStore) deleteSlugged(ctx context.Context, t slugTable, slug string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM `+t.name+` WHERE slug = ?`), slug)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete slugged row", slog.String("table", t.name), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete %s row: %w", t.name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.notFound
	}
	s.logger.InfoContext(ctx, "Slugged row deleted from DB", slog.String("table", t.name), slog.String("slug", slug))
	return nil
}

func (s *SQLStore) listSlugged(ctx context.Context, t slugTable, search string, page domain.Page) ([]slugRow, int, error) {
	where := ""
	var args []any
	if search != "" {
		where = ` WHERE LOWER(name) LIKE ?`
		args = append(args, likePattern(search))
	}
	var total int
	if err := s.db.GetContext(ctx, &total, s.rebind(`SELECT COUNT(*) FROM `+t.name+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	rows := []slugRow{}
	if total == 0 {
		return rows, 0, nil
	}
	args = append(args, page.Size, page.Offset())
	query := s.rebind(`SELECT id, name, slug FROM ` + t.name + where + ` ORDER BY name, id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return rows, total, nil
}

func (s *SQLStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	id, err := s.createSlugged(ctx, categoriesTable, c.Name, c.Slug)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *SQLStore) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	row, err := s.getSlugged(ctx, categoriesTable, slug)
	if err != nil {
		return nil, err
	}
	return &domain.Category{ID: row.ID, Name: row.Name, Slug: row.Slug}, nil
}

// DeleteCategory removes the category; titles keep existing with no category.
func (s *SQLStore) DeleteCategory(ctx context.Context, slug string) error {
	return s.deleteSlugged(ctx, categoriesTable, slug)
}

func (s *SQLStore) ListCategories(ctx context.Context, search string, page domain.Page) ([]domain.Category, int, error) {
	rows, total, err := s.listSlugged(ctx, categoriesTable, search, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Category{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	return out, total, nil
}

func (s *SQLStore) CreateGenre(ctx context.Context, g *domain.Genre) error {
	id, err := s.createSlugged(ctx, genresTable, g.Name, g.Slug)
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (s *SQLStore) GetGenreBySlug(ctx context.Context, slug string) (*domain.Genre, error) {
	row, err := s.getSlugged(ctx, genresTable, slug)
	if err != nil {
		return nil, err
	}
	return &domain.Genre{ID: row.ID, Name: row.Name, Slug: row.Slug}, nil
}

// DeleteGenre removes the genre and its title associations.
func (s *SQLStore) DeleteGenre(ctx context.Context, slug string) error {
	return s.deleteSlugged(ctx, genresTable, slug)
}

func (s *SQLStore) ListGenres(ctx context.Context, search string, page domain.Page) ([]domain.Genre, int, error) {
	rows, total, err := s.listSlugged(ctx, genresTable, search, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Genre, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Genre{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	return out, total, nil
}

// titleRow is a title joined with its optional category.
type titleRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Year         int            `db:"year"`
	Description  string         `db:"description"`
	CategoryID   sql.NullInt64  `db:"category_id"`
	CategoryName sql.NullString `db:"category_name"`
	CategorySlug sql.NullString `db:"category_slug"`
}

func (r titleRow) toDomain() domain.Title {
	t := domain.Title{ID: r.ID, Name: r.Name, Year: r.Year, Description: r.Description, Genres: []domain.Genre{}}
	if r.CategoryID.Valid {
		t.Category = &domain.Category{ID: r.CategoryID.Int64, Name: r.CategoryName.String, Slug: r.CategorySlug.String}
	}
	return t
}

const titleSelect = `SELECT t.id, t.name, t.year, t.description, t.category_id,
	c.name AS category_name, c.slug AS category_slug
	FROM titles t LEFT JOIN categories c ON c.id = t.category_id`

func categoryArg(t *domain.Title) any {
	if t.Category == nil {
		return nil
	}
	return t.Category.ID
}

// CreateTitle inserts the title and its genre links in one transaction.
// Category and genres must carry their ids.
func (s *SQLStore) CreateTitle(ctx context.Context, t *domain.Title) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := tx.Rebind(`INSERT INTO titles (name, year, description, category_id) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, query, t.Name, t.Year, t.Description, categoryArg(t)).Scan(&t.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert title", slog.String("name", t.Name), slog.String("error", err.Error()))
		return fmt.Errorf("failed to create title: %w", err)
	}
	if err := s.linkGenres(ctx, tx, t.ID, t.Genres); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title: %w", err)
	}
	s.logger.InfoContext(ctx, "Title created in DB", slog.Int64("titleID", t.ID), slog.String("name", t.Name))
	return nil
}

func (s *SQLStore) linkGenres(ctx context.Context, tx *sqlx.Tx, titleID int64, genres []domain.Genre) error {
	stmt := tx.Rebind(`INSERT INTO genre_title (title_id, genre_id) VALUES (?, ?)`)
	seen := make(map[int64]bool, len(genres))
	for _, g := range genres {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		if _, err := tx.ExecContext(ctx, stmt, titleID, g.ID); err != nil {
			if foreignKeyViolation(err) {
				return ErrGenreNotFound
			}
			return fmt.Errorf("failed to link genre %d: %w", g.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) GetTitle(ctx context.Context, id int64) (*domain.Title, error) {
	var row titleRow
	if err := s.db.GetContext(ctx, &row, s.rebind(titleSelect+` WHERE t.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Title not found by ID in DB", slog.Int64("titleID", id))
			return nil, ErrTitleNotFound
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	titles := []domain.Title{row.toDomain()}
	if err := s.attachGenres(ctx, titles); err != nil {
		return nil, err
	}
	return &titles[0], nil
}

func (s *SQLStore) TitleExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.rebind(`SELECT COUNT(*) FROM titles WHERE id = ?`), id); err != nil {
		return false, fmt.Errorf("failed to check title existence: %w", err)
	}
	return n > 0, nil
}

// UpdateTitle writes the scalar fields and category. Genre links are
// replaced only when replaceGenres is set.
func (s *SQLStore) UpdateTitle(ctx context.Context, t *domain.Title, replaceGenres bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE titles SET name = ?, year = ?, description = ?, category_id = ? WHERE id = ?`),
		t.Name, t.Year, t.Description, categoryArg(t), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTitleNotFound
	}
	if replaceGenres {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM genre_title WHERE title_id = ?`), t.ID); err != nil {
			return fmt.Errorf("failed to clear genres: %w", err)
		}
		if err := s.linkGenres(ctx, tx, t.ID, t.Genres); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title update: %w", err)
	}
	s.logger.InfoContext(ctx, "Title updated in DB", slog.Int64("titleID", t.ID))
	return nil
}

// DeleteTitle removes the title together with its reviews and their comments.
func (s *SQLStore) DeleteTitle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM titles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTitleNotFound
	}
	s.logger.InfoContext(ctx, "Title deleted from DB", slog.Int64("titleID", id))
	return nil
}

func (s *SQLStore) ListTitles(ctx context.Context, filter domain.TitleFilter, page domain.Page) ([]domain.Title, int, error) {
	var conditions []string
	var args []any

	if filter.Category != "" {
		conditions = append(conditions, "c.slug = ?")
		args = append(args, filter.Category)
	}
	if filter.Genre != "" {
		conditions = append(conditions, `EXISTS (SELECT 1 FROM genre_title gt JOIN genres g ON g.id = gt.genre_id
			WHERE gt.title_id = t.id AND g.slug = ?)`)
		args = append(args, filter.Genre)
	}
	if filter.Name != "" {
		conditions = append(conditions, "LOWER(t.name) LIKE ?")
		args = append(args, likePattern(filter.Name))
	}
	if filter.Year != 0 {
		conditions = append(conditions, "t.year = ?")
		args = append(args, filter.Year)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := s.rebind(`SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id` + where)
	s.logger.DebugContext(ctx, "Executing ListTitles count query", slog.String("query", countQuery), slog.Any("args", args))
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count titles: %w", err)
	}
	if total == 0 {
		return []domain.Title{}, 0, nil
	}

	var rows []titleRow
	args = append(args, page.Size, page.Offset())
	selectQuery := s.rebind(titleSelect + where + ` ORDER BY t.year, t.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, selectQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list titles from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list titles: %w", err)
	}
	titles := make([]domain.Title, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.toDomain())
	}
	if err := s.attachGenres(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

// attachGenres loads the genres of all titles with one query.
func (s *SQLStore) attachGenres(ctx context.Context, titles []domain.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]int64, len(titles))
	index := make(map[int64]int, len(titles))
	for i, t := range titles {
		ids[i] = t.ID
		index[t.ID] = i
	}

	query, args, err := sqlx.In(`SELECT gt.title_id, g.id, g.name, g.slug
		FROM genre_title gt JOIN genres g ON g.id = gt.genre_id
		WHERE gt.title_id IN (?) ORDER BY g.name, g.id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build genre query: %w", err)
	}
	var links []struct {
		TitleID int64  `db:"title_id"`
		ID      int64  `db:"id"`
		Name    string `db:"name"`
		Slug    string `db:"slug"`
	}
	if err := s.db.SelectContext(ctx, &links, s.rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load title genres: %w", err)
	}
	for _, l := range links {
		i := index[l.TitleID]
		titles[i].Genres = append(titles[i].Genres, domain.Genre{ID: l.ID, Name: l.Name, Slug: l.Slug})
	}
	return nil
}
