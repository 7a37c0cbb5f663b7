package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// importColumns lists, per table, the columns a bulk load may write.
var importColumns = map[string][]string{
	"users":       {"id", "username", "email", "role", "bio", "first_name", "last_name", "confirmed", "date_joined"},
	"categories":  {"id", "name", "slug"},
	"genres":      {"id", "name", "slug"},
	"titles":      {"id", "name", "year", "description", "category_id"},
	"genre_title": {"id", "title_id", "genre_id"},
	"reviews":     {"id", "title_id", "author_id", "text", "score", "pub_date"},
	"comments":    {"id", "review_id", "author_id", "text", "pub_date"},
}

// ImportColumns returns the writable columns of table, or nil if the table
// does not accept bulk loads.
func ImportColumns(table string) []string {
	return importColumns[table]
}

// BulkInsert writes rows into table inside one transaction. Explicit ids are
// kept; on PostgreSQL the id sequence is moved past the highest id
// afterwards.
func (s *SQLStore) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	allowed := importColumns[table]
	if allowed == nil {
		return 0, fmt.Errorf("table %q does not accept bulk loads", table)
	}
	for _, c := range columns {
		if !contains(allowed, c) {
			return 0, fmt.Errorf("column %q is not writable on %s", c, table)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values, want %d", i+1, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i+1, table, err)
		}
	}

	if s.driver == DriverPostgres && contains(columns, "id") {
		reset := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 1))`, table)
		if _, err := tx.ExecContext(ctx, reset); err != nil {
			return 0, fmt.Errorf("failed to reset %s id sequence: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	s.logger.InfoContext(ctx, "Bulk insert finished", slog.String("table", table), slog.Int("rows", len(rows)))
	return len(rows), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
