// Package importer bulk-loads catalog data from CSV files. The first row is
// the header; relation columns named after the related model ("category",
// "author") are mapped onto their foreign-key columns.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"yamdb/internal/store"
)

// Loader writes rows into a table.
type Loader interface {
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int, error)
}

var modelTables = map[string]string{
	"user":        "users",
	"users":       "users",
	"category":    "categories",
	"categories":  "categories",
	"genre":       "genres",
	"genres":      "genres",
	"title":       "titles",
	"titles":      "titles",
	"genre_title": "genre_title",
	"review":      "reviews",
	"reviews":     "reviews",
	"comment":     "comments",
	"comments":    "comments",
}

var relationColumns = map[string]string{
	"category": "category_id",
	"author":   "author_id",
}

// Columns that must be filled even when the file leaves them out.
var stampColumns = map[string]string{
	"users":    "date_joined",
	"reviews":  "pub_date",
	"comments": "pub_date",
}

// Table resolves a model name to its table.
func Table(model string) (string, error) {
	table, ok := modelTables[strings.ToLower(model)]
	if !ok {
		return "", fmt.Errorf("unknown model %q", model)
	}
	return table, nil
}

type Importer struct {
	loader Loader
	logger *slog.Logger
	now    func() time.Time
}

func New(loader Loader, logger *slog.Logger) *Importer {
	return &Importer{loader: loader, logger: logger, now: time.Now}
}

// ImportFile loads the CSV file at path into the model's table.
func (i *Importer) ImportFile(ctx context.Context, model, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return i.Import(ctx, model, f)
}

// dirOrder lists the files ImportDir looks for, parents before children.
var dirOrder = []struct{ model, file string }{
	{"users", "users.csv"},
	{"category", "category.csv"},
	{"genre", "genre.csv"},
	{"titles", "titles.csv"},
	{"genre_title", "genre_title.csv"},
	{"review", "review.csv"},
	{"comments", "comments.csv"},
}

// ImportDir loads every known CSV file found in dir. Missing files are
// skipped. It returns the number of rows written per table.
func (i *Importer) ImportDir(ctx context.Context, dir string) (map[string]int, error) {
	loaded := make(map[string]int)
	for _, f := range dirOrder {
		path := filepath.Join(dir, f.file)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			i.logger.DebugContext(ctx, "CSV file not found, skipping", slog.String("path", path))
			continue
		}
		n, err := i.ImportFile(ctx, f.model, path)
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", f.file, err)
		}
		table, _ := Table(f.model)
		loaded[table] = n
	}
	return loaded, nil
}

// Import loads CSV records from r into the model's table in one
// transaction.
func (i *Importer) Import(ctx context.Context, model string, r io.Reader) (int, error) {
	table, err := Table(model)
	if err != nil {
		return 0, err
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: file is empty", model)
		}
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := mapHeader(table, header)
	if err != nil {
		return 0, err
	}

	stamp, addStamp := stampColumns[table]
	if addStamp && contains(columns, stamp) {
		addStamp = false
	}
	if addStamp {
		columns = append(columns, stamp)
	}

	var rows [][]any
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]any, 0, len(columns))
		for j, raw := range record {
			v, err := convert(columns[j], raw)
			if err != nil {
				return 0, fmt.Errorf("line %d: column %s: %w", line, columns[j], err)
			}
			row = append(row, v)
		}
		if addStamp {
			row = append(row, i.now().UTC())
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		i.logger.WarnContext(ctx, "CSV file has no records", slog.String("model", model))
		return 0, nil
	}
	n, err := i.loader.BulkInsert(ctx, table, columns, rows)
	if err != nil {
		return 0, err
	}
	i.logger.InfoContext(ctx, "CSV import finished", slog.String("model", model), slog.String("table", table), slog.Int("rows", n))
	return n, nil
}

func mapHeader(table string, header []string) ([]string, error) {
	allowed := store.ImportColumns(table)
	columns := make([]string, len(header))
	for j, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if mapped, ok := relationColumns[name]; ok {
			name = mapped
		}
		if !contains(allowed, name) {
			return nil, fmt.Errorf("column %q cannot be imported into %s", h, table)
		}
		if contains(columns[:j], name) {
			return nil, fmt.Errorf("column %q appears twice", h)
		}
		columns[j] = name
	}
	return columns, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// convert turns a CSV cell into the value stored in column.
func convert(column, raw string) (any, error) {
	switch {
	case column == "id" || column == "year" || column == "score" || strings.HasSuffix(column, "_id"):
		if raw == "" {
			if column == "category_id" {
				return nil, nil
			}
			return nil, errors.New("value is required")
		}
		return strconv.ParseInt(raw, 10, 64)
	case column == "confirmed":
		if raw == "" {
			return false, nil
		}
		return strconv.ParseBool(raw)
	case column == "pub_date" || column == "date_joined":
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("cannot parse time %q", raw)
	case column == "role" && raw == "":
		return "user", nil
	default:
		return raw, nil
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
