//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"yamdb/internal/domain"
	"yamdb/internal/store"
	"yamdb/internal/store/storetest"
)

func startPostgres(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "yamdb",
				"POSTGRES_PASSWORD": "yamdb",
				"POSTGRES_DB":       "yamdb",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://yamdb:yamdb@%s:%s/yamdb?sslmode=disable", host, port.Port())
	s, err := store.Open(ctx, store.Config{Driver: store.DriverPostgres, DSN: dsn, MaxOpenConns: 8}, storetest.Logger())
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgres_ReviewConstraintAndCascade(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	author := storetest.User(t, s, "alice", domain.RoleUser)
	books := storetest.Category(t, s, "books")
	scifi := storetest.Genre(t, s, "scifi")
	dune := storetest.Title(t, s, "Dune", 1965, books, scifi)
	review := storetest.Review(t, s, dune, author, 8)

	err := s.CreateReview(ctx, &domain.Review{TitleID: dune.ID, AuthorID: author.ID, Text: "again", Score: 2})
	if !errors.Is(err, store.ErrDuplicateReview) {
		t.Fatalf("duplicate review err = %v", err)
	}

	if err := s.CreateComment(ctx, &domain.Comment{ReviewID: review.ID, AuthorID: author.ID, Text: "c"}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := s.DeleteTitle(ctx, dune.ID); err != nil {
		t.Fatalf("DeleteTitle: %v", err)
	}
	if n := count(t, s, "comments"); n != 0 {
		t.Fatalf("comments after title delete = %d", n)
	}
}

func TestPostgres_BulkInsertMovesSequence(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	if _, err := s.BulkInsert(ctx, "genres", []string{"id", "name", "slug"}, [][]any{{int64(40), "Drama", "drama"}}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	g := storetest.Genre(t, s, "scifi")
	if g.ID <= 40 {
		t.Fatalf("new genre id = %d, want > 40", g.ID)
	}
}
