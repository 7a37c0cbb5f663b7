package clients_test

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"yamdb/internal/access"
	"yamdb/internal/catalog"
	"yamdb/internal/clients"
	"yamdb/internal/domain"
	catalogrpc "yamdb/internal/grpc"
	"yamdb/internal/review"
	"yamdb/internal/store"
	"yamdb/internal/store/storetest"
)

func startServer(t *testing.T) (*store.SQLStore, *clients.CatalogClient) {
	t.Helper()
	logger := storetest.Logger()
	s := storetest.New(t)
	authz, err := access.NewAuthorizer(logger)
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	engine := review.NewEngine(s, s, authz, logger)
	svc := catalog.NewService(s, engine, authz, logger)

	lis := bufconn.Listen(1 << 20)
	srv := catalogrpc.NewGRPCServer(catalogrpc.NewServer(svc, s, logger), logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := clients.NewCatalogClient("passthrough:///bufnet", logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewCatalogClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestCatalogClient_Title(t *testing.T) {
	s, client := startServer(t)
	ctx := context.Background()

	books := storetest.Category(t, s, "books")
	scifi := storetest.Genre(t, s, "scifi")
	dune := storetest.Title(t, s, "Dune", 1965, books, scifi)
	storetest.Review(t, s, dune, storetest.User(t, s, "alice", domain.RoleUser), 8)
	storetest.Review(t, s, dune, storetest.User(t, s, "bob", domain.RoleUser), 7)

	ok, err := client.TitleExists(ctx, dune.ID)
	if err != nil || !ok {
		t.Fatalf("TitleExists = %v, %v", ok, err)
	}
	ok, err = client.TitleExists(ctx, dune.ID+100)
	if err != nil || ok {
		t.Fatalf("TitleExists(missing) = %v, %v", ok, err)
	}

	title, err := client.GetTitle(ctx, dune.ID)
	if err != nil {
		t.Fatalf("GetTitle: %v", err)
	}
	if title["name"] != "Dune" || title["rating"] != 7.5 {
		t.Fatalf("title = %v", title)
	}
	cat, _ := title["category"].(map[string]any)
	if cat["slug"] != "books" {
		t.Fatalf("category = %v", title["category"])
	}

	_, err = client.GetTitle(ctx, dune.ID+100)
	if !clients.IsNotFound(err) {
		t.Fatalf("GetTitle(missing) err = %v, want NotFound", err)
	}
}

func TestCatalogClient_UserAndHealth(t *testing.T) {
	s, client := startServer(t)
	ctx := context.Background()
	storetest.User(t, s, "alice", domain.RoleModerator)

	u, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u["role"] != "moderator" || u["email"] != "alice@example.com" {
		t.Fatalf("user = %v", u)
	}
	if _, err := client.GetUser(ctx, "ghost"); !clients.IsNotFound(err) {
		t.Fatalf("GetUser(ghost) err = %v, want NotFound", err)
	}

	healthy, err := client.Healthy(ctx)
	if err != nil || !healthy {
		t.Fatalf("Healthy = %v, %v", healthy, err)
	}
}

// The client can stand in for the store when the review engine checks
// title existence.
func TestCatalogClient_AsTitleChecker(t *testing.T) {
	s, client := startServer(t)
	ctx := context.Background()
	authz, err := access.NewAuthorizer(storetest.Logger())
	if err != nil {
		t.Fatal(err)
	}
	engine := review.NewEngine(s, client, authz, storetest.Logger())
	dune := storetest.Title(t, s, "Dune", 1965, nil)
	alice := access.UserCaller(storetest.User(t, s, "alice", domain.RoleUser))

	if _, err := engine.CreateReview(ctx, alice, dune.ID, domain.ReviewRequest{Text: "x", Score: 9}); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if _, err := engine.CreateReview(ctx, alice, dune.ID+1, domain.ReviewRequest{Text: "x", Score: 9}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("missing title err = %v, want not_found", err)
	}
}
