package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yamdb/internal/domain"
	"yamdb/internal/store/storetest"
)

func TestImport_FullDataset(t *testing.T) {
	s := storetest.New(t)
	imp := New(s, storetest.Logger())
	ctx := context.Background()

	files := []struct {
		model string
		data  string
		want  int
	}{
		{"users", "id,username,email,role,bio,first_name,last_name\n100,alice,alice@example.com,user,,,\n101,bob,bob@example.com,moderator,,Bob,\n", 2},
		{"category", "\ufeffid,name,slug\n1,Books,books\n2,Films,films\n", 2},
		{"genre", "id,name,slug\n1,Sci-Fi,scifi\n", 1},
		{"titles", "id,name,year,category,description\n1,Dune,1965,1,\n2,Untitled,2001,,none\n", 2},
		{"genre_title", "id,title_id,genre_id\n1,1,1\n", 1},
		{"review", "id,title_id,text,author,score,pub_date\n1,1,great,100,8,2019-09-24T21:08:21.567Z\n2,1,good,101,7,\"2019-09-25 10:00:00\"\n", 2},
		{"comments", "id,review_id,text,author\n1,1,agreed,101\n", 1},
	}
	for _, f := range files {
		n, err := imp.Import(ctx, f.model, strings.NewReader(f.data))
		if err != nil {
			t.Fatalf("Import(%s): %v", f.model, err)
		}
		if n != f.want {
			t.Fatalf("Import(%s) = %d rows, want %d", f.model, n, f.want)
		}
	}

	title, err := s.GetTitle(ctx, 1)
	if err != nil {
		t.Fatalf("GetTitle: %v", err)
	}
	if title.Category == nil || title.Category.Slug != "books" || len(title.Genres) != 1 {
		t.Fatalf("title = %+v", title)
	}
	untitled, err := s.GetTitle(ctx, 2)
	if err != nil {
		t.Fatalf("GetTitle(2): %v", err)
	}
	if untitled.Category != nil {
		t.Fatalf("empty category column should import as no category, got %+v", untitled.Category)
	}

	reviews, total, err := s.ListReviews(ctx, 1, domain.Page{Number: 1, Size: 10})
	if err != nil || total != 2 {
		t.Fatalf("ListReviews = %d, %v", total, err)
	}
	for _, r := range reviews {
		if r.PubDate.IsZero() {
			t.Fatalf("review %d has no pub_date", r.ID)
		}
	}
	comments, total, err := s.ListComments(ctx, 1, domain.Page{Number: 1, Size: 10})
	if err != nil || total != 1 || comments[0].PubDate.IsZero() {
		t.Fatalf("ListComments = %+v, %d, %v", comments, total, err)
	}

	bob, err := s.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if bob.Role != domain.RoleModerator || bob.FirstName != "Bob" || bob.DateJoined.IsZero() {
		t.Fatalf("bob = %+v", bob)
	}

	// Rows created after an import must not collide with imported ids.
	carol := storetest.User(t, s, "carol", domain.RoleUser)
	if carol.ID <= 101 {
		t.Fatalf("new user id = %d, want above imported ids", carol.ID)
	}
}

func TestImport_Errors(t *testing.T) {
	s := storetest.New(t)
	imp := New(s, storetest.Logger())
	ctx := context.Background()

	tests := []struct {
		name  string
		model string
		data  string
		want  string
	}{
		{"unknown model", "actors", "id\n1\n", "unknown model"},
		{"empty file", "genre", "", "file is empty"},
		{"unknown column", "genre", "id,name,colour\n1,a,red\n", "cannot be imported"},
		{"duplicate column", "genre", "id,slug,slug\n1,a,b\n", "appears twice"},
		{"bad integer", "titles", "id,name,year\n1,Dune,soon\n", "line 2: column year"},
		{"bad time", "reviews", "id,title_id,author,text,score,pub_date\n1,1,1,x,5,yesterday\n", "cannot parse time"},
		{"missing id value", "genre", "id,name,slug\n,a,a\n", "value is required"},
		{"ragged row", "genre", "id,name,slug\n1,a\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := imp.Import(ctx, tt.model, strings.NewReader(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestImport_HeaderOnly(t *testing.T) {
	s := storetest.New(t)
	n, err := New(s, storetest.Logger()).Import(context.Background(), "genre", strings.NewReader("id,name,slug\n"))
	if err != nil || n != 0 {
		t.Fatalf("Import = %d, %v", n, err)
	}
}

func TestImportFile(t *testing.T) {
	s := storetest.New(t)
	imp := New(s, storetest.Logger())
	imp.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte("username,email,confirmed\ndave,dave@example.com,true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := imp.ImportFile(context.Background(), "user", path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	dave, err := s.GetUserByUsername(context.Background(), "dave")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if !dave.Confirmed || dave.Role != domain.RoleUser || !dave.DateJoined.Equal(imp.now()) {
		t.Fatalf("dave = %+v", dave)
	}

	if _, err := imp.ImportFile(context.Background(), "user", filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImportDir(t *testing.T) {
	s := storetest.New(t)
	dir := t.TempDir()
	files := map[string]string{
		"category.csv": "id,name,slug\n1,Books,books\n",
		"titles.csv":   "id,name,year,category\n1,Dune,1965,1\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := New(s, storetest.Logger()).ImportDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}
	if loaded["categories"] != 1 || loaded["titles"] != 1 || len(loaded) != 2 {
		t.Fatalf("loaded = %v", loaded)
	}
	title, err := s.GetTitle(context.Background(), 1)
	if err != nil || title.Category == nil || title.Category.Slug != "books" {
		t.Fatalf("GetTitle = %+v, %v", title, err)
	}
}
