package review_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/review"
	"yamdb/internal/store"
	"yamdb/internal/store/storetest"
)

type fixture struct {
	store  *store.SQLStore
	engine *review.Engine
	title  *domain.Title
	alice  access.Caller
	bob    access.Caller
	mod    access.Caller
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	authz, err := access.NewAuthorizer(storetest.Logger())
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	books := storetest.Category(t, s, "books")
	scifi := storetest.Genre(t, s, "scifi")
	return &fixture{
		store:  s,
		engine: review.NewEngine(s, s, authz, storetest.Logger()),
		title:  storetest.Title(t, s, "Dune", 1965, books, scifi),
		alice:  access.UserCaller(storetest.User(t, s, "alice", domain.RoleUser)),
		bob:    access.UserCaller(storetest.User(t, s, "bob", domain.RoleUser)),
		mod:    access.UserCaller(storetest.User(t, s, "mod", domain.RoleModerator)),
	}
}

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
func page() domain.Page          { return domain.Page{Number: 1, Size: 10} }
func kind(err error) domain.Kind { return domain.KindOf(err) }

func TestDuneScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.engine.CreateReview(ctx, f.alice, f.title.ID, domain.ReviewRequest{Text: "Spice must flow", Score: 8})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if r.Author != "alice" || r.ID == 0 {
		t.Fatalf("unexpected review %+v", r)
	}

	_, err = f.engine.CreateReview(ctx, f.alice, f.title.ID, domain.ReviewRequest{Text: "again", Score: 3})
	if !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("second review err = %v, want duplicate_review", err)
	}

	rating, err := f.engine.ComputeRating(ctx, f.title.ID)
	if err != nil {
		t.Fatalf("ComputeRating: %v", err)
	}
	if rating == nil || *rating != 8.0 {
		t.Fatalf("rating = %v, want 8.0", rating)
	}
}

func TestComputeRating(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rating, err := f.engine.ComputeRating(ctx, f.title.ID)
	if err != nil {
		t.Fatalf("ComputeRating: %v", err)
	}
	if rating != nil {
		t.Fatalf("rating without reviews = %v, want nil", *rating)
	}

	for _, step := range []struct {
		caller access.Caller
		score  int
	}{{f.alice, 7}, {f.bob, 8}, {f.mod, 8}} {
		if _, err := f.engine.CreateReview(ctx, step.caller, f.title.ID, domain.ReviewRequest{Text: "x", Score: step.score}); err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
	}
	rating, err = f.engine.ComputeRating(ctx, f.title.ID)
	if err != nil {
		t.Fatalf("ComputeRating: %v", err)
	}
	// 23 / 3 = 7.666...
	if rating == nil || *rating != 7.7 {
		t.Fatalf("rating = %v, want 7.7", rating)
	}

	if _, err := f.engine.ComputeRating(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown title err = %v, want not_found", err)
	}
}

func TestCreateReview_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   domain.ReviewRequest
		field string
	}{
		{"score too low", domain.ReviewRequest{Text: "x", Score: 0}, "score"},
		{"score too high", domain.ReviewRequest{Text: "x", Score: 11}, "score"},
		{"empty text", domain.ReviewRequest{Text: "", Score: 5}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateReview(ctx, f.alice, f.title.ID, tt.req)
			var derr *domain.Error
			if !errors.As(err, &derr) || derr.Kind != domain.KindValidation || derr.Field != tt.field {
				t.Fatalf("err = %v, want validation error on %s", err, tt.field)
			}
		})
	}
}

func TestCreateReview_AccessAndMissingTitle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.CreateReview(ctx, access.Anonymous(), f.title.ID, domain.ReviewRequest{Text: "x", Score: 5})
	if kind(err) != domain.KindUnauthenticated {
		t.Fatalf("anonymous err = %v, want unauthenticated", err)
	}
	_, err = f.engine.CreateReview(ctx, f.alice, 4242, domain.ReviewRequest{Text: "x", Score: 5})
	if kind(err) != domain.KindNotFound {
		t.Fatalf("missing title err = %v, want not_found", err)
	}
}

func TestCreateReview_ConcurrentSingleWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		dupes    int
		failures []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateReview(ctx, f.bob, f.title.ID, domain.ReviewRequest{Text: "race", Score: 6})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrDuplicateReview):
				dupes++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if created != 1 || dupes != n-1 {
		t.Fatalf("created=%d duplicates=%d, want 1 and %d", created, dupes, n-1)
	}
}

func TestUpdateReview_Ownership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.engine.CreateReview(ctx, f.alice, f.title.ID, domain.ReviewRequest{Text: "good", Score: 7})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	_, err = f.engine.UpdateReview(ctx, f.bob, f.title.ID, r.ID, domain.UpdateReviewRequest{Score: intPtr(1)})
	if kind(err) != domain.KindForbidden {
		t.Fatalf("non-author update err = %v, want forbidden", err)
	}
	_, err = f.engine.UpdateReview(ctx, access.Anonymous(), f.title.ID, r.ID, domain.UpdateReviewRequest{Score: intPtr(1)})
	if kind(err) != domain.KindUnauthenticated {
		t.Fatalf("anonymous update err = %v, want unauthenticated", err)
	}

	updated, err := f.engine.UpdateReview(ctx, f.alice, f.title.ID, r.ID, domain.UpdateReviewRequest{Score: intPtr(9)})
	if err != nil {
		t.Fatalf("author update: %v", err)
	}
	if updated.Score != 9 || updated.Text != "good" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	updated, err = f.engine.UpdateReview(ctx, f.mod, f.title.ID, r.ID, domain.UpdateReviewRequest{Text: strPtr("moderated")})
	if err != nil {
		t.Fatalf("moderator update: %v", err)
	}
	if updated.Text != "moderated" || updated.Author != "alice" {
		t.Fatalf("moderator update = %+v", updated)
	}

	_, err = f.engine.UpdateReview(ctx, f.alice, f.title.ID, r.ID, domain.UpdateReviewRequest{Score: intPtr(42)})
	if kind(err) != domain.KindValidation {
		t.Fatalf("out of range update err = %v, want validation", err)
	}
}

func TestReviewScopedByTitle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := storetest.Title(t, f.store, "Solaris", 1961, nil)

	r, err := f.engine.CreateReview(ctx, f.alice, f.title.ID, domain.ReviewRequest{Text: "x", Score: 5})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if _, err := f.engine.GetReview(ctx, other.ID, r.ID); kind(err) != domain.KindNotFound {
		t.Fatalf("GetReview under wrong title err = %v, want not_found", err)
	}
	if err := f.engine.DeleteReview(ctx, f.alice, other.ID, r.ID); kind(err) != domain.KindNotFound {
		t.Fatalf("DeleteReview under wrong title err = %v, want not_found", err)
	}
}

func TestCommentsLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.engine.CreateReview(ctx, f.alice, f.title.ID, domain.ReviewRequest{Text: "x", Score: 5})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	// Comments are unbounded per user.
	for i := 0; i < 3; i++ {
		if _, err := f.engine.CreateComment(ctx, f.bob, f.title.ID, r.ID, domain.CommentRequest{Text: "agree"}); err != nil {
			t.Fatalf("CreateComment %d: %v", i, err)
		}
	}
	comments, total, err := f.engine.ListComments(ctx, f.title.ID, r.ID, page())
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if total != 3 || len(comments) != 3 || comments[0].Author != "bob" {
		t.Fatalf("comments = %+v total=%d", comments, total)
	}

	cm := comments[0]
	if _, err := f.engine.UpdateComment(ctx, f.alice, f.title.ID, r.ID, cm.ID, domain.CommentRequest{Text: "no"}); kind(err) != domain.KindForbidden {
		t.Fatalf("non-author comment update err = %v, want forbidden", err)
	}
	if _, err := f.engine.UpdateComment(ctx, f.bob, f.title.ID, r.ID, cm.ID, domain.CommentRequest{Text: "edited"}); err != nil {
		t.Fatalf("author comment update: %v", err)
	}
	if err := f.engine.DeleteComment(ctx, f.mod, f.title.ID, r.ID, cm.ID); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if _, err := f.engine.GetComment(ctx, f.title.ID, r.ID, cm.ID); kind(err) != domain.KindNotFound {
		t.Fatalf("deleted comment err = %v, want not_found", err)
	}

	// Deleting the review takes the remaining comments with it.
	if err := f.engine.DeleteReview(ctx, f.alice, f.title.ID, r.ID); err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if _, _, err := f.engine.ListComments(ctx, f.title.ID, r.ID, page()); kind(err) != domain.KindNotFound {
		t.Fatalf("comments of deleted review err = %v, want not_found", err)
	}
}

func TestRatings_Batch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := storetest.Title(t, f.store, "Solaris", 1961, nil)
	empty := storetest.Title(t, f.store, "Roadside Picnic", 1972, nil)

	storetest.Review(t, f.store, f.title, mustUser(t, f, "alice"), 10)
	storetest.Review(t, f.store, other, mustUser(t, f, "alice"), 4)
	storetest.Review(t, f.store, other, mustUser(t, f, "bob"), 5)

	ratings, err := f.engine.Ratings(ctx, []int64{f.title.ID, other.ID, empty.ID})
	if err != nil {
		t.Fatalf("Ratings: %v", err)
	}
	if got := ratings[f.title.ID]; got == nil || *got != 10 {
		t.Errorf("Dune rating = %v, want 10", got)
	}
	if got := ratings[other.ID]; got == nil || *got != 4.5 {
		t.Errorf("Solaris rating = %v, want 4.5", got)
	}
	if got := ratings[empty.ID]; got != nil {
		t.Errorf("unreviewed rating = %v, want nil", *got)
	}
}

func mustUser(t *testing.T, f *fixture, username string) *domain.User {
	t.Helper()
	u, err := f.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("GetUserByUsername(%s): %v", username, err)
	}
	return u
}
