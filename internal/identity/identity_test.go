package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"yamdb/internal/access"
	"yamdb/internal/domain"
	"yamdb/internal/mail"
	"yamdb/internal/store"
	"yamdb/internal/store/storetest"
	"yamdb/pkg/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatal("no message sent")
	}
	body := o.sent[len(o.sent)-1].Body
	const marker = "Your confirmation code: "
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatalf("no code in body %q", body)
	}
	return strings.TrimSpace(body[i+len(marker):])
}

type harness struct {
	store  *store.SQLStore
	svc    *Service
	tokens auth.TokenManager
	mail   *outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := storetest.New(t)
	codes, err := auth.NewCodeGenerator(testSecret, 72*time.Hour)
	if err != nil {
		t.Fatalf("NewCodeGenerator: %v", err)
	}
	tokens, err := auth.NewTokenManager(testSecret, time.Hour, "yamdb")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	box := &outbox{}
	return &harness{
		store:  s,
		svc:    NewService(s, codes, tokens, box, "noreply@yamdb.local", storetest.Logger()),
		tokens: tokens,
		mail:   box,
	}
}

func TestSignupAndConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("RequestSignup: %v", err)
	}
	if resp.Username != "alice" || resp.Email != "alice@example.com" {
		t.Fatalf("response = %+v", resp)
	}
	if h.mail.sent[0].To != "alice@example.com" || h.mail.sent[0].From != "noreply@yamdb.local" {
		t.Fatalf("message = %+v", h.mail.sent[0])
	}
	code := h.mail.lastCode(t)

	pending, err := h.store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("pending user: %v", err)
	}
	if pending.Confirmed || pending.Role != domain.RoleUser {
		t.Fatalf("pending user = %+v", pending)
	}

	_, err = h.svc.ConfirmSignup(ctx, domain.TokenRequest{Username: "alice", ConfirmationCode: "bogus"})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("bad code err = %v, want invalid_code", err)
	}

	tok, err := h.svc.ConfirmSignup(ctx, domain.TokenRequest{Username: "alice", ConfirmationCode: code})
	if err != nil {
		t.Fatalf("ConfirmSignup: %v", err)
	}
	claims, err := h.tokens.Validate(tok.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != pending.ID || claims.Role != "user" {
		t.Fatalf("claims = %+v", claims)
	}

	confirmed, err := h.store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if !confirmed.Confirmed || confirmed.LastLogin == nil {
		t.Fatalf("user not confirmed: %+v", confirmed)
	}

	// The login stamp changed the code's bound state, so the code is spent.
	_, err = h.svc.ConfirmSignup(ctx, domain.TokenRequest{Username: "alice", ConfirmationCode: code})
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("reused code err = %v, want invalid_code", err)
	}
}

func TestRequestSignup_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("RequestSignup: %v", err)
	}

	t.Run("same email resends", func(t *testing.T) {
		if _, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "alice@example.com"}); err != nil {
			t.Fatalf("resend: %v", err)
		}
		if len(h.mail.sent) != 2 {
			t.Fatalf("sent = %d, want 2", len(h.mail.sent))
		}
	})

	t.Run("different email conflicts", func(t *testing.T) {
		before := len(h.mail.sent)
		_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "other@example.com"})
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("err = %v, want conflict", err)
		}
		if len(h.mail.sent) != before {
			t.Fatal("mail sent on conflict")
		}
	})

	t.Run("email taken by another user", func(t *testing.T) {
		_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "bob", Email: "alice@example.com"})
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Kind != domain.KindValidation || derr.Field != "email" {
			t.Fatalf("err = %v, want validation on email", err)
		}
	})

	t.Run("reserved username", func(t *testing.T) {
		_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "me", Email: "me@example.com"})
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Kind != domain.KindValidation || derr.Field != "username" {
			t.Fatalf("err = %v, want validation on username", err)
		}
	})

	t.Run("bad email", func(t *testing.T) {
		_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "carol", Email: "not-an-email"})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
	})
}

func TestRequestSignup_DispatchFailureKeepsUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mail.err = errors.New("relay down")

	_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "alice@example.com"})
	if !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("err = %v, want dispatch_error", err)
	}
	if _, err := h.store.GetUserByUsername(ctx, "alice"); err != nil {
		t.Fatalf("pending user dropped after mail failure: %v", err)
	}

	h.mail.err = nil
	if _, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestConfirmSignup_UnknownUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ConfirmSignup(context.Background(), domain.TokenRequest{Username: "ghost", ConfirmationCode: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestDirectory(t *testing.T) {
	s := storetest.New(t)
	authz, err := access.NewAuthorizer(storetest.Logger())
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	d := NewDirectory(s, authz, storetest.Logger())
	ctx := context.Background()

	admin := access.UserCaller(storetest.User(t, s, "root", domain.RoleAdmin))
	alice := access.UserCaller(storetest.User(t, s, "alice", domain.RoleUser))
	mod := access.UserCaller(storetest.User(t, s, "mod", domain.RoleModerator))

	if _, _, err := d.List(ctx, mod, "", domain.Page{Number: 1, Size: 10}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("moderator list err = %v, want forbidden", err)
	}
	users, total, err := d.List(ctx, admin, "ali", domain.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || users[0].Username != "alice" {
		t.Fatalf("search = %+v", users)
	}

	created, err := d.Create(ctx, admin, domain.CreateUserRequest{Username: "bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Role != domain.RoleUser {
		t.Fatalf("default role = %q", created.Role)
	}
	if _, err := d.Create(ctx, admin, domain.CreateUserRequest{Username: "bob", Email: "bob2@example.com"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("duplicate username err = %v, want validation", err)
	}

	role := domain.RoleModerator
	updated, err := d.Update(ctx, admin, "bob", domain.UpdateUserRequest{Role: &role})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Role != domain.RoleModerator || updated.Email != "bob@example.com" {
		t.Fatalf("updated = %+v", updated)
	}

	// A user cannot promote themselves through /users/me/.
	bio := "reader"
	promote := domain.RoleAdmin
	me, err := d.UpdateMe(ctx, alice, domain.UpdateUserRequest{Bio: &bio, Role: &promote})
	if err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if me.Role != domain.RoleUser || me.Bio != "reader" {
		t.Fatalf("me = %+v", me)
	}
	if _, err := d.Me(ctx, access.Anonymous()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous me err = %v, want unauthenticated", err)
	}

	if err := d.Delete(ctx, admin, "bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Get(ctx, admin, "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted user err = %v, want not_found", err)
	}
}
