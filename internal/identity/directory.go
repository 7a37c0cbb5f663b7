package identity

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

// Directory manages accounts: admin CRUD under /users/ and the caller's own
// profile under /users/me/.
type Directory struct {
	users  store.UserStore
	authz  *access.Authorizer
	logger *slog.Logger
}

func NewDirectory(users store.UserStore, authz *access.Authorizer, logger *slog.Logger) *Directory {
	return &Directory{users: users, authz: authz, logger: logger}
}

func mapUserErr(err error) error {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return domain.NotFound("user")
	case errors.Is(err, store.ErrDuplicateUsername):
		return domain.Validation("username", "a user with that username already exists")
	case errors.Is(err, store.ErrDuplicateEmail):
		return domain.Validation("email", "a user with this email already exists")
	}
	return err
}

func (d *Directory) List(ctx context.Context, c access.Caller, search string, page domain.Page) ([]domain.User, int, error) {
	if err := d.authz.Authorize(ctx, c, access.Users, access.Read); err != nil {
		return nil, 0, err
	}
	users, total, err := d.users.ListUsers(ctx, search, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (d *Directory) Get(ctx context.Context, c access.Caller, username string) (*domain.User, error) {
	if err := d.authz.Authorize(ctx, c, access.Users, access.Read); err != nil {
		return nil, err
	}
	u, err := d.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return u, nil
}

// Create adds an account directly. The user still has to go through signup
// with the same email to obtain a token.
func (d *Directory) Create(ctx context.Context, c access.Caller, req domain.CreateUserRequest) (*domain.User, error) {
	if err := d.authz.Authorize(ctx, c, access.Users, access.Create); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:   req.Username,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Bio:        req.Bio,
		Role:       req.Role,
		DateJoined: time.Now().UTC(),
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if err := d.users.CreateUser(ctx, u); err != nil {
		return nil, mapUserErr(err)
	}
	d.logger.InfoContext(ctx, "User created by admin", slog.String("username", u.Username), slog.String("by", c.Username))
	return u, nil
}

func (d *Directory) Update(ctx context.Context, c access.Caller, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := d.authz.Authorize(ctx, c, access.Users, access.Update); err != nil {
		return nil, err
	}
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	u, err := d.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, mapUserErr(err)
	}
	req.Apply(u)
	if err := d.users.UpdateUser(ctx, u); err != nil {
		return nil, mapUserErr(err)
	}
	return u, nil
}

func (d *Directory) Delete(ctx context.Context, c access.Caller, username string) error {
	if err := d.authz.Authorize(ctx, c, access.Users, access.Delete); err != nil {
		return err
	}
	if err := d.users.DeleteUser(ctx, username); err != nil {
		return mapUserErr(err)
	}
	d.logger.InfoContext(ctx, "User deleted", slog.String("username", username), slog.String("by", c.Username))
	return nil
}

// Me returns the caller's own profile.
func (d *Directory) Me(ctx context.Context, c access.Caller) (*domain.User, error) {
	if err := d.authz.Authorize(ctx, c, access.Me, access.Read); err != nil {
		return nil, err
	}
	u, err := d.users.GetUserByID(ctx, c.UserID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return u, nil
}

// UpdateMe edits the caller's own profile. The role is always kept as
// stored, whatever the payload says.
func (d *Directory) UpdateMe(ctx context.Context, c access.Caller, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := d.authz.Authorize(ctx, c, access.Me, access.Update); err != nil {
		return nil, err
	}
	req.Role = nil
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	u, err := d.users.GetUserByID(ctx, c.UserID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	req.Apply(u)
	if err := d.users.UpdateUser(ctx, u); err != nil {
		return nil, mapUserErr(err)
	}
	return u, nil
}
