package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yamdb/internal/domain"
)

const userColumns = `id, username, email, first_name, last_name, bio, role, confirmed, last_login, date_joined`

func (s *SQLStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO users (username, email, first_name, last_name, bio, role, confirmed, last_login, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	s.logger.DebugContext(ctx, "Executing CreateUser query", slog.String("username", user.Username))
	err := s.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.FirstName, user.LastName, user.Bio,
		user.Role, user.Confirmed, user.LastLogin, user.DateJoined,
	).Scan(&user.ID)
	if err != nil {
		return s.mapUserWriteError(ctx, err, user.Username)
	}
	s.logger.InfoContext(ctx, "User created in DB", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return nil
}

func (s *SQLStore) mapUserWriteError(ctx context.Context, err error, username string) error {
	if detail, ok := uniqueViolation(err); ok {
		s.logger.WarnContext(ctx, "User write rejected by unique constraint", slog.String("username", username), slog.String("constraint", detail))
		switch {
		case violates(detail, constraintUsersUsername, "users.username"):
			return ErrDuplicateUsername
		case violates(detail, constraintUsersEmail, "users.email"):
			return ErrDuplicateEmail
		}
	}
	s.logger.ErrorContext(ctx, "Failed to write user to DB", slog.String("username", username), slog.String("error", err.Error()))
	return fmt.Errorf("failed to write user: %w", err)
}

func (s *SQLStore) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var user domain.User
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := s.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get user from DB", slog.String("where", where), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// UpdateUser overwrites every mutable column of the user identified by
// user.ID.
func (s *SQLStore) UpdateUser(ctx context.Context, user *domain.User) error {
	query := s.rebind(`UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, bio = ?,
		role = ?, confirmed = ?, last_login = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		user.Username, user.Email, user.FirstName, user.LastName, user.Bio,
		user.Role, user.Confirmed, user.LastLogin, user.ID,
	)
	if err != nil {
		return s.mapUserWriteError(ctx, err, user.Username)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	s.logger.DebugContext(ctx, "User updated in DB", slog.Int64("userID", user.ID))
	return nil
}

// DeleteUser removes the user; their reviews and comments cascade.
func (s *SQLStore) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE username = ?`), username)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete user from DB", slog.String("username", username), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	s.logger.InfoContext(ctx, "User deleted from DB", slog.String("username", username))
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context, search string, page domain.Page) ([]domain.User, int, error) {
	where := ""
	var args []any
	if search != "" {
		where = ` WHERE LOWER(username) LIKE ?`
		args = append(args, likePattern(search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.rebind(`SELECT COUNT(*) FROM users`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	users := []domain.User{}
	if total == 0 {
		return users, 0, nil
	}

	query := s.rebind(`SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username LIMIT ? OFFSET ?`)
	args = append(args, page.Size, page.Offset())
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
