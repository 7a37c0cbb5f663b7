// Package identity implements passwordless signup (an emailed confirmation
// code exchanged for an access token) and account management.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"yamdb/internal/domain"
	"yamdb/internal/mail"
	"yamdb/internal/metrics"
	"yamdb/internal/store"
	"yamdb/internal/validation"
	"yamdb/pkg/auth"
)

// CodeIssuer produces and checks state-bound confirmation codes.
type CodeIssuer interface {
	Generate(sub auth.CodeSubject) string
	Verify(sub auth.CodeSubject, code string) bool
}

// Service runs the signup and confirmation flow.
type Service struct {
	users  store.UserStore
	codes  CodeIssuer
	tokens auth.TokenManager
	mailer mail.Sender
	from   string
	logger *slog.Logger
	now    func() time.Time
}

func NewService(users store.UserStore, codes CodeIssuer, tokens auth.TokenManager, mailer mail.Sender, from string, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		mailer: mailer,
		from:   from,
		logger: logger,
		now:    time.Now,
	}
}

func subjectOf(u *domain.User) auth.CodeSubject {
	return auth.CodeSubject{UserID: u.ID, Email: u.Email, Confirmed: u.Confirmed, LastLogin: u.LastLogin}
}

// RequestSignup creates a pending user (or finds the existing one) and mails
// it a confirmation code. An existing username registered with a different
// email is a conflict and nothing is sent. If mailing fails the pending user
// is kept and a dispatch error is returned, so the caller can simply retry.
func (s *Service) RequestSignup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResponse, error) {
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	switch {
	case err == nil:
		if !strings.EqualFold(user.Email, req.Email) {
			s.logger.WarnContext(ctx, "Signup for existing username with a different email", slog.String("username", req.Username))
			return nil, domain.Conflict("email", "this username is registered with a different email")
		}
		s.logger.InfoContext(ctx, "Re-sending confirmation code", slog.String("username", user.Username))
	case errors.Is(err, store.ErrUserNotFound):
		user, err = s.createPending(ctx, req)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.sendCode(ctx, user); err != nil {
		return nil, err
	}
	return &domain.SignupResponse{Username: user.Username, Email: user.Email}, nil
}

func (s *Service) createPending(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, domain.Validation("email", "a user with this email already exists")
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	user := &domain.User{
		Username:   req.Username,
		Email:      req.Email,
		Role:       domain.RoleUser,
		DateJoined: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			return nil, domain.Conflict("username", "this username is already taken")
		case errors.Is(err, store.ErrDuplicateEmail):
			return nil, domain.Validation("email", "a user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create pending user: %w", err)
	}
	s.logger.InfoContext(ctx, "Pending user created", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

func (s *Service) sendCode(ctx context.Context, user *domain.User) error {
	code := s.codes.Generate(subjectOf(user))
	msg := mail.Message{
		From:    s.from,
		To:      user.Email,
		Subject: "YaMDb confirmation code",
		Body:    fmt.Sprintf("Hello, %s!\n\nYour confirmation code: %s\n", user.Username, code),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send confirmation code",
			slog.String("username", user.Username), slog.String("error", err.Error()))
		return domain.Dispatch(err)
	}
	metrics.ConfirmationCodesSent.Inc()
	s.logger.InfoContext(ctx, "Confirmation code sent", slog.String("username", user.Username))
	return nil
}

// ConfirmSignup exchanges a confirmation code for an access token. Success
// marks the user confirmed and stamps the login time, which invalidates
// every code issued earlier.
func (s *Service) ConfirmSignup(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
	if err := validation.Struct(ctx, req); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.NotFound("user")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.codes.Verify(subjectOf(user), req.ConfirmationCode) {
		s.logger.WarnContext(ctx, "Invalid confirmation code", slog.String("username", user.Username))
		return nil, domain.InvalidCode()
	}

	now := s.now().UTC()
	user.Confirmed = true
	user.LastLogin = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to confirm user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	metrics.TokensIssued.Inc()
	s.logger.InfoContext(ctx, "Access token issued", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return &domain.TokenResponse{Token: token}, nil
}
