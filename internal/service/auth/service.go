package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/mailer"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/pkg/config"
	"github.com/jiralite/api/pkg/crypto"
	"github.com/jiralite/api/pkg/jwt"
)

const resetTokenTTL = time.Hour

// Tokens is a signed session pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service handles signup, login and password lifecycle.
type Service struct {
	users  repository.UserRepository
	mail   mailer.Sender
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, mail mailer.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, mail: mail, logger: logger, cfg: cfg}
}

func (s Service) issueTokens(userID string) (*Tokens, error) {
	access, err := jwt.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Signup registers an email/password account and signs the user in.
func (s Service) Signup(ctx context.Context, name, email, password string) (*domain.User, *Tokens, error) {
	if name == "" || email == "" {
		return nil, nil, apperr.Validation("name and email are required")
	}
	if len(password) < 8 {
		return nil, nil, apperr.Validation("password must be at least 8 characters")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, apperr.Conflict("an account with this email already exists")
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AuthProvider: "email",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}
	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return user, tokens, nil
}

// Login verifies credentials. The same message covers an unknown email and a
// wrong password.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, *Tokens, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperr.Validation("email or password is incorrect")
		}
		return nil, nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperr.Validation("email or password is incorrect")
	}
	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := jwt.Parse(refreshToken, s.cfg.JWTSecret)
	if err != nil {
		return nil, apperr.Validation("invalid or expired token")
	}
	if _, err := s.users.GetUserByID(ctx, claims.UserID); err != nil {
		return nil, apperr.Validation("invalid or expired token")
	}
	return s.issueTokens(claims.UserID)
}

// Authorize resolves a bearer token to a user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	claims, err := jwt.Parse(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, apperr.Validation("invalid or expired token")
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation("invalid or expired token")
		}
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset emails a reset link. The response never reveals
// whether the email has an account.
func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := crypto.RandomToken(32)
	if err != nil {
		return err
	}
	reset := &domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateResetToken(ctx, reset); err != nil {
		return err
	}
	link := fmt.Sprintf("%s/reset-password/%s", s.cfg.FrontendBaseURL, token)
	subject, body := mailer.PasswordResetBody(user.Name, link)
	if err := s.mail.Send(user.Email, subject, body); err != nil {
		s.logger.Warn("password reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token. Tokens are single-use and
// expire one hour after issue.
func (s Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	reset, err := s.users.GetResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Validation("invalid or expired reset token")
		}
		return err
	}
	if reset.Used || time.Now().UTC().After(reset.ExpiresAt) {
		return apperr.Validation("invalid or expired reset token")
	}
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, reset.UserID, hash); err != nil {
		return err
	}
	if err := s.users.MarkResetTokenUsed(ctx, reset.ID); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", reset.UserID)
	return nil
}

// ChangePassword rotates the password for a signed-in user. Accounts created
// through an external provider have no password to change.
func (s Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	if user.AuthProvider != "email" {
		return apperr.Validation("password change is not available for this account")
	}
	if err := crypto.ComparePassword(user.PasswordHash, current); err != nil {
		return apperr.Validation("current password is incorrect")
	}
	if len(next) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	hash, err := crypto.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdateUserPassword(ctx, userID, hash)
}
