package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/repository/memory"
	"github.com/jiralite/api/pkg/config"
)

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(to, _, _ string) error {
	m.sent = append(m.sent, to)
	return m.err
}

type authFixture struct {
	repo *memory.Repository
	mail *stubMailer
	svc  Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := memory.New()
	mail := &stubMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		FrontendBaseURL: "http://localhost:3000",
	}
	return &authFixture{repo: repo, mail: mail, svc: New(repo, mail, logger, cfg)}
}

func TestSignupThenLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, tokens, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("signup returned empty tokens")
	}
	if user.AuthProvider != "email" {
		t.Fatalf("auth provider = %q, want email", user.AuthProvider)
	}

	if _, _, err := f.svc.Login(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := f.svc.Authorize(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authorized user = %q, want %q", got.ID, user.ID)
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := f.svc.Signup(ctx, "Imposter", "alice@example.com", "battery staple")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, unknownErr := f.svc.Login(ctx, "nobody@example.com", "whatever")
	_, _, wrongErr := f.svc.Login(ctx, "alice@example.com", "wrong password")
	for name, err := range map[string]error{"unknown email": unknownErr, "wrong password": wrongErr} {
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation, got %v", name, err)
		}
		if err.Error() != "email or password is incorrect" {
			t.Fatalf("%s: message %q leaks account existence", name, err.Error())
		}
	}
}

func TestRequestPasswordResetNeverRevealsAccounts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email must succeed silently, got %v", err)
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("mail sent for unknown account: %v", f.mail.sent)
	}

	if _, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0] != "alice@example.com" {
		t.Fatalf("mail recipients = %v", f.mail.sent)
	}
}

func TestConfirmPasswordResetIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	var token string
	for _, rt := range f.repo.ResetTokens {
		if rt.UserID == user.ID {
			token = rt.Token
		}
	}
	if token == "" {
		t.Fatal("no reset token stored")
	}

	if err := f.svc.ConfirmPasswordReset(ctx, token, "battery staple"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "alice@example.com", "battery staple"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	err = f.svc.ConfirmPasswordReset(ctx, token, "yet another one")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("second redemption: expected validation, got %v", err)
	}
}

func TestConfirmPasswordResetRejectsExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	var token string
	for _, rt := range f.repo.ResetTokens {
		rt.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		token = rt.Token
	}

	err := f.svc.ConfirmPasswordReset(ctx, token, "battery staple")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestChangePasswordRequiresEmailProvider(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	f.repo.Users[user.ID].AuthProvider = "google"

	err = f.svc.ChangePassword(ctx, user.ID, "correct horse", "battery staple")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.ID, "not the password", "battery staple"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.ID, "correct horse", "battery staple"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "alice@example.com", "battery staple"); err != nil {
		t.Fatalf("login with rotated password: %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, tokens, err := f.svc.Signup(ctx, "Alice", "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, "not-a-token"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("garbage token: expected validation, got %v", err)
	}
}
