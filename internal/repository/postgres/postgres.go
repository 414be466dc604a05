package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository         = (*Repository)(nil)
	_ repository.TeamRepository         = (*Repository)(nil)
	_ repository.ProjectRepository      = (*Repository)(nil)
	_ repository.IssueRepository        = (*Repository)(nil)
	_ repository.CommentRepository      = (*Repository)(nil)
	_ repository.NotificationRepository = (*Repository)(nil)
	_ repository.RateLimitRepository    = (*Repository)(nil)
)

// CreateUser inserts an account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, email, password_hash, auth_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.AuthProvider, user.CreatedAt, user.UpdatedAt)
	return err
}

// GetUserByEmail fetches a non-deleted account by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, auth_provider, created_at, updated_at
		FROM users WHERE email = $1 AND deleted_at IS NULL`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID fetches a non-deleted account by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, auth_provider, created_at, updated_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.AuthProvider, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, userID string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateResetToken stores a password reset token.
func (r *Repository) CreateResetToken(ctx context.Context, token *domain.PasswordResetToken) error {
	const query = `INSERT INTO password_reset_tokens (id, user_id, token, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, token.Used, token.CreatedAt)
	return err
}

// GetResetToken fetches a reset token by its opaque value.
func (r *Repository) GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	const query = `SELECT id, user_id, token, expires_at, used, created_at
		FROM password_reset_tokens WHERE token = $1`
	row := r.pool.QueryRow(ctx, query, token)
	var t domain.PasswordResetToken
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// MarkResetTokenUsed burns a reset token.
func (r *Repository) MarkResetTokenUsed(ctx context.Context, id string) error {
	const query = `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
