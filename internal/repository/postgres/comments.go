package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.IssueID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) queryComments(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	return comments, rows.Err()
}

// CreateComment inserts a comment.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `INSERT INTO comments (id, issue_id, user_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, comment.ID, comment.IssueID, comment.UserID, comment.Content,
		comment.CreatedAt, comment.UpdatedAt)
	return err
}

// GetCommentByID returns a non-deleted comment.
func (r *Repository) GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error) {
	const query = `SELECT id, issue_id, user_id, content, created_at, updated_at
		FROM comments WHERE id = $1 AND deleted_at IS NULL`
	return scanComment(r.pool.QueryRow(ctx, query, commentID))
}

// UpdateComment replaces comment content and returns the updated row.
func (r *Repository) UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error) {
	const query = `UPDATE comments SET content = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, issue_id, user_id, content, created_at, updated_at`
	return scanComment(r.pool.QueryRow(ctx, query, commentID, content))
}

// SoftDeleteComment marks a comment deleted.
func (r *Repository) SoftDeleteComment(ctx context.Context, commentID string) error {
	const query = `UPDATE comments SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, commentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListCommentsByIssue returns a page of an issue's comments, oldest first.
func (r *Repository) ListCommentsByIssue(ctx context.Context, issueID string, limit, offset int) ([]domain.Comment, error) {
	const query = `SELECT id, issue_id, user_id, content, created_at, updated_at
		FROM comments WHERE issue_id = $1 AND deleted_at IS NULL
		ORDER BY created_at LIMIT $2 OFFSET $3`
	return r.queryComments(ctx, query, issueID, limit, offset)
}

// CountCommentsByIssue counts non-deleted comments on an issue.
func (r *Repository) CountCommentsByIssue(ctx context.Context, issueID string) (int, error) {
	const query = `SELECT COUNT(1) FROM comments WHERE issue_id = $1 AND deleted_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, issueID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListRecentCommentsByUser returns the newest comments authored by a user.
func (r *Repository) ListRecentCommentsByUser(ctx context.Context, userID string, limit int) ([]domain.Comment, error) {
	const query = `SELECT id, issue_id, user_id, content, created_at, updated_at
		FROM comments WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2`
	return r.queryComments(ctx, query, userID, limit)
}
