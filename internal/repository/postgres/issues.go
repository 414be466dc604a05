package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

const issueColumns = `id, project_id, owner_id, title, description, status, priority,
	assignee_user_id, due_date, position,
	ai_summary, ai_summary_cached_at, ai_suggestion, ai_suggestion_cached_at,
	created_at, updated_at`

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var i domain.Issue
	err := row.Scan(&i.ID, &i.ProjectID, &i.OwnerID, &i.Title, &i.Description, &i.Status, &i.Priority,
		&i.AssigneeID, &i.DueDate, &i.Position,
		&i.AISummary, &i.AISummaryCachedAt, &i.AISuggestion, &i.AISuggestionCachedAt,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *Repository) queryIssues(ctx context.Context, query string, args ...any) ([]domain.Issue, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var issues []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

// CreateIssue inserts an issue.
func (r *Repository) CreateIssue(ctx context.Context, issue *domain.Issue) error {
	const query = `INSERT INTO issues (id, project_id, owner_id, title, description, status, priority,
			assignee_user_id, due_date, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query, issue.ID, issue.ProjectID, issue.OwnerID, issue.Title, issue.Description,
		issue.Status, issue.Priority, issue.AssigneeID, issue.DueDate, issue.Position, issue.CreatedAt, issue.UpdatedAt)
	return err
}

// GetIssueByID returns a non-deleted issue.
func (r *Repository) GetIssueByID(ctx context.Context, issueID string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1 AND deleted_at IS NULL`
	return scanIssue(r.pool.QueryRow(ctx, query, issueID))
}

// UpdateIssue persists mutable issue fields.
func (r *Repository) UpdateIssue(ctx context.Context, issue *domain.Issue) error {
	const query = `UPDATE issues SET title = $2, description = $3, status = $4, priority = $5,
			assignee_user_id = $6, due_date = $7, position = $8, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, issue.ID, issue.Title, issue.Description, issue.Status,
		issue.Priority, issue.AssigneeID, issue.DueDate, issue.Position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SoftDeleteIssue marks an issue deleted.
func (r *Repository) SoftDeleteIssue(ctx context.Context, issueID string) error {
	const query = `UPDATE issues SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, issueID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListIssuesByProject returns non-deleted issues, newest first, optionally
// filtered by status.
func (r *Repository) ListIssuesByProject(ctx context.Context, projectID, status string) ([]domain.Issue, error) {
	if status != "" {
		query := `SELECT ` + issueColumns + ` FROM issues
			WHERE project_id = $1 AND status = $2 AND deleted_at IS NULL
			ORDER BY created_at DESC`
		return r.queryIssues(ctx, query, projectID, status)
	}
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`
	return r.queryIssues(ctx, query, projectID)
}

// CountIssuesByProject counts non-deleted issues for the quota check.
func (r *Repository) CountIssuesByProject(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(1) FROM issues WHERE project_id = $1 AND deleted_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListIssueRefs returns (id, title) pairs of the most recent issues.
func (r *Repository) ListIssueRefs(ctx context.Context, projectID string, limit int) ([]domain.IssueRef, error) {
	const query = `SELECT id, title FROM issues
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []domain.IssueRef
	for rows.Next() {
		var ref domain.IssueRef
		if err := rows.Scan(&ref.ID, &ref.Title); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// SetIssueSummary overwrites the summary slot.
func (r *Repository) SetIssueSummary(ctx context.Context, issueID, text string, cachedAt time.Time) error {
	const query = `UPDATE issues SET ai_summary = $2, ai_summary_cached_at = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, issueID, text, cachedAt)
	return err
}

// SetIssueSuggestion overwrites the suggestion slot.
func (r *Repository) SetIssueSuggestion(ctx context.Context, issueID, text string, cachedAt time.Time) error {
	const query = `UPDATE issues SET ai_suggestion = $2, ai_suggestion_cached_at = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, issueID, text, cachedAt)
	return err
}

// ListIssuesByAssignee returns the newest issues assigned to a user.
func (r *Repository) ListIssuesByAssignee(ctx context.Context, userID string, limit int) ([]domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE assignee_user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2`
	return r.queryIssues(ctx, query, userID, limit)
}

// ListIssuesDueBefore returns assigned issues due strictly before the given instant.
func (r *Repository) ListIssuesDueBefore(ctx context.Context, userID string, before time.Time) ([]domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE assignee_user_id = $1 AND due_date < $2 AND deleted_at IS NULL
		ORDER BY due_date`
	return r.queryIssues(ctx, query, userID, before)
}

// ListIssuesDueOn returns assigned issues due on the given calendar day.
func (r *Repository) ListIssuesDueOn(ctx context.Context, userID string, day time.Time) ([]domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE assignee_user_id = $1 AND due_date::date = $2::date AND deleted_at IS NULL
		ORDER BY due_date`
	return r.queryIssues(ctx, query, userID, day)
}
