package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, team_id, owner_id, name, description, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, project.ID, project.TeamID, project.OwnerID, project.Name,
		project.Description, project.Archived, project.CreatedAt, project.UpdatedAt)
	return err
}

// GetProjectByID returns a non-deleted project.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT id, team_id, owner_id, name, description, archived, created_at, updated_at
		FROM projects WHERE id = $1 AND deleted_at IS NULL`
	row := r.pool.QueryRow(ctx, query, projectID)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.TeamID, &p.OwnerID, &p.Name, &p.Description, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProject persists mutable project fields.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects SET name = $2, description = $3, archived = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, project.ID, project.Name, project.Description, project.Archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SoftDeleteProject marks a project deleted.
func (r *Repository) SoftDeleteProject(ctx context.Context, projectID string) error {
	const query = `UPDATE projects SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListProjectsByTeam returns non-deleted team projects, newest first.
func (r *Repository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	const query = `SELECT id, team_id, owner_id, name, description, archived, created_at, updated_at
		FROM projects WHERE team_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.TeamID, &p.OwnerID, &p.Name, &p.Description, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CountProjectsByTeam counts non-deleted projects for the quota check.
func (r *Repository) CountProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM projects WHERE team_id = $1 AND deleted_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, teamID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// IsFavorite reports whether the user favorited the project.
func (r *Repository) IsFavorite(ctx context.Context, projectID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM project_favorites WHERE project_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, projectID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AddFavorite records a favorite; repeated adds are no-ops.
func (r *Repository) AddFavorite(ctx context.Context, projectID, userID string) error {
	const query = `INSERT INTO project_favorites (project_id, user_id, created_at)
		VALUES ($1, $2, now()) ON CONFLICT (project_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, projectID, userID)
	return err
}

// RemoveFavorite deletes a favorite.
func (r *Repository) RemoveFavorite(ctx context.Context, projectID, userID string) error {
	const query = `DELETE FROM project_favorites WHERE project_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, query, projectID, userID)
	return err
}

// CreateLabel inserts a project label.
func (r *Repository) CreateLabel(ctx context.Context, label *domain.Label) error {
	const query = `INSERT INTO labels (id, project_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, label.ID, label.ProjectID, label.Name, label.Color, label.CreatedAt)
	return err
}

// ListLabels returns all labels of a project.
func (r *Repository) ListLabels(ctx context.Context, projectID string) ([]domain.Label, error) {
	const query = `SELECT id, project_id, name, color, created_at FROM labels WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var labels []domain.Label
	for rows.Next() {
		var l domain.Label
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Name, &l.Color, &l.CreatedAt); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// CountLabels counts project labels for the quota check.
func (r *Repository) CountLabels(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(1) FROM labels WHERE project_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateCustomStatus inserts a project-defined status column.
func (r *Repository) CreateCustomStatus(ctx context.Context, status *domain.CustomStatus) error {
	const query = `INSERT INTO custom_statuses (id, project_id, name, color, position, wip_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, status.ID, status.ProjectID, status.Name, status.Color,
		status.Position, status.WIPLimit, status.CreatedAt)
	return err
}

// ListCustomStatuses returns custom statuses ordered by position.
func (r *Repository) ListCustomStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error) {
	const query = `SELECT id, project_id, name, color, position, wip_limit, created_at
		FROM custom_statuses WHERE project_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var statuses []domain.CustomStatus
	for rows.Next() {
		var s domain.CustomStatus
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Color, &s.Position, &s.WIPLimit, &s.CreatedAt); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// CountCustomStatuses counts custom statuses for the quota check.
func (r *Repository) CountCustomStatuses(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(1) FROM custom_statuses WHERE project_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
