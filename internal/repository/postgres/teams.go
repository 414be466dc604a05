package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// CreateTeam inserts a team record.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const query = `INSERT INTO teams (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, team.ID, team.Name, team.OwnerID, team.CreatedAt, team.UpdatedAt)
	return err
}

// GetTeamByID returns a non-deleted team.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	const query = `SELECT id, name, owner_id, created_at, updated_at
		FROM teams WHERE id = $1 AND deleted_at IS NULL`
	row := r.pool.QueryRow(ctx, query, teamID)
	var t domain.Team
	if err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateTeamName renames a team and returns the updated row.
func (r *Repository) UpdateTeamName(ctx context.Context, teamID, name string) (*domain.Team, error) {
	const query = `UPDATE teams SET name = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, name, owner_id, created_at, updated_at`
	row := r.pool.QueryRow(ctx, query, teamID, name)
	var t domain.Team
	if err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// SoftDeleteTeam marks a team deleted.
func (r *Repository) SoftDeleteTeam(ctx context.Context, teamID string) error {
	const query = `UPDATE teams SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetMembership returns the membership row for a (team, user) pair.
func (r *Repository) GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	const query = `SELECT id, team_id, user_id, role, joined_at
		FROM team_members WHERE team_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, teamID, userID)
	var m domain.TeamMember
	if err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetMembershipsByUser returns all memberships for a user whose team still exists.
func (r *Repository) GetMembershipsByUser(ctx context.Context, userID string) ([]domain.TeamMember, error) {
	const query = `SELECT tm.id, tm.team_id, tm.user_id, tm.role, tm.joined_at
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id AND t.deleted_at IS NULL
		WHERE tm.user_id = $1
		ORDER BY tm.joined_at`
	return r.scanMembers(ctx, query, userID)
}

// ListMembers returns all members of a team.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `SELECT id, team_id, user_id, role, joined_at
		FROM team_members WHERE team_id = $1 ORDER BY joined_at`
	return r.scanMembers(ctx, query, teamID)
}

func (r *Repository) scanMembers(ctx context.Context, query string, arg any) ([]domain.TeamMember, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountMembers counts team members.
func (r *Repository) CountMembers(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM team_members WHERE team_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, teamID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AddMember inserts a membership row.
func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	const query = `INSERT INTO team_members (id, team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, member.ID, member.TeamID, member.UserID, member.Role, member.JoinedAt)
	return err
}

// UpdateMemberRole changes the role of an existing membership.
func (r *Repository) UpdateMemberRole(ctx context.Context, teamID, userID, role string) error {
	const query = `UPDATE team_members SET role = $3 WHERE team_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID string) error {
	const query = `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateInvite stores a pending team invite.
func (r *Repository) CreateInvite(ctx context.Context, invite *domain.TeamInvite) error {
	const query = `INSERT INTO team_invites (id, team_id, inviter_id, invitee_email, role, token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, invite.ID, invite.TeamID, invite.InviterID, invite.InviteeEmail,
		invite.Role, invite.Token, invite.Status, invite.ExpiresAt, invite.CreatedAt)
	return err
}

// GetInviteByToken fetches an invite regardless of status.
func (r *Repository) GetInviteByToken(ctx context.Context, token string) (*domain.TeamInvite, error) {
	const query = `SELECT id, team_id, inviter_id, invitee_email, role, token, status, expires_at, created_at
		FROM team_invites WHERE token = $1`
	row := r.pool.QueryRow(ctx, query, token)
	var inv domain.TeamInvite
	if err := row.Scan(&inv.ID, &inv.TeamID, &inv.InviterID, &inv.InviteeEmail, &inv.Role,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// UpdateInviteStatus transitions an invite.
func (r *Repository) UpdateInviteStatus(ctx context.Context, inviteID, status string) error {
	const query = `UPDATE team_invites SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, inviteID, status)
	return err
}

// InsertActivity appends to the team activity feed.
func (r *Repository) InsertActivity(ctx context.Context, entry *domain.ActivityLog) error {
	const query = `INSERT INTO activity_logs (id, team_id, user_id, action_type, entity_type, entity_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`
	_, err := r.pool.Exec(ctx, query, entry.ID, entry.TeamID, entry.UserID, entry.ActionType,
		entry.EntityType, entry.EntityID, entry.Description, entry.CreatedAt)
	return err
}

// ListActivity returns a page of the team activity feed, newest first.
func (r *Repository) ListActivity(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityLog, error) {
	const query = `SELECT id, team_id, user_id, action_type, entity_type, COALESCE(entity_id, ''), description, created_at
		FROM activity_logs WHERE team_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.ActivityLog
	for rows.Next() {
		var a domain.ActivityLog
		if err := rows.Scan(&a.ID, &a.TeamID, &a.UserID, &a.ActionType, &a.EntityType, &a.EntityID, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}
