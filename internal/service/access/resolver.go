package access

import (
	"context"
	"errors"

	"log/slog"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// Resolver answers "may this user act on this resource" by walking entity
// relationships: issue → project → team → membership. Every check re-reads
// current state; nothing is cached across calls.
type Resolver struct {
	teams    repository.TeamRepository
	projects repository.ProjectRepository
	issues   repository.IssueRepository
	logger   *slog.Logger
}

// New constructs a Resolver.
func New(teams repository.TeamRepository, projects repository.ProjectRepository, issues repository.IssueRepository, logger *slog.Logger) Resolver {
	return Resolver{teams: teams, projects: projects, issues: issues, logger: logger}
}

// Membership is the base primitive: it resolves the membership row for the
// (team, user) pair. A missing row is reported as not-found rather than
// forbidden so that non-members cannot learn whether the team exists.
func (r Resolver) Membership(ctx context.Context, userID, teamID string) (*domain.TeamMember, error) {
	member, err := r.teams.GetMembership(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("team not found or access denied")
		}
		return nil, apperr.Upstream("access check failed")
	}
	return member, nil
}

// RequireAdmin resolves membership and requires the OWNER or ADMIN role.
func (r Resolver) RequireAdmin(ctx context.Context, userID, teamID string) (*domain.TeamMember, error) {
	member, err := r.Membership(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if member.Role != domain.RoleOwner && member.Role != domain.RoleAdmin {
		return nil, apperr.Forbidden("insufficient permissions: admin or owner role required")
	}
	return member, nil
}

// RequireOwner resolves membership and requires the OWNER role.
func (r Resolver) RequireOwner(ctx context.Context, userID, teamID string) (*domain.TeamMember, error) {
	member, err := r.Membership(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if member.Role != domain.RoleOwner {
		return nil, apperr.Forbidden("insufficient permissions: owner role required")
	}
	return member, nil
}

// ProjectAccess loads a project and verifies membership in its team.
func (r Resolver) ProjectAccess(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	project, err := r.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, apperr.Upstream("access check failed")
	}
	if _, err := r.Membership(ctx, userID, project.TeamID); err != nil {
		return nil, err
	}
	return project, nil
}

// IssueAccess loads an issue and verifies membership in the owning team,
// derived transitively through the project.
func (r Resolver) IssueAccess(ctx context.Context, userID, issueID string) (*domain.Issue, error) {
	issue, err := r.issues.GetIssueByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("issue not found")
		}
		return nil, apperr.Upstream("access check failed")
	}
	project, err := r.projects.GetProjectByID(ctx, issue.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("issue not found")
		}
		return nil, apperr.Upstream("access check failed")
	}
	if _, err := r.Membership(ctx, userID, project.TeamID); err != nil {
		return nil, err
	}
	return issue, nil
}
