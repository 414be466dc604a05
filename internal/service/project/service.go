package project

import (
	"context"
	"errors"
	"sort"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/internal/service/access"
)

// Per-scope quotas.
const (
	maxProjectsPerTeam    = 15
	maxLabelsPerProject   = 20
	maxStatusesPerProject = 5
)

// Summary is a project enriched with listing fields.
type Summary struct {
	domain.Project
	IssueCount int  `json:"issue_count"`
	IsFavorite bool `json:"is_favorite"`
}

// Service handles project, label and custom status workflows.
type Service struct {
	projects repository.ProjectRepository
	issues   repository.IssueRepository
	resolver access.Resolver
	logger   *slog.Logger
}

// New constructs a Service.
func New(projects repository.ProjectRepository, issues repository.IssueRepository, resolver access.Resolver, logger *slog.Logger) Service {
	return Service{projects: projects, issues: issues, resolver: resolver, logger: logger}
}

// canManage reports whether the user may update or delete the project:
// either a team admin or the project's own creator.
func (s Service) canManage(ctx context.Context, userID string, project *domain.Project) error {
	membership, err := s.resolver.Membership(ctx, userID, project.TeamID)
	if err != nil {
		return err
	}
	if membership.Role == domain.RoleAdmin || membership.Role == domain.RoleOwner {
		return nil
	}
	if project.OwnerID == userID {
		return nil
	}
	return apperr.Forbidden("only team admins or the project owner can do this")
}

// Create adds a project to a team. Any member may create; teams are capped
// at 15 active projects.
func (s Service) Create(ctx context.Context, userID, teamID, name, description string) (*domain.Project, error) {
	if _, err := s.resolver.Membership(ctx, userID, teamID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("project name is required")
	}
	count, err := s.projects.CountProjectsByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if count >= maxProjectsPerTeam {
		return nil, apperr.Conflict("team has reached the maximum of 15 projects")
	}
	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		OwnerID:     userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "team_id", teamID)
	return project, nil
}

// ListByTeam returns the team's projects with issue counts, favorites first.
func (s Service) ListByTeam(ctx context.Context, userID, teamID string) ([]Summary, error) {
	if _, err := s.resolver.Membership(ctx, userID, teamID); err != nil {
		return nil, err
	}
	projects, err := s.projects.ListProjectsByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(projects))
	for _, p := range projects {
		count, err := s.issues.CountIssuesByProject(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		fav, err := s.projects.IsFavorite(ctx, p.ID, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{Project: p, IssueCount: count, IsFavorite: fav})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].IsFavorite && !summaries[j].IsFavorite
	})
	return summaries, nil
}

// Get returns a single project for a member of its team.
func (s Service) Get(ctx context.Context, userID, projectID string) (*Summary, error) {
	project, err := s.resolver.ProjectAccess(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	count, err := s.issues.CountIssuesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	fav, err := s.projects.IsFavorite(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{Project: *project, IssueCount: count, IsFavorite: fav}, nil
}

// UpdateInput carries the optional fields of a project update.
type UpdateInput struct {
	Name        *string
	Description *string
	Archived    *bool
}

// Update edits project fields. Requires admin or project owner.
func (s Service) Update(ctx context.Context, userID, projectID string, in UpdateInput) (*domain.Project, error) {
	project, err := s.resolver.ProjectAccess(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, userID, project); err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, apperr.Validation("project name is required")
		}
		project.Name = *in.Name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Archived != nil {
		project.Archived = *in.Archived
	}
	project.UpdatedAt = time.Now().UTC()
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes a project. Requires admin or project owner.
func (s Service) Delete(ctx context.Context, userID, projectID string) error {
	project, err := s.resolver.ProjectAccess(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.canManage(ctx, userID, project); err != nil {
		return err
	}
	if err := s.projects.SoftDeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("project not found")
		}
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID, "user_id", userID)
	return nil
}

// ToggleFavorite flips the caller's favorite flag and returns the new state.
func (s Service) ToggleFavorite(ctx context.Context, userID, projectID string) (bool, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return false, err
	}
	fav, err := s.projects.IsFavorite(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	if fav {
		if err := s.projects.RemoveFavorite(ctx, projectID, userID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.projects.AddFavorite(ctx, projectID, userID); err != nil {
		return false, err
	}
	return true, nil
}

// CreateLabel adds a label to a project, capped at 20 per project.
func (s Service) CreateLabel(ctx context.Context, userID, projectID, name, color string) (*domain.Label, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("label name is required")
	}
	count, err := s.projects.CountLabels(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if count >= maxLabelsPerProject {
		return nil, apperr.Conflict("project has reached the maximum of 20 labels")
	}
	label := &domain.Label{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projects.CreateLabel(ctx, label); err != nil {
		return nil, err
	}
	return label, nil
}

// Labels lists a project's labels.
func (s Service) Labels(ctx context.Context, userID, projectID string) ([]domain.Label, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListLabels(ctx, projectID)
}

// CreateCustomStatus adds a workflow column, capped at 5 per project.
func (s Service) CreateCustomStatus(ctx context.Context, userID, projectID, name, color string, position int, wipLimit *int) (*domain.CustomStatus, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("status name is required")
	}
	count, err := s.projects.CountCustomStatuses(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if count >= maxStatusesPerProject {
		return nil, apperr.Conflict("project has reached the maximum of 5 custom statuses")
	}
	status := &domain.CustomStatus{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		Position:  position,
		WIPLimit:  wipLimit,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projects.CreateCustomStatus(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}

// CustomStatuses lists a project's workflow columns in position order.
func (s Service) CustomStatuses(ctx context.Context, userID, projectID string) ([]domain.CustomStatus, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListCustomStatuses(ctx, projectID)
}
