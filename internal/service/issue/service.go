package issue

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
	"github.com/jiralite/api/internal/service/access"
	"github.com/jiralite/api/internal/service/notification"
	"github.com/jiralite/api/pkg/config"
)

const maxIssuesPerProject = 200

// Service handles issue workflows.
type Service struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	resolver access.Resolver
	notify   notification.Service
	mail     mailer.Sender
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service.
func New(issues repository.IssueRepository, users repository.UserRepository, resolver access.Resolver, notify notification.Service, mail mailer.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{issues: issues, users: users, resolver: resolver, notify: notify, mail: mail, logger: logger, cfg: cfg}
}

// CreateInput carries the fields of a new issue.
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	AssigneeID  *string
	DueDate     *time.Time
	Position    int
}

// Create adds an issue to a project. Projects are capped at 200 issues;
// new issues default to the Backlog status and MEDIUM priority.
func (s Service) Create(ctx context.Context, userID, projectID string, in CreateInput) (*domain.Issue, error) {
	project, err := s.resolver.ProjectAccess(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, apperr.Validation("issue title is required")
	}
	if in.Status == "" {
		in.Status = domain.StatusBacklog
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(in.Priority) {
		return nil, apperr.Validation("invalid priority")
	}
	count, err := s.issues.CountIssuesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if count >= maxIssuesPerProject {
		return nil, apperr.Conflict("project has reached the maximum of 200 issues")
	}
	now := time.Now().UTC()
	issue := &domain.Issue{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		OwnerID:     userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		Position:    in.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	s.notifyAssignment(ctx, issue, project, userID)
	s.logger.Info("issue created", "issue_id", issue.ID, "project_id", projectID)
	return issue, nil
}

// notifyAssignment pushes an in-app notification and an email to a newly set
// assignee. Self-assignment is silent; delivery failures only warn.
func (s Service) notifyAssignment(ctx context.Context, issue *domain.Issue, project *domain.Project, actorID string) {
	if issue.AssigneeID == nil || *issue.AssigneeID == actorID {
		return
	}
	err := s.notify.Notify(ctx, *issue.AssigneeID, notification.TypeIssueAssigned,
		"You have been assigned an issue",
		fmt.Sprintf("You were assigned to %q in %s", issue.Title, project.Name),
		fmt.Sprintf("/projects/%s/issues/%s", project.ID, issue.ID))
	if err != nil {
		s.logger.Warn("assignment notification failed", "issue_id", issue.ID, "error", err)
	}
	assignee, err := s.users.GetUserByID(ctx, *issue.AssigneeID)
	if err != nil {
		s.logger.Warn("assignment email skipped", "issue_id", issue.ID, "error", err)
		return
	}
	link := fmt.Sprintf("%s/projects/%s/issues/%s", s.cfg.FrontendBaseURL, project.ID, issue.ID)
	subject, body := mailer.IssueAssignedBody(assignee.Name, issue.Title, link)
	if err := s.mail.Send(assignee.Email, subject, body); err != nil {
		s.logger.Warn("assignment email failed", "issue_id", issue.ID, "error", err)
	}
}

// List returns a project's issues, optionally filtered by status.
func (s Service) List(ctx context.Context, userID, projectID, status string) ([]domain.Issue, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.issues.ListIssuesByProject(ctx, projectID, status)
}

// Get returns one issue for a member of its project's team.
func (s Service) Get(ctx context.Context, userID, issueID string) (*domain.Issue, error) {
	return s.resolver.IssueAccess(ctx, userID, issueID)
}

// UpdateInput carries the optional fields of an issue update. A nil field
// is left untouched; SetAssignee/SetDueDate distinguish clearing from
// leaving as-is.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssigneeID  *string
	SetAssignee bool
	DueDate     *time.Time
	SetDueDate  bool
	Position    *int
}

// Update edits issue fields. Any team member may update; a change of
// assignee notifies the new assignee.
func (s Service) Update(ctx context.Context, userID, issueID string, in UpdateInput) (*domain.Issue, error) {
	issue, err := s.resolver.IssueAccess(ctx, userID, issueID)
	if err != nil {
		return nil, err
	}
	prevAssignee := issue.AssigneeID
	if in.Title != nil {
		if *in.Title == "" {
			return nil, apperr.Validation("issue title is required")
		}
		issue.Title = *in.Title
	}
	if in.Description != nil {
		issue.Description = *in.Description
	}
	if in.Status != nil {
		issue.Status = *in.Status
	}
	if in.Priority != nil {
		if !domain.ValidPriority(*in.Priority) {
			return nil, apperr.Validation("invalid priority")
		}
		issue.Priority = *in.Priority
	}
	if in.SetAssignee {
		issue.AssigneeID = in.AssigneeID
	}
	if in.SetDueDate {
		issue.DueDate = in.DueDate
	}
	if in.Position != nil {
		issue.Position = *in.Position
	}
	issue.UpdatedAt = time.Now().UTC()
	if err := s.issues.UpdateIssue(ctx, issue); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("issue not found")
		}
		return nil, err
	}
	if in.SetAssignee && issue.AssigneeID != nil &&
		(prevAssignee == nil || *prevAssignee != *issue.AssigneeID) {
		if project, perr := s.resolver.ProjectAccess(ctx, userID, issue.ProjectID); perr == nil {
			s.notifyAssignment(ctx, issue, project, userID)
		}
	}
	return issue, nil
}

// Delete soft-deletes an issue.
func (s Service) Delete(ctx context.Context, userID, issueID string) error {
	if _, err := s.resolver.IssueAccess(ctx, userID, issueID); err != nil {
		return err
	}
	if err := s.issues.SoftDeleteIssue(ctx, issueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("issue not found")
		}
		return err
	}
	s.logger.Info("issue deleted", "issue_id", issueID, "user_id", userID)
	return nil
}
