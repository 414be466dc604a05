package dashboard

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/internal/service/access"
)

const (
	maxAssignedIssues = 20
	maxRecentComments = 5
	dueSoonDays       = 7
)

// TeamMembership is a team the caller belongs to, annotated with their role.
type TeamMembership struct {
	domain.Team
	MyRole string `json:"my_role"`
}

// Personal aggregates the signed-in user's work across all teams. DueSoon
// covers everything due on or before today plus seven days, overdue included.
type Personal struct {
	AssignedIssues []domain.Issue   `json:"assigned_issues"`
	TotalAssigned  int              `json:"total_assigned"`
	DueSoon        []domain.Issue   `json:"due_soon"`
	DueToday       []domain.Issue   `json:"due_today"`
	Overdue        []domain.Issue   `json:"overdue"`
	RecentComments []domain.Comment `json:"recent_comments"`
	MyTeams        []TeamMembership `json:"my_teams"`
}

// ProjectStats summarizes a single project's board.
type ProjectStats struct {
	TotalIssues    int            `json:"total_issues"`
	ByStatus       map[string]int `json:"by_status"`
	ByPriority     map[string]int `json:"by_priority"`
	CompletionRate float64        `json:"completion_rate"`
	Overdue        int            `json:"overdue"`
	Unassigned     int            `json:"unassigned"`
}

// Service builds the dashboard views.
type Service struct {
	issues   repository.IssueRepository
	comments repository.CommentRepository
	teams    repository.TeamRepository
	resolver access.Resolver
	logger   *slog.Logger
}

// New constructs a Service.
func New(issues repository.IssueRepository, comments repository.CommentRepository, teams repository.TeamRepository, resolver access.Resolver, logger *slog.Logger) Service {
	return Service{issues: issues, comments: comments, teams: teams, resolver: resolver, logger: logger}
}

// Me returns the caller's personal dashboard.
func (s Service) Me(ctx context.Context, userID string) (*Personal, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	assigned, err := s.issues.ListIssuesByAssignee(ctx, userID, maxAssignedIssues)
	if err != nil {
		return nil, err
	}
	// Due dates are day-granular, so "on or before today+7" is
	// "before the start of day eight".
	dueSoon, err := s.issues.ListIssuesDueBefore(ctx, userID, today.AddDate(0, 0, dueSoonDays+1))
	if err != nil {
		return nil, err
	}
	dueToday, err := s.issues.ListIssuesDueOn(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	overdue, err := s.issues.ListIssuesDueBefore(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListRecentCommentsByUser(ctx, userID, maxRecentComments)
	if err != nil {
		return nil, err
	}
	myTeams, err := s.listTeams(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Personal{
		AssignedIssues: assigned,
		TotalAssigned:  len(assigned),
		DueSoon:        dueSoon,
		DueToday:       dueToday,
		Overdue:        overdue,
		RecentComments: comments,
		MyTeams:        myTeams,
	}, nil
}

func (s Service) listTeams(ctx context.Context, userID string) ([]TeamMembership, error) {
	memberships, err := s.teams.GetMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TeamMembership, 0, len(memberships))
	for _, m := range memberships {
		team, err := s.teams.GetTeamByID(ctx, m.TeamID)
		if errors.Is(err, repository.ErrNotFound) {
			// Membership rows outlive a soft-deleted team.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, TeamMembership{Team: *team, MyRole: m.Role})
	}
	return out, nil
}

// Project returns board statistics for one project.
func (s Service) Project(ctx context.Context, userID, projectID string) (*ProjectStats, error) {
	if _, err := s.resolver.ProjectAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	issues, err := s.issues.ListIssuesByProject(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	stats := &ProjectStats{
		TotalIssues: len(issues),
		ByStatus:    make(map[string]int),
		ByPriority:  make(map[string]int),
	}
	for _, issue := range issues {
		stats.ByStatus[issue.Status]++
		stats.ByPriority[issue.Priority]++
		if issue.DueDate != nil && issue.DueDate.Before(now) {
			stats.Overdue++
		}
		if issue.AssigneeID == nil {
			stats.Unassigned++
		}
	}
	if stats.TotalIssues > 0 {
		stats.CompletionRate = float64(stats.ByStatus[domain.StatusDone]) / float64(stats.TotalIssues) * 100
	}
	return stats, nil
}
