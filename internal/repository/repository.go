package repository

import (
	"context"
	"time"

	"github.com/jiralite/api/internal/domain"
)

// Read methods exclude soft-deleted rows unless stated otherwise.

// UserRepository persists accounts and reset tokens.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, userID string, hash []byte) error

	CreateResetToken(ctx context.Context, token *domain.PasswordResetToken) error
	GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id string) error
}

// TeamRepository manages teams, memberships, invites and the activity feed.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	UpdateTeamName(ctx context.Context, teamID, name string) (*domain.Team, error)
	SoftDeleteTeam(ctx context.Context, teamID string) error

	GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMember, error)
	GetMembershipsByUser(ctx context.Context, userID string) ([]domain.TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
	CountMembers(ctx context.Context, teamID string) (int, error)
	AddMember(ctx context.Context, member *domain.TeamMember) error
	UpdateMemberRole(ctx context.Context, teamID, userID, role string) error
	RemoveMember(ctx context.Context, teamID, userID string) error

	CreateInvite(ctx context.Context, invite *domain.TeamInvite) error
	GetInviteByToken(ctx context.Context, token string) (*domain.TeamInvite, error)
	UpdateInviteStatus(ctx context.Context, inviteID, status string) error

	InsertActivity(ctx context.Context, entry *domain.ActivityLog) error
	ListActivity(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityLog, error)
}

// ProjectRepository persists projects, favorites, labels and custom statuses.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	SoftDeleteProject(ctx context.Context, projectID string) error
	ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error)
	CountProjectsByTeam(ctx context.Context, teamID string) (int, error)

	IsFavorite(ctx context.Context, projectID, userID string) (bool, error)
	AddFavorite(ctx context.Context, projectID, userID string) error
	RemoveFavorite(ctx context.Context, projectID, userID string) error

	CreateLabel(ctx context.Context, label *domain.Label) error
	ListLabels(ctx context.Context, projectID string) ([]domain.Label, error)
	CountLabels(ctx context.Context, projectID string) (int, error)

	CreateCustomStatus(ctx context.Context, status *domain.CustomStatus) error
	ListCustomStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error)
	CountCustomStatuses(ctx context.Context, projectID string) (int, error)
}

// IssueRepository persists issues and their AI result slots.
type IssueRepository interface {
	CreateIssue(ctx context.Context, issue *domain.Issue) error
	GetIssueByID(ctx context.Context, issueID string) (*domain.Issue, error)
	UpdateIssue(ctx context.Context, issue *domain.Issue) error
	SoftDeleteIssue(ctx context.Context, issueID string) error
	ListIssuesByProject(ctx context.Context, projectID, status string) ([]domain.Issue, error)
	CountIssuesByProject(ctx context.Context, projectID string) (int, error)
	ListIssueRefs(ctx context.Context, projectID string, limit int) ([]domain.IssueRef, error)

	SetIssueSummary(ctx context.Context, issueID, text string, cachedAt time.Time) error
	SetIssueSuggestion(ctx context.Context, issueID, text string, cachedAt time.Time) error

	ListIssuesByAssignee(ctx context.Context, userID string, limit int) ([]domain.Issue, error)
	ListIssuesDueBefore(ctx context.Context, userID string, before time.Time) ([]domain.Issue, error)
	ListIssuesDueOn(ctx context.Context, userID string, day time.Time) ([]domain.Issue, error)
}

// CommentRepository persists issue comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error)
	SoftDeleteComment(ctx context.Context, commentID string) error
	ListCommentsByIssue(ctx context.Context, issueID string, limit, offset int) ([]domain.Comment, error)
	CountCommentsByIssue(ctx context.Context, issueID string) (int, error)
	ListRecentCommentsByUser(ctx context.Context, userID string, limit int) ([]domain.Comment, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// RateLimitRepository tracks fixed-window AI request counters.
type RateLimitRepository interface {
	GetRateWindow(ctx context.Context, userID, kind string, start time.Time) (*domain.RateLimitWindow, error)
	IncrementRateWindow(ctx context.Context, userID, kind string, start time.Time) error
}
