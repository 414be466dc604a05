// Package memory holds an in-memory Repository used by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// Repository keeps all entities in maps. Semantics mirror the postgres
// implementation: reads skip soft-deleted rows, mutations of missing rows
// return repository.ErrNotFound.
type Repository struct {
	mu sync.Mutex

	Users       map[string]*domain.User
	ResetTokens map[string]*domain.PasswordResetToken

	Teams       map[string]*domain.Team
	Members     map[string]*domain.TeamMember
	Invites     map[string]*domain.TeamInvite
	Activity    []*domain.ActivityLog
	Projects    map[string]*domain.Project
	Favorites   map[string]bool
	Labels      map[string]*domain.Label
	Statuses    map[string]*domain.CustomStatus
	Issues      map[string]*domain.Issue
	Comments    map[string]*domain.Comment
	Notices     map[string]*domain.Notification
	RateWindows map[string]int
}

var (
	_ repository.UserRepository         = (*Repository)(nil)
	_ repository.TeamRepository         = (*Repository)(nil)
	_ repository.ProjectRepository      = (*Repository)(nil)
	_ repository.IssueRepository        = (*Repository)(nil)
	_ repository.CommentRepository      = (*Repository)(nil)
	_ repository.NotificationRepository = (*Repository)(nil)
	_ repository.RateLimitRepository    = (*Repository)(nil)
)

func New() *Repository {
	return &Repository{
		Users:       make(map[string]*domain.User),
		ResetTokens: make(map[string]*domain.PasswordResetToken),
		Teams:       make(map[string]*domain.Team),
		Members:     make(map[string]*domain.TeamMember),
		Invites:     make(map[string]*domain.TeamInvite),
		Projects:    make(map[string]*domain.Project),
		Favorites:   make(map[string]bool),
		Labels:      make(map[string]*domain.Label),
		Statuses:    make(map[string]*domain.CustomStatus),
		Issues:      make(map[string]*domain.Issue),
		Comments:    make(map[string]*domain.Comment),
		Notices:     make(map[string]*domain.Notification),
		RateWindows: make(map[string]int),
	}
}

func memberKey(teamID, userID string) string      { return teamID + "|" + userID }
func favoriteKey(projectID, userID string) string { return projectID + "|" + userID }

func rateWindowKey(userID, kind string, start time.Time) string {
	return userID + "|" + kind + "|" + start.UTC().Format(time.RFC3339)
}

// users

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.Users[user.ID] = &copied
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Email == email && u.DeletedAt == nil {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *Repository) UpdateUserPassword(ctx context.Context, userID string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *Repository) CreateResetToken(ctx context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.ResetTokens[token.ID] = &copied
	return nil
}

func (r *Repository) GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.ResetTokens {
		if t.Token == token {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Repository) MarkResetTokenUsed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.ResetTokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Used = true
	return nil
}

// teams

func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *team
	r.Teams[team.ID] = &copied
	return nil
}

func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Teams[teamID]
	if !ok || t.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *Repository) UpdateTeamName(ctx context.Context, teamID, name string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Teams[teamID]
	if !ok || t.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	t.Name = name
	t.UpdatedAt = time.Now().UTC()
	copied := *t
	return &copied, nil
}

func (r *Repository) SoftDeleteTeam(ctx context.Context, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Teams[teamID]
	if !ok || t.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	t.DeletedAt = &now
	return nil
}

func (r *Repository) GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.Members[memberKey(teamID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *Repository) GetMembershipsByUser(ctx context.Context, userID string) ([]domain.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TeamMember
	for _, m := range r.Members {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TeamMember
	for _, m := range r.Members {
		if m.TeamID == teamID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *Repository) CountMembers(ctx context.Context, teamID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.Members {
		if m.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

func (r *Repository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *member
	r.Members[memberKey(member.TeamID, member.UserID)] = &copied
	return nil
}

func (r *Repository) UpdateMemberRole(ctx context.Context, teamID, userID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.Members[memberKey(teamID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	m.Role = role
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, teamID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey(teamID, userID)
	if _, ok := r.Members[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.Members, key)
	return nil
}

func (r *Repository) CreateInvite(ctx context.Context, invite *domain.TeamInvite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *invite
	r.Invites[invite.ID] = &copied
	return nil
}

func (r *Repository) GetInviteByToken(ctx context.Context, token string) (*domain.TeamInvite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.Invites {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Repository) UpdateInviteStatus(ctx context.Context, inviteID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.Invites[inviteID]
	if !ok {
		return repository.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (r *Repository) InsertActivity(ctx context.Context, entry *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.Activity = append(r.Activity, &copied)
	return nil
}

func (r *Repository) ListActivity(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ActivityLog
	for _, a := range r.Activity {
		if a.TeamID == teamID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// projects

func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *project
	r.Projects[project.ID] = &copied
	return nil
}

func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Projects[projectID]
	if !ok || p.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Projects[project.ID]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	copied := *project
	r.Projects[project.ID] = &copied
	return nil
}

func (r *Repository) SoftDeleteProject(ctx context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Projects[projectID]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	return nil
}

func (r *Repository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Project
	for _, p := range r.Projects {
		if p.TeamID == teamID && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) CountProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	projects, _ := r.ListProjectsByTeam(ctx, teamID)
	return len(projects), nil
}

func (r *Repository) IsFavorite(ctx context.Context, projectID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Favorites[favoriteKey(projectID, userID)], nil
}

func (r *Repository) AddFavorite(ctx context.Context, projectID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Favorites[favoriteKey(projectID, userID)] = true
	return nil
}

func (r *Repository) RemoveFavorite(ctx context.Context, projectID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Favorites, favoriteKey(projectID, userID))
	return nil
}

func (r *Repository) CreateLabel(ctx context.Context, label *domain.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *label
	r.Labels[label.ID] = &copied
	return nil
}

func (r *Repository) ListLabels(ctx context.Context, projectID string) ([]domain.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Label
	for _, l := range r.Labels {
		if l.ProjectID == projectID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) CountLabels(ctx context.Context, projectID string) (int, error) {
	labels, _ := r.ListLabels(ctx, projectID)
	return len(labels), nil
}

func (r *Repository) CreateCustomStatus(ctx context.Context, status *domain.CustomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *status
	r.Statuses[status.ID] = &copied
	return nil
}

func (r *Repository) ListCustomStatuses(ctx context.Context, projectID string) ([]domain.CustomStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CustomStatus
	for _, s := range r.Statuses {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *Repository) CountCustomStatuses(ctx context.Context, projectID string) (int, error) {
	statuses, _ := r.ListCustomStatuses(ctx, projectID)
	return len(statuses), nil
}

// issues

func (r *Repository) CreateIssue(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *issue
	r.Issues[issue.ID] = &copied
	return nil
}

func (r *Repository) GetIssueByID(ctx context.Context, issueID string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.Issues[issueID]
	if !ok || i.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copied := *i
	return &copied, nil
}

func (r *Repository) UpdateIssue(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.Issues[issue.ID]
	if !ok || i.DeletedAt != nil {
		return repository.ErrNotFound
	}
	copied := *issue
	r.Issues[issue.ID] = &copied
	return nil
}

func (r *Repository) SoftDeleteIssue(ctx context.Context, issueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.Issues[issueID]
	if !ok || i.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	i.DeletedAt = &now
	return nil
}

func (r *Repository) ListIssuesByProject(ctx context.Context, projectID, status string) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Issue
	for _, i := range r.Issues {
		if i.ProjectID != projectID || i.DeletedAt != nil {
			continue
		}
		if status != "" && i.Status != status {
			continue
		}
		out = append(out, *i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *Repository) CountIssuesByProject(ctx context.Context, projectID string) (int, error) {
	issues, _ := r.ListIssuesByProject(ctx, projectID, "")
	return len(issues), nil
}

func (r *Repository) ListIssueRefs(ctx context.Context, projectID string, limit int) ([]domain.IssueRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var issues []*domain.Issue
	for _, i := range r.Issues {
		if i.ProjectID == projectID && i.DeletedAt == nil {
			issues = append(issues, i)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.After(issues[j].CreatedAt) })
	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	refs := make([]domain.IssueRef, 0, len(issues))
	for _, i := range issues {
		refs = append(refs, domain.IssueRef{ID: i.ID, Title: i.Title})
	}
	return refs, nil
}

func (r *Repository) SetIssueSummary(ctx context.Context, issueID, text string, cachedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.Issues[issueID]
	if !ok {
		return repository.ErrNotFound
	}
	i.AISummary = &text
	i.AISummaryCachedAt = &cachedAt
	return nil
}

func (r *Repository) SetIssueSuggestion(ctx context.Context, issueID, text string, cachedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.Issues[issueID]
	if !ok {
		return repository.ErrNotFound
	}
	i.AISuggestion = &text
	i.AISuggestionCachedAt = &cachedAt
	return nil
}

func (r *Repository) ListIssuesByAssignee(ctx context.Context, userID string, limit int) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Issue
	for _, i := range r.Issues {
		if i.DeletedAt == nil && i.AssigneeID != nil && *i.AssigneeID == userID {
			out = append(out, *i)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) ListIssuesDueBefore(ctx context.Context, userID string, before time.Time) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Issue
	for _, i := range r.Issues {
		if i.DeletedAt == nil && i.AssigneeID != nil && *i.AssigneeID == userID &&
			i.DueDate != nil && i.DueDate.Before(before) {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *Repository) ListIssuesDueOn(ctx context.Context, userID string, day time.Time) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Issue
	for _, i := range r.Issues {
		if i.DeletedAt == nil && i.AssigneeID != nil && *i.AssigneeID == userID &&
			i.DueDate != nil && sameDay(*i.DueDate, day) {
			out = append(out, *i)
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// comments

func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *comment
	r.Comments[comment.ID] = &copied
	return nil
}

func (r *Repository) GetCommentByID(ctx context.Context, commentID string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Comments[commentID]
	if !ok || c.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *Repository) UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Comments[commentID]
	if !ok || c.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	c.Content = content
	c.UpdatedAt = time.Now().UTC()
	copied := *c
	return &copied, nil
}

func (r *Repository) SoftDeleteComment(ctx context.Context, commentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Comments[commentID]
	if !ok || c.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	return nil
}

func (r *Repository) ListCommentsByIssue(ctx context.Context, issueID string, limit, offset int) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.Comments {
		if c.IssueID == issueID && c.DeletedAt == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) CountCommentsByIssue(ctx context.Context, issueID string) (int, error) {
	comments, _ := r.ListCommentsByIssue(ctx, issueID, 0, 0)
	return len(comments), nil
}

func (r *Repository) ListRecentCommentsByUser(ctx context.Context, userID string, limit int) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.Comments {
		if c.UserID == userID && c.DeletedAt == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// notifications

func (r *Repository) InsertNotification(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *n
	r.Notices[n.ID] = &copied
	return nil
}

func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.Notices {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.Notices[notificationID]
	if !ok || n.UserID != userID {
		return nil, repository.ErrNotFound
	}
	now := time.Now().UTC()
	n.IsRead = true
	n.ReadAt = &now
	copied := *n
	return &copied, nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, n := range r.Notices {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
		}
	}
	return nil
}

func (r *Repository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.Notices {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// rate limits

func (r *Repository) GetRateWindow(ctx context.Context, userID, kind string, start time.Time) (*domain.RateLimitWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count, ok := r.RateWindows[rateWindowKey(userID, kind, start)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.RateLimitWindow{
		UserID:       userID,
		WindowKind:   kind,
		WindowStart:  start,
		RequestCount: count,
	}, nil
}

func (r *Repository) IncrementRateWindow(ctx context.Context, userID, kind string, start time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RateWindows[rateWindowKey(userID, kind, start)]++
	return nil
}
