package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository/memory"
	"github.com/jiralite/api/internal/service/access"
)

func newDashboardFixture(t *testing.T) (Service, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	if err := repo.CreateTeam(ctx, &domain.Team{ID: "team-1", Name: "core"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	m := domain.TeamMember{ID: "m-alice", TeamID: "team-1", UserID: "alice", Role: domain.RoleMember}
	if err := repo.AddMember(ctx, &m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if err := repo.CreateProject(ctx, &domain.Project{ID: "proj-1", TeamID: "team-1", Name: "api"}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	resolver := access.New(repo, repo, repo, logger)
	return New(repo, repo, repo, resolver, logger), repo
}

func seedIssue(t *testing.T, repo *memory.Repository, id, status, priority string, assignee *string, due *time.Time) {
	t.Helper()
	issue := domain.Issue{
		ID:         id,
		ProjectID:  "proj-1",
		OwnerID:    "alice",
		Title:      id,
		Status:     status,
		Priority:   priority,
		AssigneeID: assignee,
		DueDate:    due,
	}
	if err := repo.CreateIssue(context.Background(), &issue); err != nil {
		t.Fatalf("seed issue %s: %v", id, err)
	}
}

func TestMeBucketsByDueDate(t *testing.T) {
	svc, repo := newDashboardFixture(t)
	alice := "alice"

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	today := time.Now().UTC()
	inThreeDays := time.Now().UTC().Add(3 * 24 * time.Hour)
	nextMonth := time.Now().UTC().Add(30 * 24 * time.Hour)
	seedIssue(t, repo, "late", domain.StatusBacklog, domain.PriorityHigh, &alice, &yesterday)
	seedIssue(t, repo, "due", domain.StatusBacklog, domain.PriorityMedium, &alice, &today)
	seedIssue(t, repo, "soon", domain.StatusBacklog, domain.PriorityLow, &alice, &inThreeDays)
	seedIssue(t, repo, "far", domain.StatusBacklog, domain.PriorityLow, &alice, &nextMonth)
	seedIssue(t, repo, "unrelated", domain.StatusBacklog, domain.PriorityLow, nil, &yesterday)

	got, err := svc.Me(context.Background(), "alice")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if len(got.AssignedIssues) != 4 || got.TotalAssigned != 4 {
		t.Fatalf("assigned = %d total = %d, want 4", len(got.AssignedIssues), got.TotalAssigned)
	}
	if len(got.Overdue) != 1 || got.Overdue[0].ID != "late" {
		t.Fatalf("overdue = %+v", got.Overdue)
	}
	if len(got.DueToday) != 1 || got.DueToday[0].ID != "due" {
		t.Fatalf("due today = %+v", got.DueToday)
	}
	// Due-soon spans the next seven days and still includes the overdue item.
	if len(got.DueSoon) != 3 {
		t.Fatalf("due soon = %+v, want late, due and soon", got.DueSoon)
	}
	soonIDs := make(map[string]bool)
	for _, issue := range got.DueSoon {
		soonIDs[issue.ID] = true
	}
	if !soonIDs["late"] || !soonIDs["due"] || !soonIDs["soon"] || soonIDs["far"] {
		t.Fatalf("due soon ids = %v", soonIDs)
	}
	if len(got.MyTeams) != 1 || got.MyTeams[0].ID != "team-1" || got.MyTeams[0].MyRole != domain.RoleMember {
		t.Fatalf("my teams = %+v", got.MyTeams)
	}
}

func TestMeCapsAssignedAndComments(t *testing.T) {
	svc, repo := newDashboardFixture(t)
	alice := "alice"
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		seedIssue(t, repo, fmt.Sprintf("i-%02d", i), domain.StatusBacklog, domain.PriorityLow, &alice, nil)
	}
	for i := 0; i < 7; i++ {
		c := domain.Comment{ID: fmt.Sprintf("c-%d", i), IssueID: "i-00", UserID: "alice", Content: "note"}
		if err := repo.CreateComment(ctx, &c); err != nil {
			t.Fatalf("seed comment: %v", err)
		}
	}

	got, err := svc.Me(ctx, "alice")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if len(got.AssignedIssues) != 20 {
		t.Fatalf("assigned = %d, want 20", len(got.AssignedIssues))
	}
	if len(got.RecentComments) != 5 {
		t.Fatalf("recent comments = %d, want 5", len(got.RecentComments))
	}
}

func TestMeSkipsDeletedTeams(t *testing.T) {
	svc, repo := newDashboardFixture(t)
	ctx := context.Background()

	if err := repo.CreateTeam(ctx, &domain.Team{ID: "team-2", Name: "gone"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	m := domain.TeamMember{ID: "m-alice-2", TeamID: "team-2", UserID: "alice", Role: domain.RoleOwner}
	if err := repo.AddMember(ctx, &m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if err := repo.SoftDeleteTeam(ctx, "team-2"); err != nil {
		t.Fatalf("delete team: %v", err)
	}

	got, err := svc.Me(ctx, "alice")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if len(got.MyTeams) != 1 || got.MyTeams[0].ID != "team-1" {
		t.Fatalf("my teams = %+v", got.MyTeams)
	}
}

func TestProjectStats(t *testing.T) {
	svc, repo := newDashboardFixture(t)
	alice := "alice"

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	seedIssue(t, repo, "a", domain.StatusBacklog, domain.PriorityHigh, &alice, &yesterday)
	seedIssue(t, repo, "b", domain.StatusBacklog, domain.PriorityLow, nil, nil)
	seedIssue(t, repo, "c", domain.StatusDone, domain.PriorityLow, nil, nil)

	stats, err := svc.Project(context.Background(), "alice", "proj-1")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if stats.TotalIssues != 3 {
		t.Fatalf("total = %d, want 3", stats.TotalIssues)
	}
	if stats.ByStatus[domain.StatusBacklog] != 2 || stats.ByStatus[domain.StatusDone] != 1 {
		t.Fatalf("by status = %v", stats.ByStatus)
	}
	if stats.ByPriority[domain.PriorityLow] != 2 {
		t.Fatalf("by priority = %v", stats.ByPriority)
	}
	if stats.Overdue != 1 || stats.Unassigned != 2 {
		t.Fatalf("overdue = %d unassigned = %d", stats.Overdue, stats.Unassigned)
	}
	if want := float64(1) / float64(3) * 100; stats.CompletionRate != want {
		t.Fatalf("completion rate = %v, want %v", stats.CompletionRate, want)
	}
}

func TestProjectStatsCompletionRateZeroSafe(t *testing.T) {
	svc, _ := newDashboardFixture(t)

	stats, err := svc.Project(context.Background(), "alice", "proj-1")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if stats.TotalIssues != 0 || stats.CompletionRate != 0 {
		t.Fatalf("total = %d rate = %v, want zeros", stats.TotalIssues, stats.CompletionRate)
	}
}

func TestProjectStatsRequireMembership(t *testing.T) {
	svc, _ := newDashboardFixture(t)

	_, err := svc.Project(context.Background(), "mallory", "proj-1")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
