package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository/memory"
	"github.com/jiralite/api/internal/service/access"
)

type projectFixture struct {
	repo *memory.Repository
	svc  Service
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()
	repo := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	if err := repo.CreateTeam(ctx, &domain.Team{ID: "team-1", Name: "core", OwnerID: "owner"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	for user, role := range map[string]string{
		"owner":  domain.RoleOwner,
		"admin":  domain.RoleAdmin,
		"member": domain.RoleMember,
	} {
		m := domain.TeamMember{ID: "m-" + user, TeamID: "team-1", UserID: user, Role: role}
		if err := repo.AddMember(ctx, &m); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	resolver := access.New(repo, repo, repo, logger)
	return &projectFixture{repo: repo, svc: New(repo, repo, resolver, logger)}
}

func TestCreateEnforcesProjectQuota(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	for i := 0; i < maxProjectsPerTeam; i++ {
		if _, err := f.svc.Create(ctx, "member", "team-1", fmt.Sprintf("proj %d", i), ""); err != nil {
			t.Fatalf("project %d: %v", i, err)
		}
	}
	_, err := f.svc.Create(ctx, "member", "team-1", "one too many", "")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateQuotaIgnoresDeletedProjects(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	var last *domain.Project
	for i := 0; i < maxProjectsPerTeam; i++ {
		p, err := f.svc.Create(ctx, "member", "team-1", fmt.Sprintf("proj %d", i), "")
		if err != nil {
			t.Fatalf("project %d: %v", i, err)
		}
		last = p
	}
	if err := f.svc.Delete(ctx, "owner", last.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Create(ctx, "member", "team-1", "replacement", ""); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
}

func TestManagePermissions(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, "member", "team-1", "api", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The creating member manages their own project; another plain member
	// may not, while team admins always may.
	name := "renamed"
	if _, err := f.svc.Update(ctx, "member", created.ID, UpdateInput{Name: &name}); err != nil {
		t.Fatalf("creator update: %v", err)
	}
	m := domain.TeamMember{ID: "m-other", TeamID: "team-1", UserID: "other", Role: domain.RoleMember}
	if err := f.repo.AddMember(ctx, &m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	if _, err := f.svc.Update(ctx, "other", created.ID, UpdateInput{Name: &name}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("other member update: expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, "admin", created.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestLabelQuota(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, "member", "team-1", "api", "")
	for i := 0; i < maxLabelsPerProject; i++ {
		if _, err := f.svc.CreateLabel(ctx, "member", created.ID, fmt.Sprintf("label-%d", i), "#ff0000"); err != nil {
			t.Fatalf("label %d: %v", i, err)
		}
	}
	_, err := f.svc.CreateLabel(ctx, "member", created.ID, "overflow", "#ff0000")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCustomStatusQuota(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, "member", "team-1", "api", "")
	for i := 0; i < maxStatusesPerProject; i++ {
		if _, err := f.svc.CreateCustomStatus(ctx, "member", created.ID, fmt.Sprintf("col-%d", i), "#00ff00", i, nil); err != nil {
			t.Fatalf("status %d: %v", i, err)
		}
	}
	_, err := f.svc.CreateCustomStatus(ctx, "member", created.ID, "overflow", "#00ff00", 5, nil)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestToggleFavoriteIsPerUser(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, "member", "team-1", "api", "")
	fav, err := f.svc.ToggleFavorite(ctx, "member", created.ID)
	if err != nil || !fav {
		t.Fatalf("toggle on: fav=%v err=%v", fav, err)
	}

	got, err := f.svc.Get(ctx, "member", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsFavorite {
		t.Fatal("member's favorite flag lost")
	}
	other, err := f.svc.Get(ctx, "admin", created.ID)
	if err != nil {
		t.Fatalf("get as admin: %v", err)
	}
	if other.IsFavorite {
		t.Fatal("favorite leaked across users")
	}

	fav, err = f.svc.ToggleFavorite(ctx, "member", created.ID)
	if err != nil || fav {
		t.Fatalf("toggle off: fav=%v err=%v", fav, err)
	}
}

func TestListByTeamSortsFavoritesFirst(t *testing.T) {
	f := newProjectFixture(t)
	ctx := context.Background()

	first, _ := f.svc.Create(ctx, "member", "team-1", "alpha", "")
	second, _ := f.svc.Create(ctx, "member", "team-1", "beta", "")
	_ = first
	if _, err := f.svc.ToggleFavorite(ctx, "member", second.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	summaries, err := f.svc.ListByTeam(ctx, "member", "team-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != second.ID || !summaries[0].IsFavorite {
		t.Fatalf("unexpected order %+v", summaries)
	}
}
