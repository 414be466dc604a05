package team

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository/memory"
	"github.com/jiralite/api/internal/service/access"
	"github.com/jiralite/api/internal/service/notification"
	"github.com/jiralite/api/pkg/config"
)

type stubMailer struct {
	sent []string
	err  error
}

func (m *stubMailer) Send(to, _, _ string) error {
	m.sent = append(m.sent, to)
	return m.err
}

type teamFixture struct {
	repo *memory.Repository
	mail *stubMailer
	svc  Service
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()
	repo := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mail := &stubMailer{}
	resolver := access.New(repo, repo, repo, logger)
	notify := notification.New(repo, nil, logger)
	cfg := config.APIConfig{FrontendBaseURL: "http://localhost:3000"}
	return &teamFixture{
		repo: repo,
		mail: mail,
		svc:  New(repo, repo, resolver, notify, mail, logger, cfg),
	}
}

func (f *teamFixture) addMember(t *testing.T, teamID, userID, role string) {
	t.Helper()
	m := domain.TeamMember{ID: teamID + "-" + userID, TeamID: teamID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	if err := f.repo.AddMember(context.Background(), &m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func TestCreateSetsOwnerMembership(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, err := f.svc.Create(ctx, "alice", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if summary.MyRole != domain.RoleOwner || summary.MemberCount != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	member, err := f.repo.GetMembership(ctx, summary.ID, "alice")
	if err != nil {
		t.Fatalf("membership: %v", err)
	}
	if member.Role != domain.RoleOwner {
		t.Fatalf("role = %q, want OWNER", member.Role)
	}
	if len(f.repo.Activity) != 1 || f.repo.Activity[0].ActionType != "team_created" {
		t.Fatalf("activity feed = %+v", f.repo.Activity)
	}
}

func TestChangeRoleRejectsSelf(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, err := f.svc.Create(ctx, "alice", "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Even a no-op change to the caller's current role is rejected.
	err = f.svc.ChangeRole(ctx, "alice", summary.ID, "alice", domain.RoleOwner)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangeRoleIsOwnerOnly(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "alice", "core")
	f.addMember(t, summary.ID, "bob", domain.RoleAdmin)
	f.addMember(t, summary.ID, "carol", domain.RoleMember)

	err := f.svc.ChangeRole(ctx, "bob", summary.ID, "carol", domain.RoleAdmin)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("admin actor: expected forbidden, got %v", err)
	}

	if err := f.svc.ChangeRole(ctx, "alice", summary.ID, "carol", domain.RoleAdmin); err != nil {
		t.Fatalf("owner actor: %v", err)
	}
	member, _ := f.repo.GetMembership(ctx, summary.ID, "carol")
	if member.Role != domain.RoleAdmin {
		t.Fatalf("role = %q, want ADMIN", member.Role)
	}
	// The target gets an in-app notification.
	count, _ := f.repo.CountUnreadNotifications(ctx, "carol")
	if count != 1 {
		t.Fatalf("unread notifications = %d, want 1", count)
	}
}

func TestKickMatrix(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "owner", "core")
	teamID := summary.ID
	f.addMember(t, teamID, "admin", domain.RoleAdmin)
	f.addMember(t, teamID, "admin2", domain.RoleAdmin)
	f.addMember(t, teamID, "member", domain.RoleMember)

	if err := f.svc.Kick(ctx, "admin", teamID, "admin"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("self kick: expected validation, got %v", err)
	}
	if err := f.svc.Kick(ctx, "admin", teamID, "admin2"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("admin kicking admin: expected forbidden, got %v", err)
	}
	if err := f.svc.Kick(ctx, "admin", teamID, "owner"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("admin kicking owner: expected forbidden, got %v", err)
	}
	if err := f.svc.Kick(ctx, "member", teamID, "admin"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("member actor: expected forbidden, got %v", err)
	}

	if err := f.svc.Kick(ctx, "admin", teamID, "member"); err != nil {
		t.Fatalf("admin kicking member: %v", err)
	}
	if err := f.svc.Kick(ctx, "owner", teamID, "admin2"); err != nil {
		t.Fatalf("owner kicking admin: %v", err)
	}
	if _, err := f.repo.GetMembership(ctx, teamID, "member"); err == nil {
		t.Fatal("kicked member still present")
	}
}

func TestLeaveBlockedForOwner(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "alice", "core")
	f.addMember(t, summary.ID, "bob", domain.RoleMember)

	if err := f.svc.Leave(ctx, "alice", summary.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("owner leave: expected validation, got %v", err)
	}
	if err := f.svc.Leave(ctx, "bob", summary.ID); err != nil {
		t.Fatalf("member leave: %v", err)
	}
	if _, err := f.repo.GetMembership(ctx, summary.ID, "bob"); err == nil {
		t.Fatal("departed member still present")
	}
}

func TestInviteLifecycle(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "alice", "core")
	invite, err := f.svc.Invite(ctx, "alice", summary.ID, "bob@example.com", domain.RoleMember)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if invite.Status != domain.InviteStatusPending {
		t.Fatalf("status = %q, want pending", invite.Status)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0] != "bob@example.com" {
		t.Fatalf("mail recipients = %v", f.mail.sent)
	}

	if err := f.svc.AcceptInvite(ctx, "bob", invite.Token); err != nil {
		t.Fatalf("accept: %v", err)
	}
	member, err := f.repo.GetMembership(ctx, summary.ID, "bob")
	if err != nil {
		t.Fatalf("membership after accept: %v", err)
	}
	if member.Role != domain.RoleMember {
		t.Fatalf("role = %q, want MEMBER", member.Role)
	}

	// Accepted invites are single-use.
	err = f.svc.AcceptInvite(ctx, "carol", invite.Token)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("second redemption: expected not found, got %v", err)
	}
}

func TestAcceptInviteExpired(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "alice", "core")
	invite, err := f.svc.Invite(ctx, "alice", summary.ID, "bob@example.com", domain.RoleMember)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	stored := f.repo.Invites[invite.ID]
	stored.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	err = f.svc.AcceptInvite(ctx, "bob", invite.Token)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expired invite: expected validation, got %v", err)
	}
	if _, err := f.repo.GetMembership(ctx, summary.ID, "bob"); err == nil {
		t.Fatal("expired invite still granted membership")
	}
}

func TestInviteRejectsExistingMember(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	if err := f.repo.CreateUser(ctx, &domain.User{ID: "bob", Email: "bob@example.com", Name: "Bob"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	summary, _ := f.svc.Create(ctx, "alice", "core")
	f.addMember(t, summary.ID, "bob", domain.RoleMember)

	_, err := f.svc.Invite(ctx, "alice", summary.ID, "bob@example.com", domain.RoleMember)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetMasksForNonMembers(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	summary, _ := f.svc.Create(ctx, "alice", "core")
	if _, err := f.svc.Get(ctx, "mallory", summary.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
