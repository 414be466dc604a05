package team

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
	"github.com/jiralite/api/pkg/crypto"
)

const inviteTTL = 7 * 24 * time.Hour

// Summary is a team enriched with caller-relative fields.
type Summary struct {
	domain.Team
	MemberCount int    `json:"member_count"`
	MyRole      string `json:"my_role"`
}

// Member is a membership joined with the user's public profile.
type Member struct {
	domain.TeamMember
	User *domain.User `json:"user,omitempty"`
}

// Service handles team workflows.
type Service struct {
	teams    repository.TeamRepository
	users    repository.UserRepository
	resolver access.Resolver
	notify   notification.Service
	mail     mailer.Sender
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service.
func New(teams repository.TeamRepository, users repository.UserRepository, resolver access.Resolver, notify notification.Service, mail mailer.Sender, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{teams: teams, users: users, resolver: resolver, notify: notify, mail: mail, logger: logger, cfg: cfg}
}

// logActivity appends to the team feed. Feed writes ride along with the main
// operation and are not rolled back with it; a failed append only warns.
func (s Service) logActivity(ctx context.Context, teamID, userID, action, entityType, entityID, description string) {
	entry := &domain.ActivityLog{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		UserID:      userID,
		ActionType:  action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.teams.InsertActivity(ctx, entry); err != nil {
		s.logger.Warn("activity log append failed", "team_id", teamID, "action", action, "error", err)
	}
}

func (s Service) userName(ctx context.Context, userID string) string {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "A member"
	}
	return user.Name
}

// Create registers a team and its OWNER membership. The steps are an ordered
// sequence, not a transaction: a failure after the team insert leaves the
// team without a membership row.
func (s Service) Create(ctx context.Context, userID, name string) (*Summary, error) {
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}
	now := time.Now().UTC()
	team := &domain.Team{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	member := &domain.TeamMember{
		ID:       uuid.NewString(),
		TeamID:   team.ID,
		UserID:   userID,
		Role:     domain.RoleOwner,
		JoinedAt: now,
	}
	if err := s.teams.AddMember(ctx, member); err != nil {
		return nil, err
	}
	s.logActivity(ctx, team.ID, userID, "team_created", "team", team.ID,
		fmt.Sprintf("%s created the team", s.userName(ctx, userID)))
	s.logger.Info("team created", "team_id", team.ID, "owner_id", userID)
	return &Summary{Team: *team, MemberCount: 1, MyRole: domain.RoleOwner}, nil
}

// ListMine returns every team the user belongs to, with member counts.
func (s Service) ListMine(ctx context.Context, userID string) ([]Summary, error) {
	memberships, err := s.teams.GetMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(memberships))
	for _, m := range memberships {
		team, err := s.teams.GetTeamByID(ctx, m.TeamID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		count, err := s.teams.CountMembers(ctx, m.TeamID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{Team: *team, MemberCount: count, MyRole: m.Role})
	}
	return summaries, nil
}

// Get returns team details for a member.
func (s Service) Get(ctx context.Context, userID, teamID string) (*Summary, error) {
	membership, err := s.resolver.Membership(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("team not found")
		}
		return nil, err
	}
	count, err := s.teams.CountMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &Summary{Team: *team, MemberCount: count, MyRole: membership.Role}, nil
}

// Update renames a team. Requires admin.
func (s Service) Update(ctx context.Context, userID, teamID, name string) (*domain.Team, error) {
	if _, err := s.resolver.RequireAdmin(ctx, userID, teamID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}
	team, err := s.teams.UpdateTeamName(ctx, teamID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("team not found")
		}
		return nil, err
	}
	s.logActivity(ctx, teamID, userID, "team_updated", "team", teamID,
		fmt.Sprintf("%s updated team information", s.userName(ctx, userID)))
	return team, nil
}

// Delete soft-deletes a team. Requires owner.
func (s Service) Delete(ctx context.Context, userID, teamID string) error {
	if _, err := s.resolver.RequireOwner(ctx, userID, teamID); err != nil {
		return err
	}
	if err := s.teams.SoftDeleteTeam(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("team not found")
		}
		return err
	}
	s.logger.Info("team deleted", "team_id", teamID, "user_id", userID)
	return nil
}

// Members lists the team roster with public profiles.
func (s Service) Members(ctx context.Context, userID, teamID string) ([]Member, error) {
	if _, err := s.resolver.Membership(ctx, userID, teamID); err != nil {
		return nil, err
	}
	memberships, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		member := Member{TeamMember: m}
		if user, err := s.users.GetUserByID(ctx, m.UserID); err == nil {
			member.User = user
		}
		members = append(members, member)
	}
	return members, nil
}

// Invite creates a pending invitation and emails the invitee. Requires admin.
func (s Service) Invite(ctx context.Context, userID, teamID, inviteeEmail, role string) (*domain.TeamInvite, error) {
	if _, err := s.resolver.RequireAdmin(ctx, userID, teamID); err != nil {
		return nil, err
	}
	if inviteeEmail == "" {
		return nil, apperr.Validation("invitee email is required")
	}
	if !domain.ValidRole(role) {
		return nil, apperr.Validation("invalid role")
	}
	if invitee, err := s.users.GetUserByEmail(ctx, inviteeEmail); err == nil {
		if _, err := s.teams.GetMembership(ctx, teamID, invitee.ID); err == nil {
			return nil, apperr.Validation("user is already a team member")
		}
	}
	token, err := crypto.RandomToken(32)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	invite := &domain.TeamInvite{
		ID:           uuid.NewString(),
		TeamID:       teamID,
		InviterID:    userID,
		InviteeEmail: inviteeEmail,
		Role:         role,
		Token:        token,
		Status:       domain.InviteStatusPending,
		ExpiresAt:    now.Add(inviteTTL),
		CreatedAt:    now,
	}
	if err := s.teams.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	link := fmt.Sprintf("%s/invite/%s", s.cfg.FrontendBaseURL, token)
	subject, body := mailer.TeamInviteBody(team.Name, s.userName(ctx, userID), link)
	if err := s.mail.Send(inviteeEmail, subject, body); err != nil {
		s.logger.Warn("invite email failed", "team_id", teamID, "error", err)
	}

	s.logActivity(ctx, teamID, userID, "member_invited", "team_invite", invite.ID,
		fmt.Sprintf("%s invited %s", s.userName(ctx, userID), inviteeEmail))
	return invite, nil
}

// AcceptInvite redeems an invite token for the current user. Accepted invites
// are immutable: a second redemption fails, as does any redemption past the
// 7-day expiry.
func (s Service) AcceptInvite(ctx context.Context, userID, token string) error {
	invite, err := s.teams.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("invalid or expired invitation")
		}
		return err
	}
	if invite.Status != domain.InviteStatusPending {
		return apperr.NotFound("invalid or expired invitation")
	}
	if time.Now().UTC().After(invite.ExpiresAt) {
		return apperr.Validation("invitation has expired")
	}
	if _, err := s.teams.GetMembership(ctx, invite.TeamID, userID); err == nil {
		return apperr.Validation("user is already a team member")
	}
	member := &domain.TeamMember{
		ID:       uuid.NewString(),
		TeamID:   invite.TeamID,
		UserID:   userID,
		Role:     invite.Role,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.teams.AddMember(ctx, member); err != nil {
		return err
	}
	if err := s.teams.UpdateInviteStatus(ctx, invite.ID, domain.InviteStatusAccepted); err != nil {
		return err
	}
	s.logActivity(ctx, invite.TeamID, userID, "member_joined", "team_member", "",
		fmt.Sprintf("%s joined the team", s.userName(ctx, userID)))
	return nil
}

// ChangeRole updates another member's role. Owner only; changing one's own
// role is always rejected, even to the same role.
func (s Service) ChangeRole(ctx context.Context, actorID, teamID, targetID, role string) error {
	if _, err := s.resolver.RequireOwner(ctx, actorID, teamID); err != nil {
		return err
	}
	if targetID == actorID {
		return apperr.Validation("cannot change your own role")
	}
	if !domain.ValidRole(role) {
		return apperr.Validation("invalid role")
	}
	if err := s.teams.UpdateMemberRole(ctx, teamID, targetID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("member not found")
		}
		return err
	}
	if err := s.notify.Notify(ctx, targetID, notification.TypeRoleChange,
		"Your role has been updated",
		fmt.Sprintf("Your role in the team has been changed to %s", role),
		fmt.Sprintf("/teams/%s", teamID)); err != nil {
		s.logger.Warn("role change notification failed", "team_id", teamID, "user_id", targetID, "error", err)
	}
	s.logActivity(ctx, teamID, actorID, "role_changed", "team_member", "",
		fmt.Sprintf("%s changed a member's role to %s", s.userName(ctx, actorID), role))
	return nil
}

// Kick removes another member. Admins may remove only MEMBER-role targets;
// owners may remove anyone but themselves. Self-removal uses Leave.
func (s Service) Kick(ctx context.Context, actorID, teamID, targetID string) error {
	membership, err := s.resolver.RequireAdmin(ctx, actorID, teamID)
	if err != nil {
		return err
	}
	if targetID == actorID {
		return apperr.Validation("cannot kick yourself, use leave team instead")
	}
	target, err := s.teams.GetMembership(ctx, teamID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("member not found")
		}
		return err
	}
	if membership.Role == domain.RoleAdmin && target.Role != domain.RoleMember {
		return apperr.Forbidden("admins can only kick regular members")
	}
	if err := s.teams.RemoveMember(ctx, teamID, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("member not found")
		}
		return err
	}
	s.logActivity(ctx, teamID, actorID, "member_kicked", "team_member", "",
		fmt.Sprintf("%s removed a member from the team", s.userName(ctx, actorID)))
	return nil
}

// Leave removes the caller's own membership. Owners cannot leave: a team
// always retains exactly one owner.
func (s Service) Leave(ctx context.Context, userID, teamID string) error {
	membership, err := s.resolver.Membership(ctx, userID, teamID)
	if err != nil {
		return err
	}
	if membership.Role == domain.RoleOwner {
		return apperr.Validation("owners cannot leave the team, delete the team instead")
	}
	if err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("member not found")
		}
		return err
	}
	s.logActivity(ctx, teamID, userID, "member_left", "team_member", "",
		fmt.Sprintf("%s left the team", s.userName(ctx, userID)))
	return nil
}

// Activity returns a page of the team activity feed.
func (s Service) Activity(ctx context.Context, userID, teamID string, limit, offset int) ([]domain.ActivityLog, error) {
	if _, err := s.resolver.Membership(ctx, userID, teamID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.teams.ListActivity(ctx, teamID, limit, offset)
}
