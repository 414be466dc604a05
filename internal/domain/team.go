package domain

import "time"

// Team membership roles. OWNER is singular per team.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
	RoleOwner  = "OWNER"
)

// ValidRole reports whether role is one of the known membership roles.
func ValidRole(role string) bool {
	return role == RoleMember || role == RoleAdmin || role == RoleOwner
}

// Team is the owning entity for projects.
type Team struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Invite statuses. An accepted invite is immutable.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
)

// TeamInvite is a pending membership offer keyed by an unguessable token.
type TeamInvite struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	InviterID    string    `json:"inviter_id"`
	InviteeEmail string    `json:"invitee_email"`
	Role         string    `json:"role"`
	Token        string    `json:"-"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityLog records a team-scoped action for the audit feed.
type ActivityLog struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	UserID      string    `json:"user_id"`
	ActionType  string    `json:"action_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
