package domain

import "time"

// TeamRole is a member's role within a team.
type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "admin"
	TeamRoleMember TeamRole = "member"
)

// IsValid reports whether r is a known role.
func (r TeamRole) IsValid() bool {
	return r == TeamRoleAdmin || r == TeamRoleMember
}

// User is an authenticated principal.
type User struct {
	ID        int64
	Username  string
	IsActive  bool
	CreatedAt time.Time
}

// Team groups users that collaborate on tasks.
type Team struct {
	ID   int64
	Name string
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID   int64
	UserID   int64
	Role     TeamRole
	JoinedAt time.Time
}
