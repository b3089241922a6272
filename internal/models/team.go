package models

import "time"

// Team membership roles.
const (
	// TeamRoleAdmin marks the team creator or an elevated member.
	TeamRoleAdmin = "admin"
	// TeamRoleMember marks a regular member.
	TeamRoleMember = "member"
)

// Team represents a group of users sharing workspace resources.
type Team struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null;uniqueIndex"` // Unique team name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe identifier.

	OwnerID uint64 `gorm:"not null;index"`     // Creating user ID.
	Owner   *User  `gorm:"foreignKey:OwnerID"` // Creating user.

	Members []TeamMember `gorm:"foreignKey:TeamID"` // Team memberships.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TeamID uint64 `gorm:"not null;uniqueIndex:uq_team_members_team_user"` // Owning team ID.
	Team   *Team  `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`  // Owning team.

	UserID uint64 `gorm:"not null;uniqueIndex:uq_team_members_team_user;index"` // Member user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`        // Member user.

	Role string `gorm:"type:text;not null;default:member"` // Membership role.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
