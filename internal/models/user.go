package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text"`                      // Email address; unique when non-empty.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active   bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	LastLoginAt *time.Time // Last successful login time.

	Sessions          []Session          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Active and expired sessions.
	LLMConfigurations []LLMConfiguration `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Stored provider configurations.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
