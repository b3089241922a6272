package models

import "time"

// LLM configuration test result states.
const (
	// TestStatusUntested marks a configuration never verified against its provider.
	TestStatusUntested = "untested"
	// TestStatusSuccess marks the last verification as passing.
	TestStatusSuccess = "success"
	// TestStatusFailed marks the last verification as failing.
	TestStatusFailed = "failed"
)

// LLMConfiguration stores a user's provider credentials and model selection.
// At most one row per user may be the default; the storage layer enforces
// this with a partial unique index on (user_id) WHERE is_default.
type LLMConfiguration struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	Name     string `gorm:"type:text;not null"` // Display name.
	Provider string `gorm:"type:text;not null"` // Provider identifier, e.g. openai.
	Model    string `gorm:"type:text;not null"` // Model identifier.

	EncryptedAPIKey string  `gorm:"type:text;not null"` // AES-GCM encrypted provider API key.
	BaseURL         *string `gorm:"type:text"`          // Optional custom endpoint.

	IsDefault bool `gorm:"not null;default:false"` // The user's default configuration.
	IsActive  bool `gorm:"not null;default:true"`  // Whether selectable for new conversations.

	LastUsedAt *time.Time // Last time a conversation used this configuration.

	TestStatus  string `gorm:"type:text;not null;default:untested"` // Last verification outcome.
	TestMessage string `gorm:"type:text"`                           // Detail from the last verification.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
