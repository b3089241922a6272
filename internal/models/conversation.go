package models

import "time"

// Conversation is an agent conversation started by a user.
type Conversation struct {
	ID string `gorm:"type:text;primaryKey"` // UUID primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	Title string `gorm:"type:text"` // Optional display title.

	LLMConfigurationID *uint64           `gorm:"index"`                                                      // Configuration selected at creation.
	LLMConfiguration   *LLMConfiguration `gorm:"foreignKey:LLMConfigurationID;constraint:OnDelete:SET NULL"` // Cleared when the configuration is deleted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
