package models

import "time"

// CSRFToken is a single-use token bound to a session. Deleting the session
// cascades deletion of its tokens.
type CSRFToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Token string `gorm:"type:text;not null;uniqueIndex"` // Opaque token value.

	SessionID uint64   `gorm:"not null;index"`                                   // Owning session ID.
	Session   *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"` // Owning session.

	Used bool `gorm:"not null;default:false"` // Consumed at most once.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	ExpiresAt time.Time `gorm:"not null;index"`          // Hard expiry.
}
