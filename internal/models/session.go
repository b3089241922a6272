package models

import "time"

// Session represents a server-side login session. The raw token is handed to
// the client; only its SHA-256 hash is persisted.
type Session struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	TokenHash   string `gorm:"type:text;not null;uniqueIndex"` // SHA-256 hash of the session token.
	Fingerprint string `gorm:"type:text"`                      // Client fingerprint hash.
	IPAddress   string `gorm:"type:text"`                      // Client IP at creation.
	UserAgent   string `gorm:"type:text"`                      // Client user agent at creation.

	ExpiresAt    time.Time `gorm:"not null;index"` // Hard expiry.
	LastActivity time.Time `gorm:"not null"`       // Touched on each authenticated request.

	CSRFTokens []CSRFToken `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"` // Issued CSRF tokens.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Expired reports whether the session passed its hard expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
