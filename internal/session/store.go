package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/cache"
	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/security"
	internalsettings "github.com/agenthub-dev/agenthub/internal/settings"
)

// Session validation errors.
var (
	// ErrInvalidSession indicates an unknown or revoked session token.
	ErrInvalidSession = errors.New("session: invalid session")
	// ErrSessionExpired indicates a session past its hard expiry.
	ErrSessionExpired = errors.New("session: session expired")
	// ErrInvalidCSRFToken indicates an unknown, expired, or already-consumed CSRF token.
	ErrInvalidCSRFToken = errors.New("session: invalid csrf token")
)

// Cache is the session fast-path contract, satisfied by cache.SessionCache.
type Cache interface {
	Set(ctx context.Context, tokenHash string, entry cache.SessionEntry, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (cache.SessionEntry, bool, error)
	Delete(ctx context.Context, tokenHash string) error
}

// Store manages server-side sessions and their CSRF tokens.
type Store struct {
	db    *gorm.DB
	cache Cache
}

// NewStore constructs a session store. cache may be nil.
func NewStore(db *gorm.DB, sessionCache Cache) *Store {
	return &Store{db: db, cache: sessionCache}
}

// cacheStore mirrors a session row into the cache for its remaining lifetime.
func (s *Store) cacheStore(ctx context.Context, row *models.Session) {
	if s.cache == nil {
		return
	}
	ttl := time.Until(row.ExpiresAt)
	if ttl <= 0 {
		return
	}
	entry := cache.SessionEntry{SessionID: row.ID, UserID: row.UserID, ExpiresAt: row.ExpiresAt}
	if errCache := s.cache.Set(ctx, row.TokenHash, entry, ttl); errCache != nil {
		log.WithError(errCache).Warn("session: cache set failed")
	}
}

// cacheEvict drops a cached session entry.
func (s *Store) cacheEvict(ctx context.Context, tokenHash string) {
	if s.cache == nil {
		return
	}
	if errCache := s.cache.Delete(ctx, tokenHash); errCache != nil {
		log.WithError(errCache).Warn("session: cache delete failed")
	}
}

// sessionTTL resolves the configured session lifetime.
func sessionTTL() time.Duration {
	hours := internalsettings.DBConfigInt(internalsettings.SessionTTLHoursKey, internalsettings.DefaultSessionTTLHours)
	if hours <= 0 {
		hours = internalsettings.DefaultSessionTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// csrfTTL resolves the configured CSRF token lifetime.
func csrfTTL() time.Duration {
	minutes := internalsettings.DBConfigInt(internalsettings.CSRFTokenTTLMinutesKey, internalsettings.DefaultCSRFTokenTTLMinutes)
	if minutes <= 0 {
		minutes = internalsettings.DefaultCSRFTokenTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// CreateParams holds client metadata recorded with a new session.
type CreateParams struct {
	UserID      uint64
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// Create opens a new session and returns the raw token handed to the client.
// Only the token's SHA-256 hash is persisted.
func (s *Store) Create(ctx context.Context, params CreateParams) (string, *models.Session, error) {
	if params.UserID == 0 {
		return "", nil, errors.New("session: user id is required")
	}
	token, errToken := security.GenerateSessionToken()
	if errToken != nil {
		return "", nil, errToken
	}

	now := time.Now().UTC()
	ttl := sessionTTL()
	row := models.Session{
		UserID:       params.UserID,
		TokenHash:    security.HashToken(token),
		Fingerprint:  params.Fingerprint,
		IPAddress:    params.IPAddress,
		UserAgent:    params.UserAgent,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
		CreatedAt:    now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return "", nil, fmt.Errorf("session: create: %w", errCreate)
	}

	s.cacheStore(ctx, &row)
	return token, &row, nil
}

// Validate resolves a raw token to its live session and touches last_activity.
// A cache hit authenticates without a database lookup; the returned session
// then carries identity and expiry fields only. Expired sessions are deleted
// on sight.
func (s *Store) Validate(ctx context.Context, token string) (*models.Session, error) {
	tokenHash := security.HashToken(token)
	now := time.Now().UTC()

	if s.cache != nil {
		entry, hit, errCache := s.cache.Get(ctx, tokenHash)
		if errCache != nil {
			log.WithError(errCache).Warn("session: cache get failed")
		} else if hit && entry.ExpiresAt.After(now) {
			s.touchLastActivity(ctx, entry.SessionID, now)
			return &models.Session{
				ID:           entry.SessionID,
				UserID:       entry.UserID,
				TokenHash:    tokenHash,
				ExpiresAt:    entry.ExpiresAt,
				LastActivity: now,
			}, nil
		}
	}

	var row models.Session
	errFind := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if errFind != nil {
		return nil, fmt.Errorf("session: lookup: %w", errFind)
	}

	if row.Expired(now) {
		if errDelete := s.db.WithContext(ctx).Delete(&models.Session{}, row.ID).Error; errDelete != nil {
			log.WithError(errDelete).Warn("session: delete expired failed")
		}
		s.cacheEvict(ctx, tokenHash)
		return nil, ErrSessionExpired
	}

	s.touchLastActivity(ctx, row.ID, now)
	row.LastActivity = now
	// Repopulate after a miss so the next validation takes the fast path.
	s.cacheStore(ctx, &row)
	return &row, nil
}

func (s *Store) touchLastActivity(ctx context.Context, sessionID uint64, now time.Time) {
	if errTouch := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("last_activity", now).Error; errTouch != nil {
		log.WithError(errTouch).Warn("session: touch last_activity failed")
	}
}

// Revoke deletes the session for a raw token. Dependent CSRF tokens cascade.
func (s *Store) Revoke(ctx context.Context, token string) error {
	tokenHash := security.HashToken(token)
	result := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session: revoke: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidSession
	}
	s.cacheEvict(ctx, tokenHash)
	return nil
}

// RevokeAllForUser deletes every session owned by a user.
func (s *Store) RevokeAllForUser(ctx context.Context, userID uint64) error {
	var rows []models.Session
	if errFind := s.db.WithContext(ctx).Select("id", "token_hash").Where("user_id = ?", userID).Find(&rows).Error; errFind != nil {
		return fmt.Errorf("session: list for revoke: %w", errFind)
	}
	if len(rows) == 0 {
		return nil
	}
	if errDelete := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error; errDelete != nil {
		return fmt.Errorf("session: revoke all: %w", errDelete)
	}
	for _, row := range rows {
		s.cacheEvict(ctx, row.TokenHash)
	}
	return nil
}

// IssueCSRF mints a single-use CSRF token bound to a session.
func (s *Store) IssueCSRF(ctx context.Context, sessionID uint64) (string, error) {
	token, errToken := security.GenerateCSRFToken()
	if errToken != nil {
		return "", errToken
	}
	now := time.Now().UTC()
	row := models.CSRFToken{
		Token:     token,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(csrfTTL()),
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return "", fmt.Errorf("session: issue csrf: %w", errCreate)
	}
	return token, nil
}

// ConsumeCSRF atomically marks a CSRF token used. A token is consumed at most
// once; expired, foreign, or already-used tokens are rejected.
func (s *Store) ConsumeCSRF(ctx context.Context, sessionID uint64, token string) error {
	if token == "" {
		return ErrInvalidCSRFToken
	}
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.CSRFToken{}).
		Where("token = ? AND session_id = ? AND used = ? AND expires_at > ?", token, sessionID, false, now).
		Update("used", true)
	if result.Error != nil {
		return fmt.Errorf("session: consume csrf: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidCSRFToken
	}
	return nil
}

// SweepExpired deletes expired sessions (cascading their CSRF tokens) and
// expired or consumed CSRF tokens. Returns the number of sessions removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	var stale []models.Session
	if errFind := s.db.WithContext(ctx).Select("id", "token_hash").Where("expires_at <= ?", now).Find(&stale).Error; errFind != nil {
		return 0, fmt.Errorf("session: list expired: %w", errFind)
	}
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session: sweep sessions: %w", result.Error)
	}
	for _, row := range stale {
		s.cacheEvict(ctx, row.TokenHash)
	}

	if errCSRF := s.db.WithContext(ctx).
		Where("expires_at <= ? OR used = ?", now, true).
		Delete(&models.CSRFToken{}).Error; errCSRF != nil {
		return result.RowsAffected, fmt.Errorf("session: sweep csrf: %w", errCSRF)
	}
	return result.RowsAffected, nil
}
