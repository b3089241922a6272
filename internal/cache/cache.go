package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agenthub-dev/agenthub/internal/config"
)

// sessionKeyPrefix namespaces session entries in Redis.
const sessionKeyPrefix = "agenthub:session:"

// SessionEntry is the cached projection of a session row: enough to
// authenticate a request and touch last_activity without a database lookup.
type SessionEntry struct {
	SessionID uint64    `json:"session_id"`
	UserID    uint64    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCache is a Redis fast path for session lookups. A hit authenticates
// the request outright; the database stays authoritative on a miss.
type SessionCache struct {
	client *redis.Client
}

// NewSessionCache connects to Redis. A blank address disables the cache and
// returns nil without error.
func NewSessionCache(ctx context.Context, cfg config.RedisConfig) (*SessionCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", errPing)
	}
	return &SessionCache{client: client}, nil
}

// Set stores a token-hash to session mapping with a TTL.
func (c *SessionCache) Set(ctx context.Context, tokenHash string, entry SessionEntry, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	payload, errMarshal := json.Marshal(entry)
	if errMarshal != nil {
		return fmt.Errorf("cache: encode session entry: %w", errMarshal)
	}
	return c.client.Set(ctx, sessionKeyPrefix+tokenHash, payload, ttl).Err()
}

// Get returns the cached session entry for a token hash, if present.
func (c *SessionCache) Get(ctx context.Context, tokenHash string) (SessionEntry, bool, error) {
	if c == nil {
		return SessionEntry{}, false, nil
	}
	raw, errGet := c.client.Get(ctx, sessionKeyPrefix+tokenHash).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return SessionEntry{}, false, nil
	}
	if errGet != nil {
		return SessionEntry{}, false, fmt.Errorf("cache: get session: %w", errGet)
	}
	var entry SessionEntry
	if errUnmarshal := json.Unmarshal(raw, &entry); errUnmarshal != nil {
		return SessionEntry{}, false, fmt.Errorf("cache: corrupt session entry: %w", errUnmarshal)
	}
	if entry.SessionID == 0 || entry.UserID == 0 {
		return SessionEntry{}, false, fmt.Errorf("cache: corrupt session entry: missing ids")
	}
	return entry, true, nil
}

// Delete removes a cached session entry.
func (c *SessionCache) Delete(ctx context.Context, tokenHash string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, sessionKeyPrefix+tokenHash).Err()
}

// Close releases the Redis connection.
func (c *SessionCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
