// Package cache keeps recently verified ACTIVE sessions in Redis so the
// authenticator does not hit MySQL on every protected request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/session-auth-api/internal/config"
	"github.com/iliyamo/session-auth-api/internal/model"
)

// SessionCache stores ACTIVE sessions by public id.  A nil *SessionCache is
// valid and caches nothing.
type SessionCache struct {
	rdb *redis.Client
	cfg config.SessionCacheConfig
}

// NewSessionCache returns nil when caching is disabled or no client exists.
func NewSessionCache(cfg config.SessionCacheConfig, rdb *redis.Client) *SessionCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &SessionCache{rdb: rdb, cfg: cfg}
}

func (c *SessionCache) key(publicID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.Prefix, publicID)
}

// Get returns a cached session.  Misses and Redis errors both report false;
// the caller falls back to the store.
func (c *SessionCache) Get(ctx context.Context, publicID string) (model.Session, bool) {
	if c == nil {
		return model.Session{}, false
	}
	bs, err := c.rdb.Get(ctx, c.key(publicID)).Bytes()
	if err != nil {
		return model.Session{}, false
	}
	var s model.Session
	if err := json.Unmarshal(bs, &s); err != nil || s.Status != model.SessionActive {
		return model.Session{}, false
	}
	return s, true
}

// revoked is stored in place of a session that has been logged out.  It
// fails to decode as a session, so Get reports a miss.
const revoked = "LOGOUT"

// Set caches an ACTIVE session for the configured TTL.  Other statuses are
// never cached.  Set never overwrites an existing key, so a lookup that read
// the session before a logout cannot replace the logout's tombstone.
func (c *SessionCache) Set(ctx context.Context, s model.Session) error {
	if c == nil || s.Status != model.SessionActive {
		return nil
	}
	bs, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.SetNX(ctx, c.key(s.PublicID), bs, c.cfg.TTL).Err()
}

// Revoke replaces any cached copy of the session with a tombstone that lives
// for the cache TTL.  An error means the cached copy may still be served.
func (c *SessionCache) Revoke(ctx context.Context, publicID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, c.key(publicID), revoked, c.cfg.TTL).Err()
}
