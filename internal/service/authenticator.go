package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/session-auth-api/internal/apperr"
	"github.com/iliyamo/session-auth-api/internal/fingerprint"
	"github.com/iliyamo/session-auth-api/internal/model"
	"github.com/iliyamo/session-auth-api/internal/repository"
)

// Principal is the identity attached to an authenticated request.
type Principal struct {
	User      model.User
	SessionID string // public id of the session the token is bound to
	Roles     []string
}

// HasAnyRole reports whether p holds at least one of roles.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Authenticator validates bearer tokens against live sessions.
type Authenticator struct {
	tokens   TokenIssuer
	sessions SessionStore
	users    UserStore
	roles    RoleStore
	cache    SessionCache
	logger   *zap.SugaredLogger
}

func NewAuthenticator(tokens TokenIssuer, sessions SessionStore, users UserStore, roles RoleStore, cache SessionCache, logger *zap.SugaredLogger) *Authenticator {
	if cache == nil {
		cache = noCache{}
	}
	return &Authenticator{tokens: tokens, sessions: sessions, users: users, roles: roles, cache: cache, logger: logger}
}

// Authenticate accepts raw only when it verifies, names an ACTIVE session
// owned by the token's user, and fp matches the fingerprint recorded when
// that session was created.  Every rejection is Unauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, raw string, fp fingerprint.Fingerprint) (Principal, error) {
	if raw == "" {
		return Principal{}, apperr.Unauthenticated("missing bearer token")
	}
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return Principal{}, apperr.Unauthenticated("invalid or expired token")
	}

	sess, err := a.activeSession(ctx, claims.SessionID)
	if err != nil {
		return Principal{}, err
	}

	u, err := a.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, apperr.Unauthenticated("session owner not found")
		}
		return Principal{}, apperr.Internal(err)
	}
	if u.PublicID != claims.UserID {
		a.logger.Warnw("token user does not own session", "session", sess.PublicID)
		return Principal{}, apperr.Unauthenticated("token does not match session")
	}
	if !fp.Matches(sess.UserAgent) {
		a.logger.Warnw("client fingerprint mismatch", "session", sess.PublicID, "ip", fp.IP)
		return Principal{}, apperr.Unauthenticated("token presented by a different client")
	}

	roles, err := a.roles.NamesForUser(ctx, u.ID)
	if err != nil {
		return Principal{}, apperr.Internal(err)
	}
	return Principal{User: u, SessionID: sess.PublicID, Roles: roles}, nil
}

func (a *Authenticator) activeSession(ctx context.Context, publicID string) (model.Session, error) {
	if s, ok := a.cache.Get(ctx, publicID); ok {
		return s, nil
	}
	s, err := a.sessions.GetActiveByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Session{}, apperr.Unauthenticated("session is not active")
		}
		return model.Session{}, apperr.Internal(err)
	}
	if err := a.cache.Set(ctx, s); err != nil {
		a.logger.Warnw("session cache write failed", "session", publicID, "error", err)
	}
	return s, nil
}
