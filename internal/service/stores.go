// Package service holds the authentication core: the orchestrator behind
// signup, login, logout and email verification, and the authenticator that
// gates protected requests.  Both depend on narrow store interfaces so the
// persistence layer can be swapped in tests.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/session-auth-api/internal/mail"
	"github.com/iliyamo/session-auth-api/internal/model"
	"github.com/iliyamo/session-auth-api/internal/token"
)

// UserStore is the credential store.
type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByPublicID(ctx context.Context, publicID string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	MarkEmailVerified(ctx context.Context, userID uint64, at time.Time) error
}

// RoleStore reads roles and assigns them to users.
type RoleStore interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
	AssignTx(ctx context.Context, tx *sql.Tx, userID, roleID uint64) error
	NamesForUser(ctx context.Context, userID uint64) ([]string, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetActiveByPublicID(ctx context.Context, publicID string) (model.Session, error)
	SetStatus(ctx context.Context, id uint64, from, to model.SessionStatus) (bool, error)
	ListActiveByUser(ctx context.Context, userID uint64) ([]model.Session, error)
}

// OTPStore persists one-time codes.
type OTPStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, o *model.OTP) error
	FindAvailable(ctx context.Context, userID uint64, code string, purpose model.OTPPurpose) (model.OTP, error)
	SetStatus(ctx context.Context, id uint64, from, to model.OTPStatus) (bool, error)
}

// TxRunner groups writes into one transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Mailer dispatches a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// TokenIssuer mints and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID, sessionID string) (token.Token, error)
	Verify(raw string) (*token.Claims, error)
}

// SessionCache fronts SessionStore lookups for the authenticator.
type SessionCache interface {
	Get(ctx context.Context, publicID string) (model.Session, bool)
	// Set must not overwrite an existing entry.
	Set(ctx context.Context, s model.Session) error
	// Revoke makes Get miss for publicID and blocks later Sets of it.
	Revoke(ctx context.Context, publicID string) error
}

// noCache is used when no SessionCache is configured.
type noCache struct{}

func (noCache) Get(context.Context, string) (model.Session, bool) { return model.Session{}, false }
func (noCache) Set(context.Context, model.Session) error          { return nil }
func (noCache) Revoke(context.Context, string) error              { return nil }
