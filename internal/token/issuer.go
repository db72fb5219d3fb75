// Package token issues and verifies the signed bearer tokens that bind a
// user to one login session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for any token that is malformed,
// signed with another key or algorithm, expired, or missing identities.
var ErrInvalidToken = errors.New("invalid token")

// CookieName is the cookie carrying the bearer token.
const CookieName = "Authorization"

// Claims are the signed contents of a bearer token.  UserID and SessionID are
// public identifiers, never internal row ids.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Token is a signed bearer token along with its lifetime.
type Token struct {
	Value     string    // the serialized JWT string
	ExpiresIn int64     // lifetime in seconds
	ExpiresAt time.Time // the UTC expiration time
}

// Issuer mints and verifies HS256 tokens with a server-held secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret and a fixed validity
// window of ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the validity window of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the given user and session public ids.
func (i *Issuer) Issue(userID, sessionID string) (Token, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresIn: int64(i.ttl / time.Second), ExpiresAt: exp}, nil
}

// Verify parses raw and returns its claims.  Every failure is reported as
// ErrInvalidToken wrapping the parser's reason.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Cookie renders the Set-Cookie value carrying tok.
func Cookie(tok Token) string {
	return fmt.Sprintf("%s=%s; HttpOnly; Max-Age=%d", CookieName, tok.Value, tok.ExpiresIn)
}
