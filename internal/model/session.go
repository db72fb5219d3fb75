package model

import "time"

// SessionStatus is the lifecycle state of a login session.  A session only
// ever moves from ACTIVE to LOGOUT.
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionLogout  SessionStatus = "LOGOUT"
	SessionExpired SessionStatus = "EXPIRED"
)

// Session mirrors the `sessions` table.  UserAgent is the client
// fingerprint recorded at login; bearer tokens are only honoured for
// requests presenting the same value.
type Session struct {
	ID        uint64
	PublicID  string
	UserID    uint64
	UserAgent string
	IP        string
	Status    SessionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
