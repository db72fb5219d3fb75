package model

import "time"

// User represents a row of the `users` table.  Handlers define their own
// response types; these structs stay internal to the persistence and
// service layers.
//
// Fields:
//
//	ID              – internal primary key.
//	PublicID        – UUID exposed to clients and embedded in tokens.
//	Email           – unique, lower-cased email address.
//	PasswordHash    – bcrypt hash.
//	DisplayName     – free-form name shown to other users.
//	EmailVerifiedAt – set exactly once when the verification OTP is consumed.
type User struct {
	ID              uint64
	PublicID        string
	Email           string
	PasswordHash    string
	DisplayName     string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Verified reports whether the user's email address has been confirmed.
func (u User) Verified() bool { return u.EmailVerifiedAt != nil }

// Role represents a row in the `roles` table.  Roles are seeded reference
// data; users reference them through `user_roles`.
type Role struct {
	ID       uint64
	PublicID string
	Name     string
}

// DefaultRole is assigned to every account on signup.
const DefaultRole = "USER"

// RoleAdmin is seeded alongside DefaultRole for operators.
const RoleAdmin = "ADMIN"
