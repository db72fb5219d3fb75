package model

import "time"

// OTPStatus is the state of a one-time code.  AVAILABLE moves to exactly one
// of USED or EXPIRED.
type OTPStatus string

const (
	OTPAvailable OTPStatus = "AVAILABLE"
	OTPUsed      OTPStatus = "USED"
	OTPExpired   OTPStatus = "EXPIRED"
)

// OTPPurpose tags what a code may be exchanged for.
type OTPPurpose string

const PurposeEmailVerification OTPPurpose = "EMAIL_VERIFICATION"

// OTP mirrors the `otps` table.
type OTP struct {
	ID        uint64
	PublicID  string
	UserID    uint64
	Code      string
	Purpose   OTPPurpose
	Status    OTPStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the code is past its expiry at now.
func (o OTP) ExpiredAt(now time.Time) bool { return !now.Before(o.ExpiresAt) }
