package utils

import (
	"crypto/rand"
	"math/big"
)

// OTPDigits is the length of generated one-time codes.
const OTPDigits = 8

var otpMax = big.NewInt(100_000_000) // 10^OTPDigits

// NewOTPCode returns a uniformly random, zero-padded 8-digit code.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	s := n.String()
	for len(s) < OTPDigits {
		s = "0" + s
	}
	return s, nil
}
