package model

import "time"

// ResetToken is the stored side of a password-reset token. Only the SHA-256
// hash of the token value is kept; the value itself goes to the requester.
type ResetToken struct {
	Identity  string
	TokenHash string
	ExpiresAt time.Time
	Created   time.Time
}

// IssuedResetToken is returned to the caller of forgot-password.
type IssuedResetToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
