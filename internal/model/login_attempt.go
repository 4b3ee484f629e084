package model

import "time"

// LoginAttempt counts consecutive failed logins for one identity.
// LockUntil is set once the count reaches the lockout threshold.
type LoginAttempt struct {
	Identity      string
	FailedCount   int
	LastFailureAt time.Time
	LockUntil     *time.Time
}

// AccountStatus is the observed lockout state of an account.
type AccountStatus struct {
	Exists            bool       `json:"exists"`
	Locked            bool       `json:"isLocked"`
	RemainingAttempts int        `json:"remainingAttempts"`
	LockUntil         *time.Time `json:"lockUntil,omitempty"`
}
