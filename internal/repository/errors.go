package repository

import "errors"

// Common errors that can be returned by the repositories
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrAttemptNotFound    = errors.New("no failed attempts recorded")
	ErrResetTokenNotFound = errors.New("reset token not found")
)
