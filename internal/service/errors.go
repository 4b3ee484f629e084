package service

import (
	"errors"
	"time"
)

// Kind classifies an authentication failure. Transports switch on Kind, never on message text.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingFields
	KindMissingIdentity
	KindTooShortPassword
	KindDuplicateIdentity
	KindInvalidCredentials
	KindAccountLocked
	KindNotFound
	KindNotLocked
	KindNoToken
	KindInvalidToken
	KindExpiredToken
)

var kindNames = map[Kind]string{
	KindInternal:           "Internal",
	KindMissingFields:      "MissingFields",
	KindMissingIdentity:    "MissingIdentity",
	KindTooShortPassword:   "TooShortPassword",
	KindDuplicateIdentity:  "DuplicateIdentity",
	KindInvalidCredentials: "InvalidCredentials",
	KindAccountLocked:      "AccountLocked",
	KindNotFound:           "NotFound",
	KindNotLocked:          "NotLocked",
	KindNoToken:            "NoToken",
	KindInvalidToken:       "InvalidToken",
	KindExpiredToken:       "ExpiredToken",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is a failure of one authentication operation.
type Error struct {
	Kind Kind
	Msg  string
	// LockUntil is set on KindAccountLocked.
	LockUntil *time.Time
	// Err is the underlying infrastructure fault for KindInternal.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAccountLocked)
// holds for a lock error carrying its own LockUntil.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingFields      = &Error{Kind: KindMissingFields, Msg: "required fields are missing"}
	ErrMissingIdentity    = &Error{Kind: KindMissingIdentity, Msg: "email is required"}
	ErrTooShortPassword   = &Error{Kind: KindTooShortPassword, Msg: "password must be at least 6 characters long"}
	ErrDuplicateIdentity  = &Error{Kind: KindDuplicateIdentity, Msg: "email already exists"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Msg: "invalid email or password"}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked, Msg: "account is locked due to too many failed attempts"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrNotLocked          = &Error{Kind: KindNotLocked, Msg: "account is not locked"}
	ErrNoToken            = &Error{Kind: KindNoToken, Msg: "no reset token issued"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Msg: "invalid token"}
	ErrExpiredToken       = &Error{Kind: KindExpiredToken, Msg: "token has expired"}
)

func accountLocked(lockUntil time.Time) error {
	return &Error{Kind: KindAccountLocked, Msg: ErrAccountLocked.Msg, LockUntil: &lockUntil}
}

func internalError(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// LockUntilOf returns the lock expiry carried by an AccountLocked error.
func LockUntilOf(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && e.LockUntil != nil {
		return *e.LockUntil, true
	}
	return time.Time{}, false
}
