package interfaces

import (
	"context"

	"github.com/Stewz00/go-auth-service/internal/model"
)

// UserRepository defines storage for user records
type UserRepository interface {
	// CreateUser stores u. It fails with repository.ErrDuplicateIdentity when the identity is taken.
	CreateUser(ctx context.Context, u *model.User) error
	// GetUserByIdentity fails with repository.ErrUserNotFound when absent.
	GetUserByIdentity(ctx context.Context, identity string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, identity, passwordHash string) error
}

// AttemptRepository defines storage for failed-login counters
type AttemptRepository interface {
	// GetAttempt fails with repository.ErrAttemptNotFound when no failure is recorded.
	GetAttempt(ctx context.Context, identity string) (*model.LoginAttempt, error)
	SaveAttempt(ctx context.Context, a *model.LoginAttempt) error
	// DeleteAttempt is a no-op when nothing is recorded.
	DeleteAttempt(ctx context.Context, identity string) error
}

// ResetTokenRepository defines storage for password-reset tokens, at most one per identity
type ResetTokenRepository interface {
	// GetResetToken fails with repository.ErrResetTokenNotFound when none is stored.
	GetResetToken(ctx context.Context, identity string) (*model.ResetToken, error)
	// SaveResetToken replaces any token already stored for the identity.
	SaveResetToken(ctx context.Context, t *model.ResetToken) error
	DeleteResetToken(ctx context.Context, identity string) error
}
