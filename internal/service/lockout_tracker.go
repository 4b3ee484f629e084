package service

import (
	"context"
	"errors"
	"time"

	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/Stewz00/go-auth-service/internal/repository"
)

// Lockout configuration.
const (
	// LockoutThreshold is the number of consecutive failures that locks an account.
	LockoutThreshold = 3

	// LockoutDuration is how long a lock lasts before it lifts on its own.
	LockoutDuration = 30 * time.Minute
)

// LockState is the lockout state of one identity as observed at a point in time.
type LockState struct {
	Locked            bool
	RemainingAttempts int
	LockUntil         *time.Time
	// Released is set when this observation found an expired lock and cleared it.
	Released bool
}

// LockoutTracker counts failed logins per identity and derives the lock
// state from the count and the lock expiry. There is no timer: an expired
// lock is cleared by the next Status call that sees it.
//
// The tracker does not serialize callers; AuthService holds the per-identity
// lock around every read-modify-write.
type LockoutTracker struct {
	attempts interfaces.AttemptRepository
	now      func() time.Time
}

func NewLockoutTracker(attempts interfaces.AttemptRepository, now func() time.Time) *LockoutTracker {
	if now == nil {
		now = time.Now
	}
	return &LockoutTracker{attempts: attempts, now: now}
}

// RecordFailure counts one failed login. It reports whether this failure engaged the lock.
func (t *LockoutTracker) RecordFailure(ctx context.Context, identity string) (bool, error) {
	now := t.now()

	attempt, err := t.load(ctx, identity)
	if err != nil {
		return false, err
	}
	if attempt == nil || lockExpired(attempt, now) {
		attempt = &model.LoginAttempt{Identity: identity}
	}

	attempt.FailedCount++
	attempt.LastFailureAt = now

	engaged := false
	if attempt.FailedCount >= LockoutThreshold && attempt.LockUntil == nil {
		lockUntil := now.Add(LockoutDuration)
		attempt.LockUntil = &lockUntil
		engaged = true
	}

	if err := t.attempts.SaveAttempt(ctx, attempt); err != nil {
		return false, internalError("record failed attempt", err)
	}
	return engaged, nil
}

// Status returns the current lock state, clearing an expired lock first.
func (t *LockoutTracker) Status(ctx context.Context, identity string) (LockState, error) {
	now := t.now()

	attempt, err := t.load(ctx, identity)
	if err != nil {
		return LockState{}, err
	}
	if attempt == nil {
		return LockState{RemainingAttempts: LockoutThreshold}, nil
	}

	if lockExpired(attempt, now) {
		if err := t.Reset(ctx, identity); err != nil {
			return LockState{}, err
		}
		return LockState{RemainingAttempts: LockoutThreshold, Released: true}, nil
	}

	return LockState{
		Locked:            attempt.LockUntil != nil,
		RemainingAttempts: max(0, LockoutThreshold-attempt.FailedCount),
		LockUntil:         attempt.LockUntil,
	}, nil
}

// Reset clears the failure count and any lock.
func (t *LockoutTracker) Reset(ctx context.Context, identity string) error {
	if err := t.attempts.DeleteAttempt(ctx, identity); err != nil {
		return internalError("reset failed attempts", err)
	}
	return nil
}

// ManualUnlock lifts a live lock. It fails with ErrNotLocked when the
// account is not locked, including when its lock has already expired.
func (t *LockoutTracker) ManualUnlock(ctx context.Context, identity string) error {
	state, err := t.Status(ctx, identity)
	if err != nil {
		return err
	}
	if !state.Locked {
		return ErrNotLocked
	}
	return t.Reset(ctx, identity)
}

func (t *LockoutTracker) load(ctx context.Context, identity string) (*model.LoginAttempt, error) {
	attempt, err := t.attempts.GetAttempt(ctx, identity)
	if errors.Is(err, repository.ErrAttemptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internalError("load failed attempts", err)
	}
	return attempt, nil
}

func lockExpired(a *model.LoginAttempt, now time.Time) bool {
	return a.LockUntil != nil && now.After(*a.LockUntil)
}
