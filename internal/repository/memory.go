package repository

import (
	"context"
	"sync"

	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
)

// MemoryUserRepository keeps users in process memory. Records handed in and
// out are copies, so callers never share state with the map.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

var _ interfaces.UserRepository = (*MemoryUserRepository)(nil)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]model.User)}
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.Identity]; exists {
		return ErrDuplicateIdentity
	}
	r.users[u.Identity] = *u
	return nil
}

func (r *MemoryUserRepository) GetUserByIdentity(ctx context.Context, identity string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.users[identity]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepository) UpdatePasswordHash(ctx context.Context, identity, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[identity]
	if !exists {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	r.users[identity] = u
	return nil
}

// MemoryAttemptRepository keeps failed-login counters in process memory.
type MemoryAttemptRepository struct {
	mu       sync.RWMutex
	attempts map[string]model.LoginAttempt
}

var _ interfaces.AttemptRepository = (*MemoryAttemptRepository)(nil)

func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{attempts: make(map[string]model.LoginAttempt)}
}

func (r *MemoryAttemptRepository) GetAttempt(ctx context.Context, identity string) (*model.LoginAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.attempts[identity]
	if !exists {
		return nil, ErrAttemptNotFound
	}
	if a.LockUntil != nil {
		lockUntil := *a.LockUntil
		a.LockUntil = &lockUntil
	}
	return &a, nil
}

func (r *MemoryAttemptRepository) SaveAttempt(ctx context.Context, a *model.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *a
	if a.LockUntil != nil {
		lockUntil := *a.LockUntil
		stored.LockUntil = &lockUntil
	}
	r.attempts[a.Identity] = stored
	return nil
}

func (r *MemoryAttemptRepository) DeleteAttempt(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, identity)
	return nil
}

// MemoryResetTokenRepository keeps password-reset tokens in process memory.
type MemoryResetTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]model.ResetToken
}

var _ interfaces.ResetTokenRepository = (*MemoryResetTokenRepository)(nil)

func NewMemoryResetTokenRepository() *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{tokens: make(map[string]model.ResetToken)}
}

func (r *MemoryResetTokenRepository) GetResetToken(ctx context.Context, identity string) (*model.ResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tokens[identity]
	if !exists {
		return nil, ErrResetTokenNotFound
	}
	return &t, nil
}

func (r *MemoryResetTokenRepository) SaveResetToken(ctx context.Context, t *model.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[t.Identity] = *t
	return nil
}

func (r *MemoryResetTokenRepository) DeleteResetToken(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, identity)
	return nil
}
