package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/Stewz00/go-auth-service/internal/repository"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 6

// DefaultBcryptCost lands around 100ms per hash on current hardware.
const DefaultBcryptCost = 10

// CredentialStore owns user records and password hashing.
type CredentialStore struct {
	users interfaces.UserRepository
	cost  int
	now   func() time.Time
	// dummyHash is verified against when the identity is unknown so that
	// lookups of missing users cost the same as wrong passwords.
	dummyHash []byte
}

func NewCredentialStore(users interfaces.UserRepository, cost int, now func() time.Time) (*CredentialStore, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if now == nil {
		now = time.Now
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-never-matches"), cost)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_STORE_INIT_FAILED").With("cost", cost).Wrap(err)
	}
	return &CredentialStore{users: users, cost: cost, now: now, dummyHash: dummy}, nil
}

// Register creates a user. Checks run in a fixed order: missing fields,
// duplicate identity, then password length.
func (s *CredentialStore) Register(ctx context.Context, identity, rawPassword, displayName string) (model.Profile, error) {
	if identity == "" || rawPassword == "" || displayName == "" {
		return model.Profile{}, ErrMissingFields
	}

	switch _, err := s.users.GetUserByIdentity(ctx, identity); {
	case err == nil:
		return model.Profile{}, ErrDuplicateIdentity
	case !errors.Is(err, repository.ErrUserNotFound):
		return model.Profile{}, internalError("look up user", err)
	}

	if err := checkPasswordLength(rawPassword); err != nil {
		return model.Profile{}, err
	}

	hash, err := s.hash(rawPassword)
	if err != nil {
		return model.Profile{}, err
	}

	now := s.now()
	user := &model.User{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Identity:     identity,
		PasswordHash: hash,
		DisplayName:  displayName,
		Created:      now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return model.Profile{}, ErrDuplicateIdentity
		}
		return model.Profile{}, internalError("create user", err)
	}

	return user.Profile(), nil
}

// FindByIdentity fails with ErrNotFound when the identity is unknown.
func (s *CredentialStore) FindByIdentity(ctx context.Context, identity string) (*model.User, error) {
	user, err := s.users.GetUserByIdentity(ctx, identity)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internalError("look up user", err)
	}
	return user, nil
}

// VerifyPassword reports whether rawPassword matches the stored hash. A
// mismatch or an unknown identity is false with a nil error.
func (s *CredentialStore) VerifyPassword(ctx context.Context, identity, rawPassword string) (bool, error) {
	user, err := s.FindByIdentity(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(rawPassword))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Matches(user, rawPassword), nil
}

// Matches compares rawPassword with an already loaded user.
func (s *CredentialStore) Matches(user *model.User, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(rawPassword)) == nil
}

// UpdatePassword re-hashes and overwrites the password of an existing user.
func (s *CredentialStore) UpdatePassword(ctx context.Context, identity, rawPassword string) error {
	if err := checkPasswordLength(rawPassword); err != nil {
		return err
	}

	hash, err := s.hash(rawPassword)
	if err != nil {
		return err
	}

	err = s.users.UpdatePasswordHash(ctx, identity, hash)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return internalError("update password", err)
	}
	return nil
}

func (s *CredentialStore) hash(rawPassword string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), s.cost)
	if err != nil {
		return "", internalError("hash password", oops.Code("PASSWORD_HASH_FAILED").Wrap(err))
	}
	return string(hash), nil
}

func checkPasswordLength(rawPassword string) error {
	if utf8.RuneCountInString(rawPassword) < MinPasswordLength {
		return ErrTooShortPassword
	}
	return nil
}
