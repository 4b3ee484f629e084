package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/Stewz00/go-auth-service/internal/repository"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32 // 256 bits, hex encoded to 64 chars
	ResetTokenTTL   = time.Hour
)

// ResetTokenManager issues single-use password-reset tokens, one live token per identity.
type ResetTokenManager struct {
	tokens  interfaces.ResetTokenRepository
	users   interfaces.UserRepository
	now     func() time.Time
	entropy io.Reader
}

func NewResetTokenManager(tokens interfaces.ResetTokenRepository, users interfaces.UserRepository, now func() time.Time) *ResetTokenManager {
	if now == nil {
		now = time.Now
	}
	return &ResetTokenManager{tokens: tokens, users: users, now: now, entropy: rand.Reader}
}

// Issue generates a token for a registered identity, replacing any earlier one.
func (m *ResetTokenManager) Issue(ctx context.Context, identity string) (model.IssuedResetToken, error) {
	if _, err := m.users.GetUserByIdentity(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.IssuedResetToken{}, ErrNotFound
		}
		return model.IssuedResetToken{}, internalError("look up user", err)
	}

	raw := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(m.entropy, raw); err != nil {
		return model.IssuedResetToken{}, internalError("generate reset token",
			oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err))
	}
	token := hex.EncodeToString(raw)

	now := m.now()
	stored := &model.ResetToken{
		Identity:  identity,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(ResetTokenTTL),
		Created:   now,
	}
	if err := m.tokens.SaveResetToken(ctx, stored); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.IssuedResetToken{}, ErrNotFound
		}
		return model.IssuedResetToken{}, internalError("store reset token", err)
	}

	return model.IssuedResetToken{Token: token, ExpiresAt: stored.ExpiresAt}, nil
}

// Validate checks token against the stored one without consuming it. An
// expired token is deleted as a side effect.
func (m *ResetTokenManager) Validate(ctx context.Context, identity, token string) error {
	stored, err := m.tokens.GetResetToken(ctx, identity)
	if errors.Is(err, repository.ErrResetTokenNotFound) {
		return ErrNoToken
	}
	if err != nil {
		return internalError("load reset token", err)
	}

	if subtle.ConstantTimeCompare([]byte(hashResetToken(token)), []byte(stored.TokenHash)) != 1 {
		return ErrInvalidToken
	}

	if m.now().After(stored.ExpiresAt) {
		if err := m.Consume(ctx, identity); err != nil {
			return err
		}
		return ErrExpiredToken
	}
	return nil
}

// Consume deletes the stored token.
func (m *ResetTokenManager) Consume(ctx context.Context, identity string) error {
	if err := m.tokens.DeleteResetToken(ctx, identity); err != nil {
		return internalError("delete reset token", err)
	}
	return nil
}

// ValidateAndConsume validates token and, on success, deletes it.
func (m *ResetTokenManager) ValidateAndConsume(ctx context.Context, identity, token string) error {
	if err := m.Validate(ctx, identity, token); err != nil {
		return err
	}
	return m.Consume(ctx, identity)
}

func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
