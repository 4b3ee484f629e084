package service

import (
	"time"

	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// SessionTokenTTL is the fixed lifetime of a session token.
const SessionTokenTTL = 24 * time.Hour

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionTokenIssuer signs and verifies HS256 session tokens. It keeps no
// state besides the signing key, so a token stays valid until it expires
// even if the account changes afterwards.
type SessionTokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewSessionTokenIssuer(secret string, now func() time.Time) *SessionTokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &SessionTokenIssuer{secret: []byte(secret), now: now}
}

// Issue signs a token for identity that expires SessionTokenTTL from now.
func (s *SessionTokenIssuer) Issue(identity, displayName string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTokenTTL)),
			ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		},
		Email: identity,
		Name:  displayName,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", internalError("sign session token", err)
	}
	return tokenString, nil
}

// Verify fails with ErrInvalidToken for malformed, badly signed or expired tokens.
func (s *SessionTokenIssuer) Verify(tokenString string) (model.SessionIdentity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return model.SessionIdentity{}, ErrInvalidToken
	}
	if claims.Email == "" || claims.Subject != claims.Email {
		return model.SessionIdentity{}, ErrInvalidToken
	}

	return model.SessionIdentity{Identity: claims.Email, DisplayName: claims.Name}, nil
}
