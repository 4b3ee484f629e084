package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/metrics"
	"github.com/Stewz00/go-auth-service/internal/model"
)

// Repositories bundles the storage the AuthService components run on.
type Repositories struct {
	Users       interfaces.UserRepository
	Attempts    interfaces.AttemptRepository
	ResetTokens interfaces.ResetTokenRepository
}

type options struct {
	now        func() time.Time
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures an AuthService.
type Option func(*options)

// WithClock replaces time.Now for lock and token expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// AuthService is the entry point for register, login, lockout and password
// reset. All state-changing work for one identity runs under that identity's
// lock, so a status check and the write that follows it cannot interleave
// with another call for the same identity.
type AuthService struct {
	credentials *CredentialStore
	lockout     *LockoutTracker
	resets      *ResetTokenManager
	sessions    *SessionTokenIssuer

	locks   *keyedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAuthService creates a new authentication service
func NewAuthService(repos Repositories, jwtSecret string, opts ...Option) (*AuthService, error) {
	o := options{now: time.Now, bcryptCost: DefaultBcryptCost}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if jwtSecret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}

	credentials, err := NewCredentialStore(repos.Users, o.bcryptCost, o.now)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		credentials: credentials,
		lockout:     NewLockoutTracker(repos.Attempts, o.now),
		resets:      NewResetTokenManager(repos.ResetTokens, repos.Users, o.now),
		sessions:    NewSessionTokenIssuer(jwtSecret, o.now),
		locks:       newKeyedMutex(),
		logger:      o.logger,
		metrics:     o.metrics,
	}, nil
}

// Register creates an account. Any failures recorded earlier against the
// identity are dropped so the new account starts unlocked.
func (s *AuthService) Register(ctx context.Context, identity, password, displayName string) (model.Profile, error) {
	if identity == "" || password == "" || displayName == "" {
		return model.Profile{}, ErrMissingFields
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	profile, err := s.credentials.Register(ctx, identity, password, displayName)
	if err != nil {
		return model.Profile{}, err
	}
	if err := s.lockout.Reset(ctx, identity); err != nil {
		return model.Profile{}, err
	}

	s.metrics.Registration()
	s.logger.InfoContext(ctx, "user registered", "identity", identity)
	return profile, nil
}

// Login authenticates identity and returns a session token.
// A locked account is refused before the password is looked at, and the
// refusal does not count as a failure.
func (s *AuthService) Login(ctx context.Context, identity, password string) (model.LoginResult, error) {
	if identity == "" || password == "" {
		s.metrics.Login(metrics.OutcomeMissingFields)
		return model.LoginResult{}, ErrMissingFields
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	state, err := s.status(ctx, identity)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return model.LoginResult{}, err
	}
	if state.Locked {
		s.metrics.Login(metrics.OutcomeLocked)
		return model.LoginResult{}, accountLocked(*state.LockUntil)
	}

	user, err := s.credentials.FindByIdentity(ctx, identity)
	switch {
	case errors.Is(err, ErrNotFound):
		// Same cost and same answer as a wrong password.
		_, _ = s.credentials.VerifyPassword(ctx, identity, password)
		return model.LoginResult{}, s.fail(ctx, identity)
	case err != nil:
		s.metrics.Login(metrics.OutcomeError)
		return model.LoginResult{}, err
	}

	if !s.credentials.Matches(user, password) {
		return model.LoginResult{}, s.fail(ctx, identity)
	}

	if err := s.lockout.Reset(ctx, identity); err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return model.LoginResult{}, err
	}

	token, err := s.sessions.Issue(user.Identity, user.DisplayName)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return model.LoginResult{}, err
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	return model.LoginResult{
		Token:       token,
		Identity:    user.Identity,
		DisplayName: user.DisplayName,
	}, nil
}

// fail records a failed login and returns ErrInvalidCredentials.
func (s *AuthService) fail(ctx context.Context, identity string) error {
	engaged, err := s.lockout.RecordFailure(ctx, identity)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return err
	}
	s.metrics.Login(metrics.OutcomeInvalidCredentials)
	if engaged {
		s.metrics.Lockout()
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			"identity", identity, "threshold", LockoutThreshold, "duration", LockoutDuration)
	}
	return ErrInvalidCredentials
}

// status reads the lock state and reports a lock that lifted on its own.
func (s *AuthService) status(ctx context.Context, identity string) (LockState, error) {
	state, err := s.lockout.Status(ctx, identity)
	if err != nil {
		return LockState{}, err
	}
	if state.Released {
		s.metrics.Unlock(metrics.UnlockExpired)
		s.logger.InfoContext(ctx, "account lock expired", "identity", identity)
	}
	return state, nil
}

// GetAccountStatus reports whether the account exists and its lock state.
// An expired lock is cleared by this call.
func (s *AuthService) GetAccountStatus(ctx context.Context, identity string) (model.AccountStatus, error) {
	unlock := s.locks.Lock(identity)
	defer unlock()

	exists := true
	if _, err := s.credentials.FindByIdentity(ctx, identity); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return model.AccountStatus{}, err
		}
		exists = false
	}

	state, err := s.status(ctx, identity)
	if err != nil {
		return model.AccountStatus{}, err
	}

	return model.AccountStatus{
		Exists:            exists,
		Locked:            state.Locked,
		RemainingAttempts: state.RemainingAttempts,
		LockUntil:         state.LockUntil,
	}, nil
}

// UnlockAccount lifts a live lock on an existing account.
func (s *AuthService) UnlockAccount(ctx context.Context, identity string) error {
	unlock := s.locks.Lock(identity)
	defer unlock()

	if _, err := s.credentials.FindByIdentity(ctx, identity); err != nil {
		return err
	}

	if _, err := s.status(ctx, identity); err != nil {
		return err
	}
	if err := s.lockout.ManualUnlock(ctx, identity); err != nil {
		return err
	}

	s.metrics.Unlock(metrics.UnlockManual)
	s.logger.InfoContext(ctx, "account unlocked", "identity", identity)
	return nil
}

// ForgotPassword issues a reset token for a registered identity. The token
// is returned to the caller; delivering it is the caller's business.
func (s *AuthService) ForgotPassword(ctx context.Context, identity string) (model.IssuedResetToken, error) {
	if identity == "" {
		return model.IssuedResetToken{}, ErrMissingIdentity
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	issued, err := s.resets.Issue(ctx, identity)
	if err != nil {
		return model.IssuedResetToken{}, err
	}

	s.logger.InfoContext(ctx, "password reset requested", "identity", identity, "expires_at", issued.ExpiresAt)
	return issued, nil
}

// ResetPassword sets a new password using a reset token. The token is only
// consumed once the new password has been accepted, and a successful reset
// also clears any lockout.
func (s *AuthService) ResetPassword(ctx context.Context, identity, token, newPassword string) error {
	if identity == "" || token == "" || newPassword == "" {
		s.metrics.PasswordReset(KindMissingFields.String())
		return ErrMissingFields
	}

	unlock := s.locks.Lock(identity)
	defer unlock()

	err := s.resetPassword(ctx, identity, token, newPassword)
	if err != nil {
		s.metrics.PasswordReset(KindOf(err).String())
		return err
	}

	s.metrics.PasswordReset(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset", "identity", identity)
	return nil
}

func (s *AuthService) resetPassword(ctx context.Context, identity, token, newPassword string) error {
	if _, err := s.credentials.FindByIdentity(ctx, identity); err != nil {
		return err
	}
	if err := s.resets.Validate(ctx, identity, token); err != nil {
		return err
	}
	if err := s.credentials.UpdatePassword(ctx, identity, newPassword); err != nil {
		return err
	}
	if err := s.resets.Consume(ctx, identity); err != nil {
		return err
	}
	return s.lockout.Reset(ctx, identity)
}

// VerifySessionToken checks a session token's signature and expiry. It does
// not look the user up.
func (s *AuthService) VerifySessionToken(ctx context.Context, token string) (model.SessionIdentity, error) {
	return s.sessions.Verify(token)
}
