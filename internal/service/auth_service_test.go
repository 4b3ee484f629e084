package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Stewz00/go-auth-service/internal/metrics"
	"github.com/Stewz00/go-auth-service/internal/test"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	svc     *AuthService
	clock   *test.Clock
	metrics *metrics.Metrics
	logs    *bytes.Buffer
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	clock := test.NewClock(epoch)
	m := metrics.New(prometheus.NewRegistry())
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc, err := NewAuthService(newTestRepositories(), testSecret,
		WithClock(clock.Now),
		WithBcryptCost(bcrypt.MinCost),
		WithLogger(logger),
		WithMetrics(m),
	)
	require.NoError(t, err)
	return &testEnv{svc: svc, clock: clock, metrics: m, logs: logs}
}

func (e *testEnv) register(t *testing.T, identity, password, name string) {
	t.Helper()
	_, err := e.svc.Register(context.Background(), identity, password, name)
	require.NoError(t, err)
}

func (e *testEnv) failLogins(t *testing.T, identity string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.svc.Login(context.Background(), identity, "wrong-password")
		require.ErrorIs(t, err, ErrInvalidCredentials, "failure %d", i+1)
	}
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(newTestRepositories(), "")
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		password string
		display  string
		wantErr  error
	}{
		{name: "valid registration", identity: "test@example.com", password: "password123", display: "Test"},
		{name: "duplicate identity", identity: "test@example.com", password: "password123", display: "Test", wantErr: ErrDuplicateIdentity},
		{name: "missing fields", identity: "other@example.com", password: "password123", wantErr: ErrMissingFields},
		{name: "too short", identity: "other@example.com", password: "12345", display: "Other", wantErr: ErrTooShortPassword},
		{name: "minimum length", identity: "other@example.com", password: "123456", display: "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := env.svc.Register(ctx, tt.identity, tt.password, tt.display)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.identity, profile.Identity)
			assert.Equal(t, tt.display, profile.DisplayName)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.Registrations))
}

func TestRegister_SucceedsExactlyOnce(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	env.register(t, "a@x.com", "secret1", "Ann")
	for i := 0; i < 3; i++ {
		_, err := env.svc.Register(ctx, "a@x.com", "another1", "Someone")
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	}
}

func TestLogin(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "test@example.com", "password123", "Test")

	tests := []struct {
		name     string
		identity string
		password string
		wantErr  error
	}{
		{name: "valid login", identity: "test@example.com", password: "password123"},
		{name: "invalid password", identity: "test@example.com", password: "wrongpassword", wantErr: ErrInvalidCredentials},
		{name: "non-existent user", identity: "nonexistent@example.com", password: "password123", wantErr: ErrInvalidCredentials},
		{name: "missing identity", password: "password123", wantErr: ErrMissingFields},
		{name: "missing password", identity: "test@example.com", wantErr: ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.svc.Login(ctx, tt.identity, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, result.Token)
			assert.Equal(t, "test@example.com", result.Identity)
			assert.Equal(t, "Test", result.DisplayName)
		})
	}
}

func TestLogin_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	_, wrong := env.svc.Login(ctx, "a@x.com", "wrong1")
	_, unknown := env.svc.Login(ctx, "ghost@x.com", "wrong1")

	require.Error(t, wrong)
	require.Error(t, unknown)
	assert.Equal(t, wrong.Error(), unknown.Error())
}

func TestLogin_SessionTokenRoundTrip(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	result, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	who, err := env.svc.VerifySessionToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", who.Identity)
	assert.Equal(t, "Ann", who.DisplayName)

	env.clock.Advance(SessionTokenTTL + time.Second)
	_, err = env.svc.VerifySessionToken(ctx, result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccountStatus_CountsDown(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	env.failLogins(t, "a@x.com", LockoutThreshold-1)
	status, err := env.svc.GetAccountStatus(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.False(t, status.Locked)
	assert.Equal(t, 1, status.RemainingAttempts)

	env.failLogins(t, "a@x.com", 1)
	status, err = env.svc.GetAccountStatus(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 0, status.RemainingAttempts)
	require.NotNil(t, status.LockUntil)
	assert.True(t, status.LockUntil.Equal(epoch.Add(LockoutDuration)))
}

func TestAccountStatus_UnknownIdentity(t *testing.T) {
	env := newTestService(t)

	status, err := env.svc.GetAccountStatus(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.False(t, status.Locked)
	assert.Equal(t, LockoutThreshold, status.RemainingAttempts)
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	for _, failures := range []int{1, 2} {
		env := newTestService(t)
		ctx := context.Background()
		env.register(t, "a@x.com", "secret1", "Ann")
		env.failLogins(t, "a@x.com", failures)

		_, err := env.svc.Login(ctx, "a@x.com", "secret1")
		require.NoError(t, err)

		status, err := env.svc.GetAccountStatus(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, status.Locked)
		assert.Equal(t, LockoutThreshold, status.RemainingAttempts, "after %d failures", failures)
	}
}

func TestLogin_LockedRefusesCorrectPassword(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")
	env.failLogins(t, "a@x.com", LockoutThreshold)

	for i := 0; i < 3; i++ {
		_, err := env.svc.Login(ctx, "a@x.com", "secret1")
		require.ErrorIs(t, err, ErrAccountLocked)

		lockUntil, ok := LockUntilOf(err)
		require.True(t, ok)
		assert.True(t, lockUntil.Equal(epoch.Add(LockoutDuration)))
	}

	status, err := env.svc.GetAccountStatus(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, status.LockUntil.Equal(epoch.Add(LockoutDuration)), "refused attempts are not counted")

	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues(metrics.OutcomeLocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Lockouts))
}

func TestLogin_LockLiftsAfterTimeout(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")
	env.failLogins(t, "a@x.com", LockoutThreshold)

	env.clock.Advance(LockoutDuration)
	_, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrAccountLocked)

	env.clock.Advance(time.Second)
	_, err = env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Unlocks.WithLabelValues(metrics.UnlockExpired)))
	assert.Contains(t, env.logs.String(), "account lock expired")
}

func TestUnlockAccount(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	assert.ErrorIs(t, env.svc.UnlockAccount(ctx, "ghost@x.com"), ErrNotFound)
	assert.ErrorIs(t, env.svc.UnlockAccount(ctx, "a@x.com"), ErrNotLocked)

	env.failLogins(t, "a@x.com", LockoutThreshold)
	require.NoError(t, env.svc.UnlockAccount(ctx, "a@x.com"))

	_, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.UnlockAccount(ctx, "a@x.com"), ErrNotLocked)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Unlocks.WithLabelValues(metrics.UnlockManual)))
}

func TestUnlockAccount_ExpiredLockIsNotLocked(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")
	env.failLogins(t, "a@x.com", LockoutThreshold)

	env.clock.Advance(LockoutDuration + time.Second)
	assert.ErrorIs(t, env.svc.UnlockAccount(ctx, "a@x.com"), ErrNotLocked)
}

func TestLockoutScenario(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	for i := 0; i < 3; i++ {
		_, err := env.svc.Login(ctx, "a@x.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrAccountLocked)

	require.NoError(t, env.svc.UnlockAccount(ctx, "a@x.com"))

	result, err := env.svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	assert.Contains(t, env.logs.String(), "account locked after repeated failures")
	assert.NotContains(t, env.logs.String(), "secret1", "passwords are never logged")
}

func TestRegister_ClearsFailuresAgainstUnregisteredIdentity(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.failLogins(t, "later@x.com", LockoutThreshold)

	_, err := env.svc.Login(ctx, "later@x.com", "secret1")
	require.ErrorIs(t, err, ErrAccountLocked, "lockout applies to unknown identities too")

	env.register(t, "later@x.com", "secret1", "Late")
	_, err = env.svc.Login(ctx, "later@x.com", "secret1")
	assert.NoError(t, err)
}

func TestForgotPassword(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	_, err := env.svc.ForgotPassword(ctx, "")
	assert.ErrorIs(t, err, ErrMissingIdentity)

	_, err = env.svc.ForgotPassword(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	issued, err := env.svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 64)
	assert.True(t, issued.ExpiresAt.Equal(epoch.Add(ResetTokenTTL)))
	assert.NotContains(t, env.logs.String(), issued.Token, "tokens are never logged")
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("validates exactly once", func(t *testing.T) {
		env := newTestService(t)
		env.register(t, "a@x.com", "secret1", "Ann")
		issued, err := env.svc.ForgotPassword(ctx, "a@x.com")
		require.NoError(t, err)

		require.NoError(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "newsecret"))
		assert.ErrorIs(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "newsecret"), ErrNoToken)

		_, err = env.svc.Login(ctx, "a@x.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.svc.Login(ctx, "a@x.com", "newsecret")
		assert.NoError(t, err)
	})

	t.Run("failure kinds", func(t *testing.T) {
		env := newTestService(t)
		env.register(t, "a@x.com", "secret1", "Ann")
		env.register(t, "b@x.com", "secret1", "Bob")
		issued, err := env.svc.ForgotPassword(ctx, "a@x.com")
		require.NoError(t, err)

		tests := []struct {
			name     string
			identity string
			token    string
			password string
			wantErr  error
		}{
			{"missing token", "a@x.com", "", "newsecret", ErrMissingFields},
			{"missing password", "a@x.com", issued.Token, "", ErrMissingFields},
			{"unknown identity", "ghost@x.com", issued.Token, "newsecret", ErrNotFound},
			{"no token issued", "b@x.com", issued.Token, "newsecret", ErrNoToken},
			{"never issued value", "a@x.com", "deadbeef", "newsecret", ErrInvalidToken},
			{"too short", "a@x.com", issued.Token, "12345", ErrTooShortPassword},
			{"token error wins over short password", "a@x.com", "deadbeef", "123", ErrInvalidToken},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := env.svc.ResetPassword(ctx, tt.identity, tt.token, tt.password)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		require.NoError(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "123456"),
			"rejected attempts left the token usable")
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestService(t)
		env.register(t, "a@x.com", "secret1", "Ann")
		issued, err := env.svc.ForgotPassword(ctx, "a@x.com")
		require.NoError(t, err)

		env.clock.Advance(ResetTokenTTL + time.Second)
		assert.ErrorIs(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "newsecret"), ErrExpiredToken)
		assert.ErrorIs(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "newsecret"), ErrNoToken)
	})

	t.Run("clears lockout", func(t *testing.T) {
		env := newTestService(t)
		env.register(t, "a@x.com", "secret1", "Ann")
		env.failLogins(t, "a@x.com", LockoutThreshold)

		issued, err := env.svc.ForgotPassword(ctx, "a@x.com")
		require.NoError(t, err)
		require.NoError(t, env.svc.ResetPassword(ctx, "a@x.com", issued.Token, "newsecret"))

		status, err := env.svc.GetAccountStatus(ctx, "a@x.com")
		require.NoError(t, err)
		assert.False(t, status.Locked)
		assert.Equal(t, LockoutThreshold, status.RemainingAttempts)

		_, err = env.svc.Login(ctx, "a@x.com", "newsecret")
		assert.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PasswordResets.WithLabelValues(metrics.OutcomeSuccess)))
	})
}

func TestLogin_ConcurrentFailuresLockExactlyAtThreshold(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1", "Ann")

	const attempts = 12
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Login(ctx, "a@x.com", "wrong-password")
		}(i)
	}
	wg.Wait()

	var invalid, locked int
	for _, err := range errs {
		switch KindOf(err) {
		case KindInvalidCredentials:
			invalid++
		case KindAccountLocked:
			locked++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, LockoutThreshold, invalid)
	assert.Equal(t, attempts-LockoutThreshold, locked)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Lockouts))
}

func TestAuthService_ConcurrentIdentitiesDoNotInterfere(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	identities := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}
	for _, id := range identities {
		env.register(t, id, "secret1", "User")
	}

	var wg sync.WaitGroup
	for _, id := range identities {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < LockoutThreshold-1; i++ {
				_, _ = env.svc.Login(ctx, id, "wrong-password")
			}
		}(id)
	}
	wg.Wait()

	for _, id := range identities {
		status, err := env.svc.GetAccountStatus(ctx, id)
		require.NoError(t, err)
		assert.False(t, status.Locked, id)
		assert.Equal(t, 1, status.RemainingAttempts, id)
	}
	assert.Equal(t, 0, env.svc.locks.size())
}
