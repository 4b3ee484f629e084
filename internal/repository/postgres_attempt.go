package repository

import (
	"context"
	"errors"

	"github.com/Stewz00/go-auth-service/internal/database"
	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/jackc/pgx/v4"
	"github.com/samber/oops"
)

// AttemptRepositoryImpl implements the AttemptRepository interface on PostgreSQL
type AttemptRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.AttemptRepository = (*AttemptRepositoryImpl)(nil)

func NewAttemptRepository(db *database.DB) *AttemptRepositoryImpl {
	return &AttemptRepositoryImpl{db: db}
}

func (r *AttemptRepositoryImpl) GetAttempt(ctx context.Context, identity string) (*model.LoginAttempt, error) {
	a := model.LoginAttempt{Identity: identity}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT failed_count, last_failure_at, lock_until
		 FROM login_attempts
		 WHERE email = $1`,
		identity).Scan(&a.FailedCount, &a.LastFailureAt, &a.LockUntil)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, oops.Code("ATTEMPT_REPO_GET_FAILED").With("identity", identity).Wrap(err)
	}
	return &a, nil
}

func (r *AttemptRepositoryImpl) SaveAttempt(ctx context.Context, a *model.LoginAttempt) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO login_attempts (email, failed_count, last_failure_at, lock_until)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE
		 SET failed_count = EXCLUDED.failed_count,
		     last_failure_at = EXCLUDED.last_failure_at,
		     lock_until = EXCLUDED.lock_until`,
		a.Identity, a.FailedCount, a.LastFailureAt, a.LockUntil)
	if err != nil {
		return oops.Code("ATTEMPT_REPO_SAVE_FAILED").With("identity", a.Identity).Wrap(err)
	}
	return nil
}

func (r *AttemptRepositoryImpl) DeleteAttempt(ctx context.Context, identity string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE email = $1`, identity); err != nil {
		return oops.Code("ATTEMPT_REPO_DELETE_FAILED").With("identity", identity).Wrap(err)
	}
	return nil
}
