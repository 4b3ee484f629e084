package repository

import (
	"context"
	"errors"

	"github.com/Stewz00/go-auth-service/internal/database"
	"github.com/Stewz00/go-auth-service/internal/interfaces"
	"github.com/Stewz00/go-auth-service/internal/model"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/samber/oops"
)

// ResetTokenRepositoryImpl implements the ResetTokenRepository interface on PostgreSQL
type ResetTokenRepositoryImpl struct {
	db *database.DB
}

var _ interfaces.ResetTokenRepository = (*ResetTokenRepositoryImpl)(nil)

func NewResetTokenRepository(db *database.DB) *ResetTokenRepositoryImpl {
	return &ResetTokenRepositoryImpl{db: db}
}

func (r *ResetTokenRepositoryImpl) GetResetToken(ctx context.Context, identity string) (*model.ResetToken, error) {
	t := model.ResetToken{Identity: identity}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT token_hash, expires_at, created_at
		 FROM password_reset_tokens
		 WHERE email = $1`,
		identity).Scan(&t.TokenHash, &t.ExpiresAt, &t.Created)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResetTokenNotFound
	}
	if err != nil {
		return nil, oops.Code("RESET_REPO_GET_FAILED").With("identity", identity).Wrap(err)
	}
	return &t, nil
}

// SaveResetToken upserts so a newer request replaces the older token
func (r *ResetTokenRepositoryImpl) SaveResetToken(ctx context.Context, t *model.ResetToken) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO password_reset_tokens (email, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE
		 SET token_hash = EXCLUDED.token_hash,
		     expires_at = EXCLUDED.expires_at,
		     created_at = EXCLUDED.created_at`,
		t.Identity, t.TokenHash, t.ExpiresAt, t.Created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotFound
		}
		return oops.Code("RESET_REPO_SAVE_FAILED").With("identity", t.Identity).Wrap(err)
	}
	return nil
}

func (r *ResetTokenRepositoryImpl) DeleteResetToken(ctx context.Context, identity string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, identity); err != nil {
		return oops.Code("RESET_REPO_DELETE_FAILED").With("identity", identity).Wrap(err)
	}
	return nil
}
