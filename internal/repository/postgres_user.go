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

// UserRepositoryImpl implements the UserRepository interface on PostgreSQL
type UserRepositoryImpl struct {
	db *database.DB
}

// Verify that UserRepositoryImpl implements UserRepository interface
var _ interfaces.UserRepository = (*UserRepositoryImpl)(nil)

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *database.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// CreateUser inserts a new user row
func (r *UserRepositoryImpl) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Identity, u.PasswordHash, u.DisplayName, u.Created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateIdentity
		}
		return oops.Code("USER_REPO_CREATE_FAILED").With("identity", u.Identity).Wrap(err)
	}
	return nil
}

// GetUserByIdentity retrieves a user by email
func (r *UserRepositoryImpl) GetUserByIdentity(ctx context.Context, identity string) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, created_at
		 FROM users
		 WHERE email = $1`,
		identity).Scan(&u.ID, &u.Identity, &u.PasswordHash, &u.DisplayName, &u.Created)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_REPO_GET_FAILED").With("identity", identity).Wrap(err)
	}
	return &u, nil
}

// UpdatePasswordHash overwrites the stored hash
func (r *UserRepositoryImpl) UpdatePasswordHash(ctx context.Context, identity, passwordHash string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE email = $1`,
		identity, passwordHash)
	if err != nil {
		return oops.Code("USER_REPO_UPDATE_FAILED").With("identity", identity).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
