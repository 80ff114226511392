package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/photoexchange/server/internal/models"
)

// UserRepository implements UserRepo for PostgreSQL/SQLite
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Add inserts a user and assigns its ID
func (r *UserRepository) Add(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (handle, created_at) VALUES ($1, $2) RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query, user.Handle, toUnix(user.CreatedAt)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateHandle
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = id
	return nil
}

// GetByHandle retrieves a user by handle
func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	query := `SELECT id, handle, created_at FROM users WHERE handle = $1`

	var (
		user      models.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(handle)).Scan(&user.ID, &user.Handle, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.CreatedAt = fromUnix(createdAt)
	return &user, nil
}

// Resolve maps an external handle to the internal user id.
// Returns models.ErrUserNotFound for unknown handles.
func (r *UserRepository) Resolve(ctx context.Context, handle string) (int64, error) {
	user, err := r.GetByHandle(ctx, handle)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, models.ErrUserNotFound
	}
	return user.ID, nil
}
