package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/taskboard/internal/domain"
)

// UserRepository handles user data access operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves a user by their ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, email, username, password_hash, avatar_url, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id %d: %w", id, err)
	}
	return &user, nil
}

// FindByEmail retrieves a user by their email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, email, username, password_hash, avatar_url, created_at, updated_at
		 FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email %s: %w", email, err)
	}
	return &user, nil
}

// Create inserts a new user. Returns the stored user.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	var result domain.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (email, username, password_hash, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, email, username, password_hash, avatar_url, created_at, updated_at`,
		user.Email, user.Username, user.PasswordHash, user.AvatarURL,
	).StructScan(&result)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &result, nil
}
