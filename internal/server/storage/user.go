package storage

import (
	"context"
	"time"

	"github.com/iudanet/mooday/internal/models"
)

// UserStorage defines interface for account persistence
type UserStorage interface {
	// UsernameExists reports whether an account with the username exists,
	// compared case-insensitively
	UsernameExists(ctx context.Context, username string) (bool, error)

	// CreateUser creates a new account
	// Returns ErrUserAlreadyExists if username is taken (case-insensitive).
	// Uniqueness is enforced by the schema, so concurrent inserts of the same
	// name cannot both succeed
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves account by exact (case-sensitive) username
	// Returns ErrUserNotFound if account doesn't exist
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves account by ID
	// Returns ErrUserNotFound if account doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// UpdatePassword replaces the password hash of the account
	// Returns ErrUserNotFound if account doesn't exist
	UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error

	// Ping checks that the storage is reachable
	Ping(ctx context.Context) error
}
