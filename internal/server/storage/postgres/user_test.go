package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mooday/internal/models"
	"github.com/iudanet/mooday/internal/server/storage"
)

func setupMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db), mock
}

func testUser() *models.User {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.User{
		ID:           "0b7c2a4e-9d43-4c53-8a43-5cb1b6a0f6a1",
		Username:     "alice_1",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStorage_CreateUser(t *testing.T) {
	s, mock := setupMockStorage(t)
	user := testUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateUser(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateUser_UniqueViolation(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_lower_idx"})

	err := s.CreateUser(context.Background(), testUser())
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateUser_OtherError(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("connection reset"))

	err := s.CreateUser(context.Background(), testUser())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrUserAlreadyExists)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStorage_UsernameExists(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))")).
		WithArgs("ALICE_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.UsernameExists(context.Background(), "ALICE_1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetUserByUsername(t *testing.T) {
	user := testUser()
	columns := []string{"id", "username", "password_hash", "created_at", "updated_at"}

	t.Run("found", func(t *testing.T) {
		s, mock := setupMockStorage(t)
		mock.ExpectQuery("SELECT id, username, password_hash").
			WithArgs("alice_1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt))

		got, err := s.GetUserByUsername(context.Background(), "alice_1")
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := setupMockStorage(t)
		mock.ExpectQuery("SELECT id, username, password_hash").
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		got, err := s.GetUserByUsername(context.Background(), "nobody")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		assert.Nil(t, got)
	})
}

func TestStorage_GetUserByID_NotFound(t *testing.T) {
	s, mock := setupMockStorage(t)
	mock.ExpectQuery("SELECT id, username, password_hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at", "updated_at"}))

	_, err := s.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestStorage_UpdatePassword(t *testing.T) {
	at := time.Now()

	t.Run("updated", func(t *testing.T) {
		s, mock := setupMockStorage(t)
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs("$2a$10$new", at, "id-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdatePassword(context.Background(), "id-1", "$2a$10$new", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no such user", func(t *testing.T) {
		s, mock := setupMockStorage(t)
		mock.ExpectExec("UPDATE users SET password_hash").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdatePassword(context.Background(), "id-2", "$2a$10$new", at)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}
