package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func TestUserCreateNormalizesEmail(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO users (email, password_hash, is_admin) VALUES (?,?,?)")).
		WithArgs("user@example.com", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(3, 1))

	id, err := repo.Create(context.Background(), "  User@Example.COM ", "s3cret", false, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("user@example.com", sqlmock.AnyArg(), false).
		WillReturnError(errors.New("Error 1062: Duplicate entry 'user@example.com' for key 'users.email'"))

	_, err := repo.Create(context.Background(), "user@example.com", "s3cret", false, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailNullLastLogin(t *testing.T) {
	repo, mock := newUserMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "email", "password_hash", "is_admin", "last_login", "created_at", "updated_at"}).
			AddRow(3, "user@example.com", "$2a$04$hash", false, nil, now, now))

	u, err := repo.GetByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.Nil(t, u.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByIDNotFound(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=? LIMIT 1")).
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "email", "password_hash", "is_admin", "last_login", "created_at", "updated_at"}))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminEmailsExcludesActor(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT email FROM users WHERE is_admin=1 AND id<>? ORDER BY id")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).
			AddRow("admin-a@example.com").
			AddRow("admin-c@example.com"))

	emails, err := repo.AdminEmails(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-a@example.com", "admin-c@example.com"}, emails)
	assert.NoError(t, mock.ExpectationsWereMet())
}
