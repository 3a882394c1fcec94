package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basylab/balug/internal/model"
)

func newMockRepository(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewUserRepository(sqlx.NewDb(mockDB, "pgx")), mock
}

func TestUserRepositoryByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "email", "name", "password_hash", "email_verified_at", "created_at", "updated_at",
		"password_reset_secret", "password_reset_expires_at", "password_reset_resend_count",
		"password_reset_cooldown_ends_at", "password_reset_attempts", "password_reset_last_attempt_at",
		"password_reset_resend_blocked", "password_reset_resend_blocked_until",
	}).AddRow(
		"user-1", "ada@example.com", "Ada", "hash", now, now, now,
		"SECRET", now.Add(5*time.Minute), 2,
		nil, 1, now,
		false, nil,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM users WHERE email = $1`)).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	user, err := repo.ByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	require.NotNil(t, user.Secret)
	assert.Equal(t, "SECRET", *user.Secret)
	assert.Equal(t, 2, user.ResendCount)
	assert.Equal(t, 1, user.VerifyAttempts)
	assert.Nil(t, user.CooldownEndsAt)
	assert.False(t, user.ResendBlocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&duplicateKeyError{})

	err := repo.Create(context.Background(), &model.User{ID: "user-1", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type duplicateKeyError struct{}

func (duplicateKeyError) Error() string {
	return `ERROR: duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)`
}

func TestUserRepositoryUpdateResetStateGuarded(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE "users" SET "password_reset_attempts"=\$1,"password_reset_last_attempt_at"=\$2,"updated_at"=\$3 WHERE`).
		WithArgs(3, sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	secret := "SECRET"
	err := repo.UpdateResetState(context.Background(), "user-1", model.ResetUpdate{
		State:        model.ResetState{VerifyAttempts: 3, LastVerifyAttemptAt: &now},
		Fields:       model.FieldVerifyAttempts | model.FieldLastVerifyAttemptAt,
		Guarded:      true,
		ExpectSecret: &secret,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateResetStateGuardedOnAttempts(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE "users" SET "password_reset_attempts"=\$1,"password_reset_last_attempt_at"=\$2,"updated_at"=\$3 WHERE .*"password_reset_secret" = \$5.*"password_reset_attempts" = \$6`).
		WithArgs(3, sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", "SECRET", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	secret, seen := "SECRET", 2
	err := repo.UpdateResetState(context.Background(), "user-1", model.ResetUpdate{
		State:          model.ResetState{VerifyAttempts: 3, LastVerifyAttemptAt: &now},
		Fields:         model.FieldVerifyAttempts | model.FieldLastVerifyAttemptAt,
		Guarded:        true,
		ExpectSecret:   &secret,
		ExpectAttempts: &seen,
	})
	assert.ErrorIs(t, err, ErrResetStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateResetStateConflict(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE "users" SET .*"password_reset_secret" IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateResetState(context.Background(), "user-1", model.ResetUpdate{
		State:   model.ResetState{ResendBlocked: true},
		Fields:  model.FieldResendBlocked,
		Guarded: true,
	})
	assert.ErrorIs(t, err, ErrResetStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateResetStateUnguardedMissingUser(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateResetState(context.Background(), "missing", model.ResetUpdate{
		Fields: model.FieldsClearBlock,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateResetStateNothingToWrite(t *testing.T) {
	repo, mock := newMockRepository(t)

	err := repo.UpdateResetState(context.Background(), "user-1", model.ResetUpdate{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRecordWritesNullsForClearedFields(t *testing.T) {
	record := resetRecord(model.ResetState{}, model.FieldsAll)

	assert.Len(t, record, 8)
	assert.Nil(t, record["password_reset_secret"])
	assert.Nil(t, record["password_reset_expires_at"])
	assert.Equal(t, 0, record["password_reset_resend_count"])
	assert.Equal(t, false, record["password_reset_resend_blocked"])
}
