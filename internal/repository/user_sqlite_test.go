package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basylab/balug/internal/db"
	"github.com/basylab/balug/internal/model"
)

func newSQLiteRepository(t *testing.T) (UserRepository, *sqlx.DB) {
	t.Helper()
	database, err := db.Init("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return NewUserRepository(database), database
}

func TestSQLiteResetStateRoundTrip(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	hash := "hash"
	err := repo.Create(ctx, &model.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		Name:         "Ada",
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)

	err = repo.Create(ctx, &model.User{ID: "user-2", Email: "ada@example.com", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	secret := "SECRET"
	expires := now.Add(5 * time.Minute)
	err = repo.UpdateResetState(ctx, "user-1", model.ResetUpdate{
		State:   model.ResetState{Secret: &secret, CodeExpiresAt: &expires},
		Fields:  model.FieldsAll,
		Guarded: true,
	})
	require.NoError(t, err)

	user, err := repo.ByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.Secret)
	assert.Equal(t, "SECRET", *user.Secret)
	require.NotNil(t, user.CodeExpiresAt)
	assert.True(t, expires.Equal(*user.CodeExpiresAt))
	assert.Equal(t, 0, user.ResendCount)
	assert.False(t, user.ResendBlocked)

	// stale guard: the row no longer has a null secret
	err = repo.UpdateResetState(ctx, "user-1", model.ResetUpdate{
		State:   model.ResetState{ResendCount: 3},
		Fields:  model.FieldResendCount,
		Guarded: true,
	})
	assert.ErrorIs(t, err, ErrResetStateConflict)

	// attempt guard: two writers that read zero attempts, only the first lands
	seen := 0
	claim := model.ResetUpdate{
		State:          model.ResetState{VerifyAttempts: 1, LastVerifyAttemptAt: &now},
		Fields:         model.FieldVerifyAttempts | model.FieldLastVerifyAttemptAt,
		Guarded:        true,
		ExpectSecret:   &secret,
		ExpectAttempts: &seen,
	}
	require.NoError(t, repo.UpdateResetState(ctx, "user-1", claim))
	assert.ErrorIs(t, repo.UpdateResetState(ctx, "user-1", claim), ErrResetStateConflict)

	user, err = repo.ByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, user.VerifyAttempts)

	newHash := "new-hash"
	err = repo.UpdateResetState(ctx, "user-1", model.ResetUpdate{
		Fields:       model.FieldsAll,
		Guarded:      true,
		ExpectSecret: &secret,
		PasswordHash: &newHash,
	})
	require.NoError(t, err)

	user, err = repo.ByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, user.Secret)
	assert.Nil(t, user.CodeExpiresAt)
	assert.Equal(t, "new-hash", *user.PasswordHash)
}

func TestSQLiteBlockFlags(t *testing.T) {
	repo, _ := newSQLiteRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, &model.User{ID: "user-1", Email: "ada@example.com", CreatedAt: now, UpdatedAt: now}))

	until := now.Add(30 * time.Minute)
	err := repo.UpdateResetState(ctx, "user-1", model.ResetUpdate{
		State:   model.ResetState{ResendBlocked: true, ResendBlockedUntil: &until},
		Fields:  model.FieldsBlock,
		Guarded: true,
	})
	require.NoError(t, err)

	user, err := repo.ByID(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, user.ResendBlocked)
	require.NotNil(t, user.ResendBlockedUntil)
	assert.True(t, until.Equal(*user.ResendBlockedUntil))

	require.NoError(t, repo.Delete(ctx, "user-1"))
	_, err = repo.ByID(ctx, "user-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "user-1"), ErrUserNotFound)
}
