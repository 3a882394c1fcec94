package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basylab/balug/internal/model"
	"github.com/basylab/balug/internal/repository"
)

// memoryUsers is a repository.UserRepository backed by fakeStore.
type memoryUsers struct {
	*fakeStore
}

func (m *memoryUsers) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.users[user.Email] = user
	return nil
}

func (m *memoryUsers) ByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.users {
		if u.ID == id {
			delete(m.users, email)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func TestUserServiceCreate(t *testing.T) {
	users := &memoryUsers{newFakeStore()}
	svc := NewUserService(users, NewPasswordHasher(4))
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserParams{
		Email:         " Grace@Example.com ",
		Name:          " Grace ",
		Password:      "correct horse battery staple",
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)
	assert.Equal(t, "Grace", user.Name)
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.IsEmailVerified())
	require.True(t, user.HasPassword())
	assert.NoError(t, NewPasswordHasher(4).Compare("correct horse battery staple", *user.PasswordHash))

	_, err = svc.Create(ctx, CreateUserParams{Email: "grace@example.com", Name: "Other"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestUserServiceCreatePasswordless(t *testing.T) {
	svc := NewUserService(&memoryUsers{newFakeStore()}, NewPasswordHasher(4))

	user, err := svc.Create(context.Background(), CreateUserParams{Email: "linus@example.com", Name: "Linus"})
	require.NoError(t, err)
	assert.False(t, user.HasPassword())
	assert.False(t, user.NeedsEmailVerification())
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(&memoryUsers{newFakeStore()}, NewPasswordHasher(4))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserParams{Email: "not-an-email", Name: "X"})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateUserParams{Email: "x@example.com", Name: "  "})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateUserParams{Email: "x@example.com", Name: "X", Password: "short"})
	assert.Error(t, err)
}

func TestUserServiceDelete(t *testing.T) {
	users := &memoryUsers{newFakeStore(verifiedUser())}
	svc := NewUserService(users, NewPasswordHasher(4))
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "ADA@example.com"))
	_, err := svc.ByEmail(ctx, testEmail)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
