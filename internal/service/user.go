package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basylab/balug/internal/model"
	"github.com/basylab/balug/internal/repository"
	"github.com/basylab/balug/internal/validation"
)

type UserService struct {
	userRepository repository.UserRepository
	hasher         *PasswordHasher
}

func NewUserService(userRepository repository.UserRepository, hasher *PasswordHasher) *UserService {
	return &UserService{
		userRepository: userRepository,
		hasher:         hasher,
	}
}

type CreateUserParams struct {
	Email string
	Name  string
	// Password is optional. Accounts without one can still reset it.
	Password      string
	EmailVerified bool
}

func (s *UserService) Create(ctx context.Context, params CreateUserParams) (*model.User, error) {
	email := normalizeEmail(params.Email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(params.Name)
	err = validation.ValidateName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if params.Password != "" {
		err = validation.ValidatePassword(params.Password)
		if err != nil {
			return nil, err
		}

		hash, err := s.hasher.Hash(params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = &hash
	}

	if params.EmailVerified {
		user.EmailVerifiedAt = &now
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "user_id", user.ID, "verified", params.EmailVerified)
	return user, nil
}

func (s *UserService) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userRepository.ByEmail(ctx, normalizeEmail(email))
}

func (s *UserService) Delete(ctx context.Context, email string) error {
	user, err := s.ByEmail(ctx, email)
	if err != nil {
		return err
	}

	err = s.userRepository.Delete(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", "user_id", user.ID)
	return nil
}
