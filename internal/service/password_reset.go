package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/basylab/balug/internal/model"
	"github.com/basylab/balug/internal/repository"
	"github.com/basylab/balug/internal/validation"
)

var ErrWeakPassword = errors.New("password does not meet the strength requirements")

// AccountStore loads and partially updates accounts. UpdateResetState is
// atomic per call only.
type AccountStore interface {
	ByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateResetState(ctx context.Context, userID string, update model.ResetUpdate) error
}

// CodeProvider generates one-time code secrets and the codes derived from them.
type CodeProvider interface {
	NewSecret() (string, error)
	Code(secret string, at time.Time) (string, error)
	Valid(code, secret string, at time.Time) bool
}

// Notifier delivers reset codes out of band.
type Notifier interface {
	SendPasswordResetCode(ctx context.Context, email, name, code string) error
	SendPasswordChanged(ctx context.Context, email, name string) error
}

type PasswordResetService struct {
	store    AccountStore
	codes    CodeProvider
	notifier Notifier
	hasher   *PasswordHasher
	policy   *ResetPolicy
	clock    Clock
}

func NewPasswordResetService(
	store AccountStore,
	codes CodeProvider,
	notifier Notifier,
	hasher *PasswordHasher,
	policy *ResetPolicy,
	clock Clock,
) *PasswordResetService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PasswordResetService{
		store:    store,
		codes:    codes,
		notifier: notifier,
		hasher:   hasher,
		policy:   policy,
		clock:    clock,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that a reset can be started for email.
func (s *PasswordResetService) ValidateEmail(ctx context.Context, email string) (*model.ResetAccount, error) {
	user, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	return &model.ResetAccount{Email: user.Email, Name: user.Name}, nil
}

// Status reports the reset status for email, issuing and sending a first code
// when none is active. While a code is active it writes nothing.
func (s *PasswordResetService) Status(ctx context.Context, email string) (*model.ResetStatus, error) {
	user, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	st, err := s.clearExpiredBlock(ctx, user, now)
	if err != nil {
		return nil, err
	}

	if s.policy.HasActiveCode(st, now) {
		status := s.policy.Status(st, now)
		return &status, nil
	}

	secret, code, err := s.newCode(now)
	if err != nil {
		return nil, err
	}

	next, fields := s.policy.Issue(secret, now)
	err = s.sendWithRollback(ctx, user, st, next, fields, code)
	if err != nil {
		return nil, err
	}

	slog.Info("password reset code issued", "user_id", user.ID)
	status := s.policy.Status(next, now)
	return &status, nil
}

// Resend replaces the current code with a new one, subject to the cooldown,
// the resend ceiling and the resend block.
func (s *PasswordResetService) Resend(ctx context.Context, email string) (*model.ResendResult, error) {
	user, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	st, err := s.clearExpiredBlock(ctx, user, now)
	if err != nil {
		return nil, err
	}

	decision := s.policy.CanResend(st, now)
	switch decision.Reason {
	case ResendDeniedBlocked:
		minutes := ceilMinutes(decision.RetryAfter)
		return nil, tooManyAttempts(decision.RetryAfter,
			"too many resend requests, wait %d %s before trying again", minutes, plural(minutes, "minute", "minutes"))

	case ResendDeniedCooldown:
		seconds := ceilSeconds(decision.RetryAfter)
		return nil, tooManyAttempts(decision.RetryAfter,
			"wait %d %s before requesting a new code", seconds, plural(seconds, "second", "seconds"))

	case ResendDeniedLimit:
		blocked, fields := s.policy.Block(st, now)
		err = s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
			State:        blocked,
			Fields:       fields,
			Guarded:      true,
			ExpectSecret: st.Secret,
		})
		if err != nil {
			return nil, s.storeError("failed to block password reset resends", err)
		}

		minutes := ceilMinutes(decision.RetryAfter)
		slog.Warn("password reset resends blocked", "user_id", user.ID, "until", *blocked.ResendBlockedUntil)
		return nil, tooManyAttempts(decision.RetryAfter,
			"resend limit reached, wait %d %s before trying again", minutes, plural(minutes, "minute", "minutes"))
	}

	secret, code, err := s.newCode(now)
	if err != nil {
		return nil, err
	}

	next, fields := s.policy.Reissue(st, secret, now)
	err = s.sendWithRollback(ctx, user, st, next, fields, code)
	if err != nil {
		return nil, err
	}

	slog.Info("password reset code resent", "user_id", user.ID, "resend_count", next.ResendCount)
	return &model.ResendResult{
		RemainingResendAttempts: s.policy.RemainingResends(next),
		CanResendAt:             *next.CooldownEndsAt,
		CodeExpiresAt:           *next.CodeExpiresAt,
	}, nil
}

// Verify checks code against the active secret. A matching code is consumed.
func (s *PasswordResetService) Verify(ctx context.Context, email, code string) error {
	_, err := s.verify(ctx, email, code, nil)
	return err
}

// Confirm verifies code and, when it matches, replaces the account password in
// the same write that consumes the code.
func (s *PasswordResetService) Confirm(ctx context.Context, email, code, newPassword string) error {
	err := validation.ValidatePassword(newPassword)
	if err != nil {
		return &ResetError{Kind: ErrWeakPassword, Message: err.Error()}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.verify(ctx, email, code, &hash)
	if err != nil {
		return err
	}

	err = s.notifier.SendPasswordChanged(ctx, user.Email, user.Name)
	if err != nil {
		// The password is already changed, the notice is best effort.
		slog.Warn("failed to send password changed email", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}

// Inspect returns the reset status without issuing codes or clearing blocks.
func (s *PasswordResetService) Inspect(ctx context.Context, email string) (*model.ResetStatus, error) {
	user, err := s.loadUser(ctx, email)
	if err != nil {
		return nil, err
	}

	status := s.policy.Status(user.ResetState, s.clock.Now())
	return &status, nil
}

// Unblock lifts a resend block before it expires.
func (s *PasswordResetService) Unblock(ctx context.Context, email string) error {
	user, err := s.loadUser(ctx, email)
	if err != nil {
		return err
	}

	if !user.ResendBlocked {
		return nil
	}

	cleared, fields := s.policy.ClearExpiredBlock(user.ResetState)
	err = s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
		State:        cleared,
		Fields:       fields,
		Guarded:      true,
		ExpectSecret: user.Secret,
	})
	if err != nil {
		return s.storeError("failed to lift resend block", err)
	}

	slog.Info("password reset resend block lifted", "user_id", user.ID)
	return nil
}

func (s *PasswordResetService) verify(ctx context.Context, email, code string, passwordHash *string) (*model.User, error) {
	user, err := s.loadAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	st := user.ResetState

	if !s.policy.HasActiveCode(st, now) {
		return nil, &ResetError{Kind: ErrCodeNotFound}
	}

	// Reachable when a concurrent request claimed the last attempt before the
	// code was cleared, or when MaxCodeAttempts was lowered under a live code.
	if s.policy.RemainingCodeAttempts(st) == 0 {
		return nil, codeSpent()
	}

	nextAt := s.policy.NextVerifyAt(st, now)
	if nextAt != nil {
		wait := nextAt.Sub(now)
		seconds := ceilSeconds(wait)
		err := tooManyAttempts(wait, "wait %d %s before trying again", seconds, plural(seconds, "second", "seconds"))
		err.RemainingAttempts = s.policy.RemainingCodeAttempts(st)
		return nil, err
	}

	// The attempt is stored before the code is checked, guarded on the count
	// that was read, so parallel guesses cannot share one attempt.
	claimed, claimFields := s.policy.ClaimAttempt(st, now)
	seen := st.VerifyAttempts
	err = s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
		State:          claimed,
		Fields:         claimFields,
		Guarded:        true,
		ExpectSecret:   st.Secret,
		ExpectAttempts: &seen,
	})
	if err != nil {
		return nil, s.storeError("failed to record reset attempt", err)
	}

	if !s.codes.Valid(code, *st.Secret, now) {
		next, fields, burned := s.policy.FailAttempt(st, now)
		if burned {
			err = s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
				State:        next,
				Fields:       fields &^ claimFields,
				Guarded:      true,
				ExpectSecret: st.Secret,
			})
			if err != nil {
				return nil, s.storeError("failed to clear spent reset code", err)
			}

			slog.Warn("password reset code burned after too many attempts", "user_id", user.ID)
			return nil, codeSpent()
		}

		remaining := s.policy.RemainingCodeAttempts(next)
		return nil, &ResetError{
			Kind:              ErrInvalidCode,
			Message:           fmt.Sprintf("invalid password reset code, %d %s left for this code", remaining, plural(remaining, "attempt", "attempts")),
			RemainingAttempts: remaining,
		}
	}

	err = s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
		State:        model.ResetState{},
		Fields:       model.FieldsAll,
		Guarded:      true,
		ExpectSecret: st.Secret,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return nil, s.storeError("failed to consume reset code", err)
	}

	return user, nil
}

// loadAccount loads the account for email and enforces the email
// verification precondition.
func (s *PasswordResetService) loadAccount(ctx context.Context, email string) (*model.User, error) {
	user, err := s.loadUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.NeedsEmailVerification() {
		return nil, ErrVerificationRequired
	}

	return user, nil
}

func (s *PasswordResetService) loadUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.store.ByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// clearExpiredBlock persists the lifting of a lapsed resend block and returns
// the state to continue with.
func (s *PasswordResetService) clearExpiredBlock(ctx context.Context, user *model.User, now time.Time) (model.ResetState, error) {
	st := user.ResetState.Clone()
	if !s.policy.BlockExpired(st, now) {
		return st, nil
	}

	cleared, fields := s.policy.ClearExpiredBlock(st)
	err := s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
		State:        cleared,
		Fields:       fields,
		Guarded:      true,
		ExpectSecret: st.Secret,
	})
	if err != nil {
		return model.ResetState{}, s.storeError("failed to clear expired resend block", err)
	}

	slog.Info("expired password reset block cleared", "user_id", user.ID)
	return cleared, nil
}

func (s *PasswordResetService) newCode(now time.Time) (string, string, error) {
	secret, err := s.codes.NewSecret()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate reset secret: %w", err)
	}

	code, err := s.codes.Code(secret, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate reset code: %w", err)
	}

	return secret, code, nil
}

// sendWithRollback persists next, sends code, and restores prev for the same
// fields if sending fails.
func (s *PasswordResetService) sendWithRollback(
	ctx context.Context,
	user *model.User,
	prev, next model.ResetState,
	fields model.ResetFields,
	code string,
) error {
	err := s.store.UpdateResetState(ctx, user.ID, model.ResetUpdate{
		State:        next,
		Fields:       fields,
		Guarded:      true,
		ExpectSecret: prev.Secret,
	})
	if err != nil {
		return s.storeError("failed to save reset code", err)
	}

	err = s.notifier.SendPasswordResetCode(ctx, user.Email, user.Name, code)
	if err == nil {
		return nil
	}

	slog.Error("failed to send password reset code", "error", err, "user_id", user.ID)

	// The rollback must run even if the request context is gone.
	rollbackErr := s.store.UpdateResetState(context.WithoutCancel(ctx), user.ID, model.ResetUpdate{
		State:        prev,
		Fields:       fields,
		Guarded:      true,
		ExpectSecret: next.Secret,
	})
	if rollbackErr != nil {
		slog.Error("failed to roll back password reset state", "error", rollbackErr, "user_id", user.ID)
	}

	return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
}

func (s *PasswordResetService) storeError(msg string, err error) error {
	if errors.Is(err, repository.ErrResetStateConflict) {
		return ErrResetConflict
	}
	return fmt.Errorf("%s: %w", msg, err)
}
