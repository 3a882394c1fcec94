package model

import (
	"time"
)

// ResetState is the password reset bookkeeping stored on the user row.
type ResetState struct {
	Secret              *string    `db:"password_reset_secret"`
	CodeExpiresAt       *time.Time `db:"password_reset_expires_at"`
	ResendCount         int        `db:"password_reset_resend_count"`
	CooldownEndsAt      *time.Time `db:"password_reset_cooldown_ends_at"`
	VerifyAttempts      int        `db:"password_reset_attempts"`
	LastVerifyAttemptAt *time.Time `db:"password_reset_last_attempt_at"`
	ResendBlocked       bool       `db:"password_reset_resend_blocked"`
	ResendBlockedUntil  *time.Time `db:"password_reset_resend_blocked_until"`
}

// ResetFields selects the ResetState columns an update writes.
type ResetFields uint16

const (
	FieldSecret ResetFields = 1 << iota
	FieldCodeExpiresAt
	FieldResendCount
	FieldCooldownEndsAt
	FieldVerifyAttempts
	FieldLastVerifyAttemptAt
	FieldResendBlocked
	FieldResendBlockedUntil

	// FieldsAll covers the whole reset state.
	FieldsAll = FieldSecret | FieldCodeExpiresAt | FieldResendCount | FieldCooldownEndsAt |
		FieldVerifyAttempts | FieldLastVerifyAttemptAt | FieldResendBlocked | FieldResendBlockedUntil

	// FieldsReissue is what a resend rewrites.
	FieldsReissue = FieldSecret | FieldCodeExpiresAt | FieldResendCount | FieldCooldownEndsAt | FieldVerifyAttempts

	// FieldsBlock is what reaching the resend ceiling writes.
	FieldsBlock = FieldResendBlocked | FieldResendBlockedUntil

	// FieldsClearBlock is what lifting a resend block writes.
	FieldsClearBlock = FieldResendBlocked | FieldResendBlockedUntil | FieldResendCount
)

func (f ResetFields) Has(field ResetFields) bool {
	return f&field == field
}

// Apply copies the selected fields from src into s. Time values are copied,
// never shared, so later mutation of src cannot leak into s.
func (s *ResetState) Apply(src ResetState, fields ResetFields) {
	if fields.Has(FieldSecret) {
		s.Secret = cloneString(src.Secret)
	}
	if fields.Has(FieldCodeExpiresAt) {
		s.CodeExpiresAt = cloneTime(src.CodeExpiresAt)
	}
	if fields.Has(FieldResendCount) {
		s.ResendCount = src.ResendCount
	}
	if fields.Has(FieldCooldownEndsAt) {
		s.CooldownEndsAt = cloneTime(src.CooldownEndsAt)
	}
	if fields.Has(FieldVerifyAttempts) {
		s.VerifyAttempts = src.VerifyAttempts
	}
	if fields.Has(FieldLastVerifyAttemptAt) {
		s.LastVerifyAttemptAt = cloneTime(src.LastVerifyAttemptAt)
	}
	if fields.Has(FieldResendBlocked) {
		s.ResendBlocked = src.ResendBlocked
	}
	if fields.Has(FieldResendBlockedUntil) {
		s.ResendBlockedUntil = cloneTime(src.ResendBlockedUntil)
	}
}

// Clone returns a deep copy.
func (s ResetState) Clone() ResetState {
	var c ResetState
	c.Apply(s, FieldsAll)
	return c
}

// ResetUpdate is a partial write of a user's reset state.
type ResetUpdate struct {
	State  ResetState
	Fields ResetFields

	// Guarded limits the write to rows whose stored secret equals ExpectSecret
	// (nil meaning no secret).
	Guarded      bool
	ExpectSecret *string

	// ExpectAttempts, when set, further limits a guarded write to rows whose
	// stored verify attempt count equals it.
	ExpectAttempts *int

	// PasswordHash, when set, is written in the same statement.
	PasswordHash *string
}

// ResetStatus is the externally visible state of a reset flow.
type ResetStatus struct {
	CanResend               bool       `json:"canResend"`
	RemainingResendAttempts int        `json:"remainingResendAttempts"`
	CanResendAt             *time.Time `json:"canResendAt"`
	RemainingCodeAttempts   int        `json:"remainingCodeAttempts"`
	CanTryCodeAt            *time.Time `json:"canTryCodeAt"`
	IsResendBlocked         bool       `json:"isResendBlocked"`
	ResendBlockedUntil      *time.Time `json:"resendBlockedUntil"`
	CodeExpiresAt           *time.Time `json:"codeExpiresAt"`
}

// ResendResult is returned by a successful resend.
type ResendResult struct {
	RemainingResendAttempts int       `json:"remainingResendAttempts"`
	CanResendAt             time.Time `json:"canResendAt"`
	CodeExpiresAt           time.Time `json:"codeExpiresAt"`
}

// ResetAccount identifies the account a reset is being requested for.
type ResetAccount struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
