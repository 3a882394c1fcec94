package model

import (
	"time"
)

type User struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	Name            string     `db:"name"`
	PasswordHash    *string    `db:"password_hash"` // Nullable for accounts provisioned by an admin
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`

	ResetState
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// NeedsEmailVerification reports whether the account must verify its email
// before using password reset. Accounts provisioned without a password are exempt.
func (u *User) NeedsEmailVerification() bool {
	return !u.IsEmailVerified() && u.HasPassword()
}
