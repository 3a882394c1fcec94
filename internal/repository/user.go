package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/basylab/balug/internal/db"
	"github.com/basylab/balug/internal/model"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrResetStateConflict = errors.New("password reset state was modified concurrently")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateResetState(ctx context.Context, userID string, update model.ResetUpdate) error
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewUserRepository(database *sqlx.DB) UserRepository {
	return &userRepository{
		db:      database,
		dialect: goqu.Dialect(db.Dialect(database.DriverName())),
	}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, name, password_hash, email_verified_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		// Check for unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateResetState writes the selected reset columns (and optionally the
// password hash) in one statement. A guarded update that matches no row means
// the stored secret (or attempt count) moved on since it was read.
func (r *userRepository) UpdateResetState(ctx context.Context, userID string, update model.ResetUpdate) error {
	record := resetRecord(update.State, update.Fields)
	if update.PasswordHash != nil {
		record["password_hash"] = *update.PasswordHash
	}
	if len(record) == 0 {
		return nil
	}
	record["updated_at"] = time.Now()

	where := []exp.Expression{goqu.C("id").Eq(userID)}
	if update.Guarded {
		if update.ExpectSecret == nil {
			where = append(where, goqu.C("password_reset_secret").IsNull())
		} else {
			where = append(where, goqu.C("password_reset_secret").Eq(*update.ExpectSecret))
		}
		if update.ExpectAttempts != nil {
			where = append(where, goqu.C("password_reset_attempts").Eq(*update.ExpectAttempts))
		}
	}

	query, args, err := r.dialect.Update("users").Prepared(true).Set(record).Where(where...).ToSQL()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		if update.Guarded {
			return ErrResetStateConflict
		}
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func resetRecord(st model.ResetState, fields model.ResetFields) goqu.Record {
	record := goqu.Record{}
	if fields.Has(model.FieldSecret) {
		record["password_reset_secret"] = nullString(st.Secret)
	}
	if fields.Has(model.FieldCodeExpiresAt) {
		record["password_reset_expires_at"] = nullTime(st.CodeExpiresAt)
	}
	if fields.Has(model.FieldResendCount) {
		record["password_reset_resend_count"] = st.ResendCount
	}
	if fields.Has(model.FieldCooldownEndsAt) {
		record["password_reset_cooldown_ends_at"] = nullTime(st.CooldownEndsAt)
	}
	if fields.Has(model.FieldVerifyAttempts) {
		record["password_reset_attempts"] = st.VerifyAttempts
	}
	if fields.Has(model.FieldLastVerifyAttemptAt) {
		record["password_reset_last_attempt_at"] = nullTime(st.LastVerifyAttemptAt)
	}
	if fields.Has(model.FieldResendBlocked) {
		record["password_reset_resend_blocked"] = st.ResendBlocked
	}
	if fields.Has(model.FieldResendBlockedUntil) {
		record["password_reset_resend_blocked_until"] = nullTime(st.ResendBlockedUntil)
	}
	return record
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
