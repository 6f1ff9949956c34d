package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naggery/naggery/internal/secerr"
)

// Repository persists users. Lookups return secerr.ErrNotFound for unknown
// users and writes return secerr.ErrConflict for duplicate email or phone.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	// RecordFailedLogin increments login_attempts in one statement and sets
	// locked_until when the new count reaches threshold.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (User, error)
	ResetLoginAttempts(ctx context.Context, id string) error
	// MarkEmailVerified stamps the email and activates the account.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	MarkPhoneVerified(ctx context.Context, id string, at time.Time) error
	SetTwoFactor(ctx context.Context, id, encryptedSecret string, enabled bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// UpdateProfile applies changes; a changed phone clears phone verification.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, phone, gender, password_hash, email_verified_at, phone_verified_at,
    two_fa_secret, two_fa_enabled, login_attempts, locked_until, is_active, terms_accepted_at, created_at, updated_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		userID, user.Name, user.Email, user.Phone, user.Gender, user.PasswordHash, user.EmailVerifiedAt, user.PhoneVerifiedAt,
		nullable(user.TwoFASecret), user.TwoFAEnabled, user.LoginAttempts, user.LockedUntil, user.IsActive, user.TermsAcceptedAt,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	return mapWriteErr(err)
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, secerr.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, secerr.ErrNotFound
	}
	return r.findOne(ctx, `UPDATE users SET
            login_attempts = login_attempts + 1,
            locked_until = CASE WHEN login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
            updated_at = now()
        WHERE id = $1 RETURNING `+userColumns, userID, threshold, lockUntil.UTC())
}

func (r *PostgresRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET login_attempts = 0, locked_until = NULL, updated_at = now() WHERE id = $1`, id)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET email_verified_at = $2, is_active = true, updated_at = now() WHERE id = $1`, id, at.UTC())
}

func (r *PostgresRepository) MarkPhoneVerified(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET phone_verified_at = $2, updated_at = now() WHERE id = $1`, id, at.UTC())
}

func (r *PostgresRepository) SetTwoFactor(ctx context.Context, id, encryptedSecret string, enabled bool) error {
	return r.exec(ctx, `UPDATE users SET two_fa_secret = $2, two_fa_enabled = $3, updated_at = now() WHERE id = $1`,
		id, nullable(encryptedSecret), enabled)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, secerr.ErrNotFound
	}
	user, err := r.findOne(ctx, `UPDATE users SET
            name = COALESCE($2, name),
            phone_verified_at = CASE WHEN $3::text IS NOT NULL AND $3::text <> phone THEN NULL ELSE phone_verified_at END,
            phone = COALESCE($3, phone),
            updated_at = now()
        WHERE id = $1 RETURNING `+userColumns, userID, upd.Name, upd.Phone)
	return user, mapWriteErr(err)
}

func (r *PostgresRepository) exec(ctx context.Context, sql string, id string, args ...any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return secerr.ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, sql, append([]any{userID}, args...)...)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return secerr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, sql string, args ...any) (User, error) {
	var (
		id        uuid.UUID
		secret    *string
		user      User
		createdAt time.Time
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, sql, args...).Scan(&id, &user.Name, &user.Email, &user.Phone, &user.Gender, &user.PasswordHash,
		&user.EmailVerifiedAt, &user.PhoneVerifiedAt, &secret, &user.TwoFAEnabled, &user.LoginAttempts, &user.LockedUntil,
		&user.IsActive, &user.TermsAcceptedAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, secerr.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	if secret != nil {
		user.TwoFASecret = *secret
	}
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return user, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", secerr.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
