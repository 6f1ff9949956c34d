package apikeys

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
	"github.com/naggery/naggery/internal/vault"
)

// Repository persists provider keys. A user holds at most one key per provider.
type Repository interface {
	Create(ctx context.Context, k Key) error
	ListByUser(ctx context.Context, userID string) ([]Key, error)
	Get(ctx context.Context, userID, id string) (Key, error)
	GetByProvider(ctx context.Context, userID string, p vault.Provider) (Key, error)
	Update(ctx context.Context, k Key) error
	Delete(ctx context.Context, userID, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const keyColumns = `id, user_id, provider, key_name, encrypted_key, key_hint, is_active, last_used, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, k Key) error {
	id, err := uuid.Parse(k.ID)
	if err != nil {
		return err
	}
	uid, err := uuid.Parse(k.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO api_keys (`+keyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, uid, string(k.Provider), k.Name, k.Ciphertext, k.Hint, k.IsActive, k.LastUsed, k.CreatedAt.UTC(), k.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: key for provider exists", secerr.ErrConflict)
	}
	return err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Key, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (Key, error) {
	uid, err1 := uuid.Parse(userID)
	kid, err2 := uuid.Parse(id)
	if err1 != nil || err2 != nil {
		return Key{}, secerr.ErrNotFound
	}
	return r.one(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, kid, uid)
}

func (r *PostgresRepository) GetByProvider(ctx context.Context, userID string, p vault.Provider) (Key, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Key{}, secerr.ErrNotFound
	}
	return r.one(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 AND provider = $2`, uid, string(p))
}

func (r *PostgresRepository) Update(ctx context.Context, k Key) error {
	id, err := uuid.Parse(k.ID)
	if err != nil {
		return secerr.ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET key_name = $2, encrypted_key = $3, key_hint = $4, is_active = $5, updated_at = $6
        WHERE id = $1`, id, k.Name, k.Ciphertext, k.Hint, k.IsActive, k.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return secerr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	uid, err1 := uuid.Parse(userID)
	kid, err2 := uuid.Parse(id)
	if err1 != nil || err2 != nil {
		return secerr.ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, kid, uid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return secerr.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	kid, err := uuid.Parse(id)
	if err != nil {
		return secerr.ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE api_keys SET last_used = $2 WHERE id = $1`, kid, at.UTC())
	return err
}

func (r *PostgresRepository) one(ctx context.Context, sql string, args ...any) (Key, error) {
	k, err := scanKey(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Key{}, secerr.ErrNotFound
	}
	return k, err
}

func scanKey(row pgx.Row) (Key, error) {
	var (
		id, uid  uuid.UUID
		provider string
		k        Key
	)
	if err := row.Scan(&id, &uid, &provider, &k.Name, &k.Ciphertext, &k.Hint, &k.IsActive, &k.LastUsed, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return Key{}, err
	}
	k.ID = id.String()
	k.UserID = uid.String()
	k.Provider = vault.Provider(provider)
	return k, nil
}
