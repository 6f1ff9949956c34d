package twofactor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BackupCodeRepository persists hashed backup codes.
type BackupCodeRepository interface {
	// ReplaceAll deletes the user's codes and stores the given hashes.
	ReplaceAll(ctx context.Context, userID string, hashes []string) error
	ListByUser(ctx context.Context, userID string) ([]BackupCode, error)
	// MarkUsed flips an unused code to used. It returns false when the code
	// was already used or does not exist.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteAll(ctx context.Context, userID string) error
}

// PostgresBackupCodeRepository implements BackupCodeRepository on PostgreSQL.
type PostgresBackupCodeRepository struct {
	db *pgxpool.Pool
}

// NewPostgresBackupCodeRepository builds a Postgres-backed repository.
func NewPostgresBackupCodeRepository(db *pgxpool.Pool) *PostgresBackupCodeRepository {
	return &PostgresBackupCodeRepository{db: db}
}

func (r *PostgresBackupCodeRepository) ReplaceAll(ctx context.Context, userID string, hashes []string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, uid); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}
	now := time.Now().UTC()
	for _, h := range hashes {
		if _, err := tx.Exec(ctx, `INSERT INTO backup_codes (id, user_id, code_hash, used, created_at)
            VALUES ($1, $2, $3, false, $4)`, uuid.New(), uid, h, now); err != nil {
			return fmt.Errorf("insert backup code: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresBackupCodeRepository) ListByUser(ctx context.Context, userID string) ([]BackupCode, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, code_hash, used, used_at, created_at
        FROM backup_codes WHERE user_id = $1 ORDER BY created_at, id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []BackupCode
	for rows.Next() {
		var (
			id uuid.UUID
			c  BackupCode
		)
		if err := rows.Scan(&id, &c.CodeHash, &c.Used, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = id.String()
		c.UserID = userID
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *PostgresBackupCodeRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	cid, err := uuid.Parse(id)
	if err != nil {
		return false, err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE backup_codes SET used = true, used_at = $1 WHERE id = $2 AND used = false`, at.UTC(), cid)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PostgresBackupCodeRepository) DeleteAll(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, uid)
	return err
}
