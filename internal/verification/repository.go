package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naggery/naggery/internal/secerr"
)

// Repository persists verification requests.
type Repository interface {
	Create(ctx context.Context, req Request) error
	// FindByToken returns secerr.ErrNotFound when no request has token.
	FindByToken(ctx context.Context, token string) (Request, error)
	// ConsumeAttempt increments attempts of an open request in one step and
	// returns the updated row. Open means not verified, expires after now and
	// attempts below max. ok is false when the request is not open.
	ConsumeAttempt(ctx context.Context, token string, now time.Time, max int) (req Request, ok bool, err error)
	// MarkVerified sets verified on an unverified request and reports whether
	// this call made the change.
	MarkVerified(ctx context.Context, id string) (bool, error)
	DeleteExpiredForUser(ctx context.Context, userID string, typ Type, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed verification repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const requestColumns = `id, user_id, type, token, code, attempts, verified, expires, created_at`

func (r *PostgresRepository) Create(ctx context.Context, req Request) error {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return err
	}
	var code *string
	if req.Code != "" {
		code = &req.Code
	}
	_, err = r.db.Exec(ctx, `INSERT INTO verification_requests (`+requestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, string(req.Type), req.Token, code, req.Attempts, req.Verified, req.Expires.UTC(), req.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE token = $1`, token)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, secerr.ErrNotFound
	}
	return req, err
}

func (r *PostgresRepository) ConsumeAttempt(ctx context.Context, token string, now time.Time, max int) (Request, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE verification_requests SET attempts = attempts + 1
        WHERE token = $1 AND verified = false AND expires > $2 AND attempts < $3
        RETURNING `+requestColumns, token, now.UTC(), max)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, err
	}
	return req, true, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return false, err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE verification_requests SET verified = true WHERE id = $1 AND verified = false`, rid)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PostgresRepository) DeleteExpiredForUser(ctx context.Context, userID string, typ Type, now time.Time) (int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, err
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM verification_requests WHERE user_id = $1 AND type = $2 AND expires < $3`, uid, string(typ), now.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM verification_requests WHERE expires < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		id, userID uuid.UUID
		typ        string
		code       *string
		req        Request
	)
	if err := row.Scan(&id, &userID, &typ, &req.Token, &code, &req.Attempts, &req.Verified, &req.Expires, &req.CreatedAt); err != nil {
		return Request{}, err
	}
	req.ID = id.String()
	req.UserID = userID.String()
	req.Type = Type(typ)
	if code != nil {
		req.Code = *code
	}
	req.Expires = req.Expires.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}
