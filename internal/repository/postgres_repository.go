package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/salonpos/access-service/internal/models"
)

// PostgresAccessAttemptRepository implements AccessAttemptRepository on
// PostgreSQL (lib/pq).
type PostgresAccessAttemptRepository struct {
	db *sql.DB
}

func NewPostgresAccessAttemptRepository(db *sql.DB) AccessAttemptRepository {
	return &PostgresAccessAttemptRepository{db: db}
}

// EnsureSchema creates the audit table when missing. The table is insert-only
// by convention; no update path exists in this codebase.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS access_attempts (
			id UUID PRIMARY KEY,
			door_id TEXT NOT NULL,
			door_name TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			error_message TEXT,
			remote_addr TEXT NOT NULL,
			user_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS access_attempts_created_at_idx
			ON access_attempts (created_at DESC);
	`)
	return err
}

func (r *PostgresAccessAttemptRepository) Insert(ctx context.Context, attempt *models.AccessAttempt) error {
	query := `INSERT INTO access_attempts (id, door_id, door_name, success, error_message, remote_addr, user_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.DoorID, attempt.DoorName, attempt.Success,
		attempt.ErrorMessage, attempt.RemoteAddr, attempt.UserID, attempt.CreatedAt,
	)
	return err
}

func (r *PostgresAccessAttemptRepository) ListRecent(ctx context.Context, limit int) ([]models.AccessAttempt, error) {
	query := `SELECT id, door_id, door_name, success, error_message, remote_addr, user_id, created_at
	          FROM access_attempts ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.AccessAttempt
	for rows.Next() {
		var a models.AccessAttempt
		if err := rows.Scan(
			&a.ID, &a.DoorID, &a.DoorName, &a.Success,
			&a.ErrorMessage, &a.RemoteAddr, &a.UserID, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *PostgresAccessAttemptRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_attempts WHERE created_at >= $1`, since,
	).Scan(&n)
	return n, err
}

func (r *PostgresAccessAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_attempts WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
