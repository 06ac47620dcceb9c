package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
)

// PostgresStore keeps counters in the transients table. Rows past expires_at are
// invisible to reads and removed by DeleteExpired.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	query := `
		SELECT count, EXTRACT(EPOCH FROM (expires_at - NOW()))::float8
		FROM transients
		WHERE key = $1 AND expires_at > NOW()
	`

	var count int
	var seconds float64
	err := s.db.Pool.QueryRow(ctx, query, key).Scan(&count, &seconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, models.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read transient: %w", err)
	}

	return Entry{Count: count, TTL: time.Duration(seconds * float64(time.Second))}, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, count int, ttl time.Duration) error {
	query := `
		INSERT INTO transients (key, count, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE
		SET count = EXCLUDED.count, expires_at = EXCLUDED.expires_at
	`

	if _, err := s.db.Pool.Exec(ctx, query, key, count, ttl.Seconds()); err != nil {
		return fmt.Errorf("failed to write transient: %w", err)
	}
	return nil
}

// Incr upserts the counter in one statement; an expired row restarts at 1.
func (s *PostgresStore) Incr(ctx context.Context, key string, ttl time.Duration) (int, error) {
	query := `
		INSERT INTO transients (key, count, expires_at)
		VALUES ($1, 1, NOW() + make_interval(secs => $2))
		ON CONFLICT (key) DO UPDATE
		SET count = CASE WHEN transients.expires_at > NOW() THEN transients.count + 1 ELSE 1 END,
		    expires_at = EXCLUDED.expires_at
		RETURNING count
	`

	var count int
	if err := s.db.Pool.QueryRow(ctx, query, key, ttl.Seconds()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment transient: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM transients WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete transient: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose TTL has elapsed
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM transients WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired transients: %w", err)
	}
	return tag.RowsAffected(), nil
}
