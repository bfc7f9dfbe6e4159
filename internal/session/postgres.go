package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in PostgreSQL. The sessions table is created
// by the db migrations, not by this store.
type PostgresStore struct {
	pool     *pgxpool.Pool
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool, capacity int, ttl time.Duration) *PostgresStore {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostgresStore{pool: pool, capacity: capacity, ttl: ttl, now: time.Now}
}

// Get loads the record, treating rows past their TTL as missing (expired
// rows are deleted on sight). Reads refresh only the LRU ordering, never the
// expiry clock.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	now := s.now()

	var raw []byte
	var lastWrite time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT record, last_write FROM sessions WHERE id = $1`, id,
	).Scan(&raw, &lastWrite)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	if now.Sub(lastWrite) > s.ttl {
		if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrNotFound
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE sessions SET last_access = $1 WHERE id = $2`, now, id,
	); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// Put upserts the record, resetting its expiry clock, and evicts the least
// recently used rows beyond capacity.
func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("record must have an id")
	}
	now := s.now()
	stored := rec.Clone()
	stored.UpdatedAt = now

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, record, created_at, last_write, last_access)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET
			record = EXCLUDED.record,
			last_write = EXCLUDED.last_write,
			last_access = EXCLUDED.last_access`,
		stored.ID, raw, stored.CreatedAt, now,
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY last_access DESC OFFSET $1
		)`, s.capacity,
	); err != nil {
		return fmt.Errorf("evict sessions: %w", err)
	}
	return nil
}

// Delete removes the record if present.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired drops every record whose TTL has lapsed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE last_write < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close is a no-op; the pool's lifecycle belongs to its creator.
func (s *PostgresStore) Close() error { return nil }
