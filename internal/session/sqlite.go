package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	record      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	last_write  INTEGER NOT NULL,
	last_access INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_write ON sessions (last_write);
CREATE INDEX IF NOT EXISTS idx_sessions_last_access ON sessions (last_access);
`

// SQLiteStore persists records in a single-file SQLite database. Suited to
// single-instance deployments that need state to survive restarts.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the sessions table exists.
func NewSQLiteStore(ctx context.Context, path string, capacity int, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer avoids SQLITE_BUSY under concurrent puts.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, capacity: capacity, ttl: ttl, now: time.Now}, nil
}

// Get loads the record, treating rows past their TTL as missing (expired
// rows are deleted on sight). Reads refresh only the LRU ordering, never the
// expiry clock.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	now := s.now().UnixMilli()

	var raw string
	var lastWrite int64
	err := s.db.QueryRowContext(ctx,
		`SELECT record, last_write FROM sessions WHERE id = ?`, id,
	).Scan(&raw, &lastWrite)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	if now-lastWrite > s.ttl.Milliseconds() {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_access = ? WHERE id = ?`, now, id,
	); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// Put upserts the record, resetting its expiry clock, and evicts the least
// recently used rows beyond capacity.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
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

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, record, created_at, last_write, last_access)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			record = excluded.record,
			last_write = excluded.last_write,
			last_access = excluded.last_access`,
		stored.ID, string(raw), stored.CreatedAt.UnixMilli(), now.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY last_access DESC LIMIT -1 OFFSET ?
		)`, s.capacity,
	); err != nil {
		return fmt.Errorf("evict sessions: %w", err)
	}
	return nil
}

// Delete removes the record if present.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired drops every record whose TTL has lapsed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().UnixMilli() - s.ttl.Milliseconds()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_write < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
