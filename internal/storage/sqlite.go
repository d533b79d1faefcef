package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteDB holds every collection in a single entries table, one row per
// item, ordered by an increasing sequence number.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("recordings", "murmur.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteDB{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteDB) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);
	`); err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_entries_seq ON entries(collection, seq)"); err != nil {
		return fmt.Errorf("create entries index: %w", err)
	}

	return nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Snapshot writes a consistent copy of the database, including commits still
// held in the write-ahead log, to dst. An existing file at dst is replaced.
func (s *SQLiteDB) Snapshot(ctx context.Context, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear snapshot target: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

// SQLiteCollection is one named collection inside a SQLiteDB. Items are
// stored as JSON payloads.
type SQLiteCollection[T any] struct {
	db   *sql.DB
	name string
}

func NewSQLiteCollection[T any](db *SQLiteDB, name string) *SQLiteCollection[T] {
	return &SQLiteCollection[T]{db: db.db, name: name}
}

func (c *SQLiteCollection[T]) All(ctx context.Context) ([]T, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT payload FROM entries WHERE collection = ? ORDER BY seq DESC", c.name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("decode %s entry: %w", c.name, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (c *SQLiteCollection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	var payload string
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM entries WHERE collection = ? AND id = ?", c.name, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}

	var item T
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return zero, false, fmt.Errorf("decode %s %s: %w", c.name, id, err)
	}
	return item, true, nil
}

func (c *SQLiteCollection[T]) Prepend(ctx context.Context, id string, item T) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.name, id, err)
	}

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO entries (collection, id, seq, payload)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE collection = ?), ?)
	`, c.name, id, c.name, string(payload)); err != nil {
		return fmt.Errorf("insert %s %s: %w", c.name, id, err)
	}
	return nil
}

func (c *SQLiteCollection[T]) Delete(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM entries WHERE collection = ? AND id = ?", c.name, id)
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return n > 0, nil
}
