package offline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite"
)

// Bodies above this size are stored gzip-compressed when that saves space.
const compressionThreshold = 1024

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stores (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	store      TEXT NOT NULL REFERENCES stores(name) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	header     TEXT NOT NULL,
	body       BLOB NOT NULL,
	compressed INTEGER NOT NULL DEFAULT 0,
	size       INTEGER NOT NULL,
	stored_at  INTEGER NOT NULL,
	PRIMARY KEY (store, key)
);`

// SQLiteStorage persists stores in a SQLite database so cached responses
// survive restarts.
type SQLiteStorage struct {
	db    *sql.DB
	quota int64
}

type sqliteStore struct {
	name   string
	parent *SQLiteStorage
}

// OpenSQLite opens (creating if needed) the storage database at path.
// quota bounds the total stored bytes across stores (0 means unlimited).
func OpenSQLite(path string, quota int64) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStorage{db: db, quota: quota}, nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Store, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stores (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}
	return &sqliteStore{name: name, parent: s}, nil
}

func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan store name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete store %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete store %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *sqliteStore) Name() string { return s.name }

func (s *sqliteStore) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM stores WHERE name = ?`, s.name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStoreDeleted
	}
	return err
}

func (s *sqliteStore) Match(ctx context.Context, key string) (Snapshot, bool, error) {
	row := s.parent.db.QueryRowContext(ctx,
		`SELECT status, header, body, compressed, stored_at FROM entries WHERE store = ? AND key = ?`,
		s.name, key)

	var (
		snap       Snapshot
		header     string
		body       []byte
		compressed int
		storedAt   int64
	)
	if err := row.Scan(&snap.Status, &header, &body, &compressed, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.exists(ctx, s.parent.db); err != nil {
				return Snapshot{}, false, err
			}
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("match %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(header), &snap.Header); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode header of %s: %w", key, err)
	}
	if compressed != 0 {
		var err error
		if body, err = decompress(body); err != nil {
			return Snapshot{}, false, fmt.Errorf("decompress %s: %w", key, err)
		}
	}
	snap.Body = body
	snap.StoredAt = time.UnixMilli(storedAt)
	return snap, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, snap Snapshot) error {
	header, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("encode header of %s: %w", key, err)
	}

	body, compressed := snap.Body, 0
	if len(body) > compressionThreshold {
		if packed, err := compress(body); err == nil && len(packed) < len(body) {
			body, compressed = packed, 1
		}
	}
	if body == nil {
		body = []byte{}
	}
	size := snap.Size()
	storedAt := snap.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	tx, err := s.parent.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.exists(ctx, tx); err != nil {
		return err
	}

	if quota := s.parent.quota; quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM entries WHERE NOT (store = ? AND key = ?)`,
			s.name, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("measure usage: %w", err)
		}
		if used+size > quota {
			return fmt.Errorf("put %s: %w (%d of %d bytes used)", key, ErrQuotaExceeded, used, quota)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (store, key, status, header, body, compressed, size, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(store, key) DO UPDATE SET
		   status = excluded.status,
		   header = excluded.header,
		   body = excluded.body,
		   compressed = excluded.compressed,
		   size = excluded.size,
		   stored_at = excluded.stored_at`,
		s.name, key, snap.Status, string(header), body, compressed, size, storedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

func (s *sqliteStore) Keys(ctx context.Context) ([]string, error) {
	if err := s.exists(ctx, s.parent.db); err != nil {
		return nil, err
	}
	rows, err := s.parent.db.QueryContext(ctx, `SELECT key FROM entries WHERE store = ? ORDER BY key`, s.name)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
