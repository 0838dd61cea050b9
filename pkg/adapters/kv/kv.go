// Package kv is a minimal key/value table on database/sql, used to persist
// whole collections as JSON blobs. SQLite (modernc, pure Go) and Postgres
// (pgx stdlib) are supported.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var sqlOpen = sql.Open

// Store is a key/value table.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn and ensures the table exists. For SQLite the dsn
// is a file path whose parent directory is created.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite3":
		driver = DriverSQLite
		if dsn == "" {
			dsn = "dispensa.db"
		}
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres, "postgres", "postgresql":
		driver = DriverPostgres
		if dsn == "" {
			dsn = "postgres://localhost/dispensa?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported kv driver %q", driver)
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value `+blob+` NOT NULL
	)`); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders for the driver.
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the value of key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT value FROM kv WHERE key = ?`), key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO kv(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`),
		key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
