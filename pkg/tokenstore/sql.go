package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS backoffice_kv (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLStore keeps the token as one row of a key-value table
type SQLStore struct {
	db     *sql.DB
	driver string
	key    string
}

// OpenSQLStore opens the database, verifies it and creates the table
func OpenSQLStore(ctx context.Context, driver, dsn, key string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewSQLStore(db, driver, key)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database handle
func NewSQLStore(db *sql.DB, driver, key string) *SQLStore {
	if key == "" {
		key = DefaultKey
	}
	return &SQLStore{
		db:     db,
		driver: driver,
		key:    key,
	}
}

// Migrate creates the key-value table if needed
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create token table: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders to $n for postgres
func (s *SQLStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Backend implements Store.Backend
func (s *SQLStore) Backend() string {
	return BackendSQL
}

// Load implements Store.Load
func (s *SQLStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT value FROM backoffice_kv WHERE name = ?`), s.key).Scan(&token)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save implements Store.Save
func (s *SQLStore) Save(ctx context.Context, token string) error {
	query := s.bind(`
		INSERT INTO backoffice_kv (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, s.key, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete implements Store.Delete
func (s *SQLStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM backoffice_kv WHERE name = ?`), s.key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DB returns the underlying handle for health checks
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close implements Store.Close
func (s *SQLStore) Close() error {
	return s.db.Close()
}
