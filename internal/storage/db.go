package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB stores values in a `Storage (name PRIMARY KEY, value BLOB)` table.
type DB struct {
	db     *sql.DB
	upsert string
	query  string
}

// OpenSqlite opens (or creates) a sqlite-backed storage at path.
func OpenSqlite(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &DB{
		db:     db,
		upsert: `INSERT OR REPLACE INTO Storage (name, value) VALUES (?, ?)`,
		query:  `SELECT name, value FROM Storage WHERE name = ?`,
	}
	if err := s.createSchema(`CREATE TABLE IF NOT EXISTS Storage (name VARCHAR PRIMARY KEY, value BLOB)`); err != nil {
		return nil, err
	}
	log.Printf("[storage] sqlite storage at %s", path)
	return s, nil
}

// OpenPostgres connects to postgres with the given DSN.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &DB{
		db:     db,
		upsert: `INSERT INTO Storage (name, value) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		query:  `SELECT name, value FROM Storage WHERE name = $1`,
	}
	if err := s.createSchema(`CREATE TABLE IF NOT EXISTS Storage (name VARCHAR PRIMARY KEY, value BYTEA)`); err != nil {
		return nil, err
	}
	log.Printf("[storage] postgres storage ready")
	return s, nil
}

func (s *DB) createSchema(ddl string) error {
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("storage schema: %w", err)
	}
	return nil
}

func (s *DB) Load(ctx context.Context, name string) ([]byte, error) {
	var (
		gotName string
		value   []byte
	)
	err := s.db.QueryRowContext(ctx, s.query, name).Scan(&gotName, &value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage load %q: %w", name, err)
	}
	return value, nil
}

func (s *DB) Store(ctx context.Context, name string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, name, value); err != nil {
		return fmt.Errorf("storage store %q: %w", name, err)
	}
	return nil
}

func (s *DB) Close() error {
	return s.db.Close()
}
