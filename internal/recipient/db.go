package recipient

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"thermoline/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB archives every point as one row in the Measurements table. Inserts
// carry no conflict handling; duplicate deliveries produce duplicate rows
// and deduplication is a downstream concern.
type DB struct {
	db     *sql.DB
	insert string
}

// OpenSqliteDB opens (or creates) the sqlite measurement archive at path.
func OpenSqliteDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	r := &DB{db: db, insert: `INSERT INTO Measurements (channel_id, value, time) VALUES (?, ?, ?)`}
	if err := r.createSchema(); err != nil {
		return nil, err
	}
	log.Printf("[db] sqlite measurement archive at %s", path)
	return r, nil
}

// OpenPostgresDB connects to the postgres measurement archive.
func OpenPostgresDB(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	r := &DB{db: db, insert: `INSERT INTO Measurements (channel_id, value, time) VALUES ($1, $2, $3)`}
	if err := r.createSchema(); err != nil {
		return nil, err
	}
	log.Printf("[db] postgres measurement archive ready")
	return r, nil
}

func (r *DB) createSchema() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS Measurements (channel_id VARCHAR, value FLOAT, time TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("measurements schema: %w", err)
	}
	return nil
}

func (r *DB) Update(ctx context.Context, meas model.Measurements) []error {
	var errs []error
	for ch, points := range meas {
		for _, p := range points {
			_, err := r.db.ExecContext(ctx, r.insert, string(ch), p.Value, p.Time)
			if err != nil {
				errs = append(errs, fmt.Errorf("insert %s: %w", ch, err))
			}
		}
	}
	return errs
}

func (r *DB) Close() error {
	return r.db.Close()
}
