package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/forecast-tracker/internal/weather"
)

const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		data       TEXT    NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
`

var _ weather.SnapshotStore = (*SQLiteSnapshotStore)(nil)

// SQLiteSnapshotStore keeps a log of the newest snapshots; only the newest row is read back.
type SQLiteSnapshotStore struct {
	db        *sql.DB
	retention int
}

// OpenSQLite opens (or creates) the snapshot database at path, keeping the
// newest retention rows after each save.
func OpenSQLite(path string, retention int) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewSQLiteSnapshotStore(db, retention)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteSnapshotStore wraps an open database and makes sure the schema exists.
// A retention below one keeps a single row.
func NewSQLiteSnapshotStore(db *sql.DB, retention int) (*SQLiteSnapshotStore, error) {
	if err := initSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSnapshotStore{db: db, retention: max(retention, 1)}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save appends a snapshot row and drops rows beyond the retention limit.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (data, created_at) VALUES (?, ?)",
		string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM snapshots WHERE id <= ?",
		id-int64(s.retention),
	); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the most recently saved snapshot, or nil if there is none.
func (s *SQLiteSnapshotStore) LoadLatest(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots ORDER BY id DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return []byte(data), nil
}

// Ping checks the database connection.
func (s *SQLiteSnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
