package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists events in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("events: open database: %w", err)
	}
	// The modernc driver is not safe for concurrent writers on one connection
	// pool with in-memory databases; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("events: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		stream    TEXT NOT NULL,
		version   INTEGER NOT NULL,
		id        TEXT NOT NULL,
		type      TEXT NOT NULL,
		data      BLOB NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (stream, version)
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(stream, type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append appends events to a stream if expectedVersion matches its head.
func (s *SQLiteStore) Append(ctx context.Context, stream string, expectedVersion int, evts []*Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("events: begin: %w", err)
	}
	defer tx.Rollback()

	head, err := streamHead(ctx, tx, stream)
	if err != nil {
		return 0, err
	}
	if head != expectedVersion {
		return 0, fmt.Errorf("%w: stream %q at %d, expected %d", ErrVersionConflict, stream, head, expectedVersion)
	}

	for _, e := range evts {
		head++
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream, version, id, type, data, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			stream, head, e.ID, string(e.Type), []byte(e.Data), e.Timestamp.Format(time.RFC3339Nano))
		if err != nil {
			return 0, fmt.Errorf("events: insert: %w", err)
		}
		e.Stream = stream
		e.Version = head
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("events: commit: %w", err)
	}
	return head, nil
}

func streamHead(ctx context.Context, tx *sql.Tx, stream string) (int, error) {
	var head sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM events WHERE stream = ?`, stream).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("events: head query: %w", err)
	}
	if !head.Valid {
		return -1, nil
	}
	return int(head.Int64), nil
}

// Read returns events of a stream starting at version from.
func (s *SQLiteStore) Read(ctx context.Context, stream string, from int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, id, type, data, timestamp FROM events WHERE stream = ? AND version >= ? ORDER BY version`,
		stream, from)
	if err != nil {
		return nil, fmt.Errorf("events: read: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{Stream: stream}
		var typ, ts string
		var data []byte
		if err := rows.Scan(&e.Version, &e.ID, &typ, &data, &ts); err != nil {
			return nil, fmt.Errorf("events: scan: %w", err)
		}
		e.Type = Type(typ)
		e.Data = data
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("events: parse timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Version returns the head version of a stream, -1 if empty.
func (s *SQLiteStore) Version(ctx context.Context, stream string) (int, error) {
	var head sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM events WHERE stream = ?`, stream).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("events: head query: %w", err)
	}
	if !head.Valid {
		return -1, nil
	}
	return int(head.Int64), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
