package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/statusline/statusline/pkg/types"
)

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS events (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT    NOT NULL,
		ts        INTEGER NOT NULL,
		state     TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_entity_ts ON events (entity_id, ts, seq)`,
}

// SQLiteStore implements EventStore on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Serializes writers

	insertStmt     *sql.Stmt
	lastBeforeStmt *sql.Stmt
	rangeStmt      *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the event database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, dbPath: dbPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to initialize schema: %w", err)
	}

	// Readers open after the schema exists so query_only never blocks creation.
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_query_only=true")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	if err := s.prepare(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schemaSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepare() error {
	var err error
	s.insertStmt, err = s.db.Prepare(`INSERT INTO events (entity_id, ts, state) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("eventstore: failed to prepare insert statement: %w", err)
	}

	s.lastBeforeStmt, err = s.readDB.Prepare(`
		SELECT ts, state FROM events
		WHERE entity_id = ? AND ts < ?
		ORDER BY ts DESC, seq DESC
		LIMIT 1`)
	if err != nil {
		return fmt.Errorf("eventstore: failed to prepare anchor statement: %w", err)
	}

	s.rangeStmt, err = s.readDB.Prepare(`
		SELECT ts, state FROM events
		WHERE entity_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, seq ASC`)
	if err != nil {
		return fmt.Errorf("eventstore: failed to prepare range statement: %w", err)
	}
	return nil
}

// FindLastBefore returns the latest event strictly before start.
func (s *SQLiteStore) FindLastBefore(ctx context.Context, entityID string, start int64) (*types.Event, error) {
	var e types.Event
	err := s.lastBeforeStmt.QueryRowContext(ctx, entityID, start).Scan(&e.Timestamp, &e.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to query last event before %d: %w", start, err)
	}
	return &e, nil
}

// FindInRange returns the events in [start, end] in ascending order.
func (s *SQLiteStore) FindInRange(ctx context.Context, entityID string, start, end int64) ([]types.Event, error) {
	rows, err := s.rangeStmt.QueryContext(ctx, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to query events in range: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.Timestamp, &e.State); err != nil {
			return nil, fmt.Errorf("eventstore: failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: failed to iterate events: %w", err)
	}
	return events, nil
}

// Append inserts events atomically.
func (s *SQLiteStore) Append(ctx context.Context, entityID string, events ...types.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertStmt)
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, entityID, e.Timestamp, e.State); err != nil {
			return fmt.Errorf("eventstore: failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventstore: failed to commit events: %w", err)
	}
	return nil
}

// Entities returns every distinct entity ID.
func (s *SQLiteStore) Entities(ctx context.Context) ([]string, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT DISTINCT entity_id FROM events`)
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to list entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("eventstore: failed to scan entity: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Snapshot writes a consistent copy of the database to destPath.
// destPath must not exist.
func (s *SQLiteStore) Snapshot(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("eventstore: failed to snapshot database: %w", err)
	}
	log.Printf("eventstore: snapshot of %s written to %s in %v", s.dbPath, destPath, time.Since(start))
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes prepared statements and both connection pools.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.lastBeforeStmt, s.rangeStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	var firstErr error
	if s.readDB != nil {
		firstErr = s.readDB.Close()
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
