// Package cache provides the on-device SQLite store for the assistant
// client.
//
// The cache holds one table per synchronizable entity type (tasks, events,
// chat sessions, chat messages) plus the mutation queue. It is pure CRUD:
// it has no network awareness and never retries. A write failure is fatal
// to the calling operation; retrying is the sync coordinator's job.
//
// The database runs in embedded mode with WAL so the screen layer can keep
// reading while the coordinator writes.
//
// Record lifecycle:
//  1. A record is created locally with a temporary negative id (optimistic)
//  2. The coordinator dispatches or queues the mutation
//  3. On remote success the record is marked synced; creates additionally
//     remap the temporary id to the server-assigned one via RemapID
//  4. Soft-deleted records are purged once the backend confirms the delete
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentx/assistant-core/internal/model"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with cache-specific functionality.
type DB struct {
	conn *sql.DB
	path string

	// Serializes temp-id allocation and remaps; all other access is
	// arbitrated by SQLite itself.
	mu sync.Mutex

	// tempFloor tracks the lowest temp id handed out per entity type,
	// so two allocations racing before either row is inserted cannot
	// collide. Guarded by mu.
	tempFloor map[model.EntityType]int64
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema afterwards.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := cache.Open(filepath.Join(dataDir, "assistant.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:      conn,
		path:      path,
		tempFloor: make(map[model.EntityType]int64),
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent; safe to call on every startup.
//
// Foreign keys are deliberately NOT enforced: chat_messages.session_id is a
// by-value reference so that temporary session ids can be rewritten with
// RemapID without cascade surprises.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		category TEXT NOT NULL DEFAULT 'general',
		due_date TEXT,
		is_completed INTEGER NOT NULL DEFAULT 0,
		progress REAL NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',  -- JSON array

		is_synced INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT,
		category TEXT NOT NULL DEFAULT 'general',
		priority TEXT NOT NULL DEFAULT 'medium',
		location TEXT NOT NULL DEFAULT '',

		is_synced INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		agent_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,

		is_synced INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY,
		session_id INTEGER NOT NULL,  -- by-value reference to chat_sessions.id
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL,

		is_synced INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	-- Durable mutation queue. Append-only; rows are removed only after a
	-- successful remote replay.
	CREATE TABLE IF NOT EXISTS mutation_queue (
		queue_id INTEGER PRIMARY KEY AUTOINCREMENT,
		idempotency_key TEXT NOT NULL UNIQUE,
		entity_type TEXT NOT NULL,
		op TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		payload TEXT,  -- JSON snapshot at enqueue time
		enqueued_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_synced ON tasks(is_synced);
	CREATE INDEX IF NOT EXISTS idx_tasks_deleted ON tasks(is_deleted);
	CREATE INDEX IF NOT EXISTS idx_events_synced ON events(is_synced);
	CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_synced ON chat_sessions(is_synced);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_synced ON chat_messages(is_synced);
	CREATE INDEX IF NOT EXISTS idx_queue_entity ON mutation_queue(entity_type, entity_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// tableFor maps an entity type to its table name.
func tableFor(entityType model.EntityType) (string, error) {
	switch entityType {
	case model.EntityTask:
		return "tasks", nil
	case model.EntityEvent:
		return "events", nil
	case model.EntityChatSession:
		return "chat_sessions", nil
	case model.EntityChatMessage:
		return "chat_messages", nil
	}
	return "", fmt.Errorf("unknown entity type %q", entityType)
}

// NextTempID allocates the next temporary identifier for the given entity
// type: one below the smallest id currently in the table, never above -1.
func (db *DB) NextTempID(ctx context.Context, entityType model.EntityType) (int64, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return 0, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var min sql.NullInt64
	query := fmt.Sprintf("SELECT MIN(id) FROM %s", table)
	if err := db.conn.QueryRowContext(ctx, query).Scan(&min); err != nil {
		return 0, fmt.Errorf("failed to allocate temp id for %s: %w", entityType, err)
	}

	next := int64(-1)
	if min.Valid && min.Int64 < 0 {
		next = min.Int64 - 1
	}
	if floor, ok := db.tempFloor[entityType]; ok && floor <= next {
		next = floor - 1
	}
	db.tempFloor[entityType] = next
	return next, nil
}

// MarkSynced sets is_synced=1 on the record.
func (db *DB) MarkSynced(ctx context.Context, entityType model.EntityType, id int64) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET is_synced = 1 WHERE id = ?", table)
	if _, err := db.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark %s %d synced: %w", entityType, id, err)
	}
	return nil
}

// MarkDeleted soft-deletes the record and clears its synced flag.
// The row stays in place until the backend confirms the delete.
func (db *DB) MarkDeleted(ctx context.Context, entityType model.EntityType, id int64, now time.Time) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET is_deleted = 1, is_synced = 0, last_updated = ? WHERE id = ?", table)
	if _, err := db.conn.ExecContext(ctx, query, now.Format(time.RFC3339Nano), id); err != nil {
		return fmt.Errorf("failed to mark %s %d deleted: %w", entityType, id, err)
	}
	return nil
}

// Purge removes the record outright. Called after a backend-confirmed
// delete, or when a record created and deleted offline nets out to nothing.
// Idempotent: purging a missing row is not an error.
func (db *DB) Purge(ctx context.Context, entityType model.EntityType, id int64) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := db.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to purge %s %d: %w", entityType, id, err)
	}
	return nil
}

// CountUnsynced returns the number of records with is_synced=0 across all
// entity tables. A non-zero count on startup triggers a reconciliation
// pass.
func (db *DB) CountUnsynced(ctx context.Context) (int, error) {
	total := 0
	for _, table := range []string{"tasks", "events", "chat_sessions", "chat_messages"} {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_synced = 0", table)
		if err := db.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count unsynced rows in %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
