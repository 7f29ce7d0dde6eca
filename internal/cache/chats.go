package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

// PutChatSession inserts or replaces a chat session in the cache.
func (db *DB) PutChatSession(ctx context.Context, session *model.ChatSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid chat session: %w", err)
	}

	query := `
	INSERT INTO chat_sessions (
		id, title, agent_name, created_at, is_synced, is_deleted, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		agent_name = excluded.agent_name,
		created_at = excluded.created_at,
		is_synced = excluded.is_synced,
		is_deleted = excluded.is_deleted,
		last_updated = excluded.last_updated
	`

	_, err := db.conn.ExecContext(ctx, query,
		session.ID,
		session.Title,
		session.AgentName,
		session.CreatedAt.Format(time.RFC3339Nano),
		boolToInt(session.Synced),
		boolToInt(session.Deleted),
		session.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put chat session %d: %w", session.ID, err)
	}

	return nil
}

// GetChatSession retrieves a single chat session by id.
// Returns sql.ErrNoRows if the session is not found.
func (db *DB) GetChatSession(ctx context.Context, id int64) (*model.ChatSession, error) {
	query := `SELECT id, title, agent_name, created_at, is_synced, is_deleted, last_updated
		FROM chat_sessions WHERE id = ?`
	row := db.conn.QueryRowContext(ctx, query, id)
	return scanChatSession(row)
}

// ListChatSessions retrieves all non-deleted sessions, newest first.
func (db *DB) ListChatSessions(ctx context.Context) ([]*model.ChatSession, error) {
	query := `SELECT id, title, agent_name, created_at, is_synced, is_deleted, last_updated
		FROM chat_sessions WHERE is_deleted = 0 ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.ChatSession
	for rows.Next() {
		session, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat sessions: %w", err)
	}
	return sessions, nil
}

// PutChatMessage inserts or replaces a chat message in the cache.
func (db *DB) PutChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}

	query := `
	INSERT INTO chat_messages (
		id, session_id, role, content, created_at, is_synced, is_deleted, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_id = excluded.session_id,
		role = excluded.role,
		content = excluded.content,
		created_at = excluded.created_at,
		is_synced = excluded.is_synced,
		is_deleted = excluded.is_deleted,
		last_updated = excluded.last_updated
	`

	_, err := db.conn.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.CreatedAt.Format(time.RFC3339Nano),
		boolToInt(msg.Synced),
		boolToInt(msg.Deleted),
		msg.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put chat message %d: %w", msg.ID, err)
	}

	return nil
}

// GetChatMessage retrieves a single chat message by id.
// Returns sql.ErrNoRows if the message is not found.
func (db *DB) GetChatMessage(ctx context.Context, id int64) (*model.ChatMessage, error) {
	query := `SELECT id, session_id, role, content, created_at, is_synced, is_deleted, last_updated
		FROM chat_messages WHERE id = ?`
	row := db.conn.QueryRowContext(ctx, query, id)
	return scanChatMessage(row)
}

// ListChatMessages retrieves a session's messages oldest first.
func (db *DB) ListChatMessages(ctx context.Context, sessionID int64) ([]*model.ChatMessage, error) {
	query := `SELECT id, session_id, role, content, created_at, is_synced, is_deleted, last_updated
		FROM chat_messages WHERE session_id = ? AND is_deleted = 0 ORDER BY created_at ASC`

	rows, err := db.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []*model.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return msgs, nil
}

// CountMessagesForSession returns how many messages reference the session
// id, deleted or not. Used to verify remap completeness.
func (db *DB) CountMessagesForSession(ctx context.Context, sessionID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`
	if err := db.conn.QueryRowContext(ctx, query, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages for session %d: %w", sessionID, err)
	}
	return n, nil
}

func scanChatSession(row scanner) (*model.ChatSession, error) {
	var session model.ChatSession
	var createdAt, lastUpdated string
	var synced, deleted int

	err := row.Scan(
		&session.ID,
		&session.Title,
		&session.AgentName,
		&createdAt,
		&synced,
		&deleted,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		session.CreatedAt = t
	}
	session.Synced = synced != 0
	session.Deleted = deleted != 0
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		session.LastUpdated = t
	}

	return &session, nil
}

func scanChatMessage(row scanner) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	var createdAt, lastUpdated string
	var synced, deleted int

	err := row.Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.Role,
		&msg.Content,
		&createdAt,
		&synced,
		&deleted,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		msg.CreatedAt = t
	}
	msg.Synced = synced != 0
	msg.Deleted = deleted != 0
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		msg.LastUpdated = t
	}

	return &msg, nil
}
