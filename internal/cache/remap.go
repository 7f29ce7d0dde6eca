package cache

import (
	"context"
	"fmt"

	"github.com/agentx/assistant-core/internal/model"
)

// RemapID rewrites a temporary identifier to the server-assigned one in a
// single transaction:
//
//   - the entity row's primary key
//   - every foreign-key column in dependent tables that references it
//     (chat_messages.session_id when the entity is a chat session)
//   - every pending mutation_queue entry still carrying the old id
//
// All three must move together: a queued message-create that references a
// temp session id replays against the rewritten id, never the old one.
//
// The coordinator calls this immediately after a create is accepted
// remotely and before any later queue entry is replayed.
func (db *DB) RemapID(ctx context.Context, entityType model.EntityType, oldID, newID int64) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}
	if oldID == newID {
		return nil
	}
	if !model.IsTemp(oldID) {
		return fmt.Errorf("refusing to remap non-temporary id %d", oldID)
	}
	if newID <= 0 {
		return fmt.Errorf("server id must be positive (got %d)", newID)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin remap transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("UPDATE %s SET id = ? WHERE id = ?", table)
	if _, err := tx.ExecContext(ctx, query, newID, oldID); err != nil {
		return fmt.Errorf("failed to remap %s id %d -> %d: %w", entityType, oldID, newID, err)
	}

	// Rewrite by-value foreign keys in dependent tables.
	if entityType == model.EntityChatSession {
		if _, err := tx.ExecContext(ctx,
			"UPDATE chat_messages SET session_id = ? WHERE session_id = ?", newID, oldID); err != nil {
			return fmt.Errorf("failed to remap session_id %d -> %d on chat messages: %w", oldID, newID, err)
		}
	}

	// Pending queue entries for this record must replay against the new id.
	if _, err := tx.ExecContext(ctx,
		"UPDATE mutation_queue SET entity_id = ? WHERE entity_type = ? AND entity_id = ?",
		newID, string(entityType), oldID); err != nil {
		return fmt.Errorf("failed to remap queue entries %d -> %d: %w", oldID, newID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit remap transaction: %w", err)
	}
	return nil
}
