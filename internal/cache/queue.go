package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx/assistant-core/internal/model"
	"github.com/google/uuid"
)

// Enqueue appends a mutation to the durable queue and returns its queue id.
//
// The payload stored here is a snapshot taken at enqueue time. Replay does
// not trust it blindly: the coordinator rebuilds create/update payloads
// from the record's current local state so that a stale update can never
// resurrect a record deleted later in the queue.
func (db *DB) Enqueue(ctx context.Context, m model.Mutation) (int64, error) {
	payload, err := model.EncodePayload(m.Payload)
	if err != nil {
		return 0, err
	}

	query := `
	INSERT INTO mutation_queue (idempotency_key, entity_type, op, entity_id, payload, enqueued_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		m.Key.String(),
		string(m.Entity),
		string(m.Op),
		m.EntityID,
		nullableBytes(payload),
		m.EnqueuedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s %d: %w", m.Op, m.Entity, m.EntityID, err)
	}

	queueID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue id: %w", err)
	}
	return queueID, nil
}

// PendingMutations returns every queue entry in enqueue order, oldest
// first. Replay walks this slice front to back and is never reordered by
// entity, which is what guarantees a create always replays before a later
// update or delete of the same record.
func (db *DB) PendingMutations(ctx context.Context) ([]model.Mutation, error) {
	return db.pending(ctx, "", 0)
}

// PendingMutationsFor returns queue entries of one entity type in enqueue
// order.
func (db *DB) PendingMutationsFor(ctx context.Context, entityType model.EntityType) ([]model.Mutation, error) {
	return db.pending(ctx, entityType, 0)
}

// PendingForEntity returns queue entries for a single record, oldest first.
func (db *DB) PendingForEntity(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.Mutation, error) {
	return db.pending(ctx, entityType, entityID)
}

func (db *DB) pending(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.Mutation, error) {
	query := `SELECT queue_id, idempotency_key, entity_type, op, entity_id, payload, enqueued_at
		FROM mutation_queue`
	var args []interface{}
	if entityType != "" {
		query += " WHERE entity_type = ?"
		args = append(args, string(entityType))
		if entityID != 0 {
			query += " AND entity_id = ?"
			args = append(args, entityID)
		}
	}
	query += " ORDER BY queue_id ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutation queue: %w", err)
	}
	defer rows.Close()

	var muts []model.Mutation
	for rows.Next() {
		var m model.Mutation
		var key, entity, op, enqueuedAt string
		var payload []byte

		if err := rows.Scan(&m.QueueID, &key, &entity, &op, &m.EntityID, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}

		m.Key, err = uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("corrupt idempotency key in queue entry %d: %w", m.QueueID, err)
		}
		m.Entity = model.EntityType(entity)
		m.Op = model.Op(op)
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			m.EnqueuedAt = t
		}

		m.Payload, err = model.DecodePayload(m.Entity, payload)
		if err != nil {
			return nil, fmt.Errorf("corrupt payload in queue entry %d: %w", m.QueueID, err)
		}

		muts = append(muts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mutation queue: %w", err)
	}
	return muts, nil
}

// MutationExists reports whether a queue entry is still pending.
func (db *DB) MutationExists(ctx context.Context, queueID int64) (bool, error) {
	var n int
	query := "SELECT COUNT(*) FROM mutation_queue WHERE queue_id = ?"
	if err := db.conn.QueryRowContext(ctx, query, queueID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up queue entry %d: %w", queueID, err)
	}
	return n > 0, nil
}

// RemoveMutation deletes a successfully replayed queue entry.
// Idempotent: removing a missing entry is not an error.
func (db *DB) RemoveMutation(ctx context.Context, queueID int64) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM mutation_queue WHERE queue_id = ?", queueID); err != nil {
		return fmt.Errorf("failed to remove queue entry %d: %w", queueID, err)
	}
	return nil
}

// RemoveMutationsForEntity deletes every queue entry of one record. Used
// when a record created and deleted offline nets out to nothing.
func (db *DB) RemoveMutationsForEntity(ctx context.Context, entityType model.EntityType, entityID int64) error {
	query := "DELETE FROM mutation_queue WHERE entity_type = ? AND entity_id = ?"
	if _, err := db.conn.ExecContext(ctx, query, string(entityType), entityID); err != nil {
		return fmt.Errorf("failed to remove queue entries for %s %d: %w", entityType, entityID, err)
	}
	return nil
}

// QueueLen returns the number of pending queue entries.
func (db *DB) QueueLen(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM mutation_queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
