package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/remote"
)

func (c *Coordinator) replayOne(ctx context.Context, m model.Mutation) error {
	switch m.Op {
	case model.OpCreate:
		return c.replayCreate(ctx, m)
	case model.OpUpdate:
		return c.replayUpdate(ctx, m)
	case model.OpDelete:
		return c.replayDelete(ctx, m)
	default:
		return fmt.Errorf("queue entry %d has unknown op %q", m.QueueID, m.Op)
	}
}

// replayCreate pushes a locally created record to the backend, then
// rewrites its temporary id everywhere the server id must appear. A
// record deleted again before its create ever replayed nets out with
// no remote call at all.
func (c *Coordinator) replayCreate(ctx context.Context, m model.Mutation) error {
	payload, found, deleted, err := c.loadCurrent(ctx, m.Entity, m.EntityID)
	if err != nil {
		return err
	}
	if !found || deleted {
		if err := c.cache.RemoveMutationsForEntity(ctx, m.Entity, m.EntityID); err != nil {
			return err
		}
		if err := c.cache.Purge(ctx, m.Entity, m.EntityID); err != nil {
			return err
		}
		c.logger.Printf("create of %s %d coalesced away (deleted before sync)", m.Entity, m.EntityID)
		return nil
	}

	serverID, err := c.backend.Create(ctx, m.Entity, m.Key, payload)
	if err != nil {
		return fmt.Errorf("remote create of %s failed: %w", m.Entity, err)
	}

	recordID := m.EntityID
	if model.IsTemp(m.EntityID) {
		if err := c.cache.RemapID(ctx, m.Entity, m.EntityID, serverID); err != nil {
			return fmt.Errorf("failed to remap %s %d to %d: %w", m.Entity, m.EntityID, serverID, err)
		}
		c.remaps[remapKey{m.Entity, m.EntityID}] = serverID
		recordID = serverID
	}
	if err := c.cache.MarkSynced(ctx, m.Entity, recordID); err != nil {
		return err
	}
	if err := c.cache.RemoveMutation(ctx, m.QueueID); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.EntityUpdate(m.Entity, recordID, "created")
	}
	return nil
}

// replayUpdate sends the record's current state, not the snapshot
// captured at enqueue time. Successive queued updates therefore all
// converge on the latest local state.
func (c *Coordinator) replayUpdate(ctx context.Context, m model.Mutation) error {
	payload, found, deleted, err := c.loadCurrent(ctx, m.Entity, m.EntityID)
	if err != nil {
		return err
	}
	if !found || deleted {
		// The record is gone locally; a later delete entry (if any)
		// handles the remote side. This update has nothing to say.
		return c.cache.RemoveMutation(ctx, m.QueueID)
	}
	if model.IsTemp(m.EntityID) {
		return fmt.Errorf("update of %s %d precedes its create in the queue", m.Entity, m.EntityID)
	}

	if err := c.backend.Update(ctx, m.Entity, m.EntityID, payload); err != nil {
		return fmt.Errorf("remote update of %s %d failed: %w", m.Entity, m.EntityID, err)
	}
	if err := c.cache.MarkSynced(ctx, m.Entity, m.EntityID); err != nil {
		return err
	}
	if err := c.cache.RemoveMutation(ctx, m.QueueID); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.EntityUpdate(m.Entity, m.EntityID, "updated")
	}
	return nil
}

func (c *Coordinator) replayDelete(ctx context.Context, m model.Mutation) error {
	if model.IsTemp(m.EntityID) {
		// Never reached the server; nothing remote to delete.
		if err := c.cache.Purge(ctx, m.Entity, m.EntityID); err != nil {
			return err
		}
		return c.cache.RemoveMutation(ctx, m.QueueID)
	}

	err := c.backend.Delete(ctx, m.Entity, m.EntityID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remote delete of %s %d failed: %w", m.Entity, m.EntityID, err)
	}
	if err := c.cache.Purge(ctx, m.Entity, m.EntityID); err != nil {
		return err
	}
	if err := c.cache.RemoveMutation(ctx, m.QueueID); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.EntityUpdate(m.Entity, m.EntityID, "deleted")
	}
	return nil
}

// loadCurrent reads the record's present cached state so replay always
// reflects what the user sees now, never a stale queue snapshot.
func (c *Coordinator) loadCurrent(ctx context.Context, entityType model.EntityType, id int64) (model.Payload, bool, bool, error) {
	var (
		payload model.Payload
		deleted bool
		err     error
	)
	switch entityType {
	case model.EntityTask:
		var t *model.Task
		t, err = c.cache.GetTask(ctx, id)
		if err == nil {
			payload, deleted = t, t.Deleted
		}
	case model.EntityEvent:
		var e *model.Event
		e, err = c.cache.GetEvent(ctx, id)
		if err == nil {
			payload, deleted = e, e.Deleted
		}
	case model.EntityChatSession:
		var s *model.ChatSession
		s, err = c.cache.GetChatSession(ctx, id)
		if err == nil {
			payload, deleted = s, s.Deleted
		}
	case model.EntityChatMessage:
		var msg *model.ChatMessage
		msg, err = c.cache.GetChatMessage(ctx, id)
		if err == nil {
			payload, deleted = msg, msg.Deleted
		}
	default:
		return nil, false, false, fmt.Errorf("unknown entity type %q", entityType)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to load %s %d: %w", entityType, id, err)
	}
	return payload, true, deleted, nil
}

func isNotFound(err error) bool {
	var apiErr *remote.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
