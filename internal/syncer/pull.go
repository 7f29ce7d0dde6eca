package syncer

import (
	"context"
	"fmt"

	"github.com/agentx/assistant-core/internal/model"
)

// Puller is the read side of the backend, used to hydrate the local
// cache from the server's view. *remote.Client satisfies it.
type Puller interface {
	ListTasks(ctx context.Context) ([]*model.Task, error)
	ListEvents(ctx context.Context) ([]*model.Event, error)
}

// PullAll hydrates the cache with the server's tasks and events. Local
// records with unsynced changes are left untouched so a pull can never
// clobber work the queue has not pushed yet; reconcile before pulling
// to minimize the window. Chat history is append-only and created
// locally, so it is not pulled.
func (c *Coordinator) PullAll(ctx context.Context, p Puller) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks, err := p.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull tasks: %w", err)
	}
	events, err := p.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull events: %w", err)
	}

	var stored int
	for _, t := range tasks {
		diverged, err := c.locallyDiverged(ctx, model.EntityTask, t.ID)
		if err != nil {
			return err
		}
		if diverged {
			continue
		}
		t.Synced = true
		t.Deleted = false
		if err := c.cache.PutTask(ctx, t); err != nil {
			return fmt.Errorf("failed to store pulled task %d: %w", t.ID, err)
		}
		stored++
	}
	for _, e := range events {
		diverged, err := c.locallyDiverged(ctx, model.EntityEvent, e.ID)
		if err != nil {
			return err
		}
		if diverged {
			continue
		}
		e.Synced = true
		e.Deleted = false
		if err := c.cache.PutEvent(ctx, e); err != nil {
			return fmt.Errorf("failed to store pulled event %d: %w", e.ID, err)
		}
		stored++
	}

	c.logger.Printf("pull complete: %d tasks, %d events, %d stored", len(tasks), len(events), stored)
	return nil
}

// locallyDiverged reports whether the cached copy carries changes the
// server has not seen.
func (c *Coordinator) locallyDiverged(ctx context.Context, entityType model.EntityType, id int64) (bool, error) {
	payload, found, deleted, err := c.loadCurrent(ctx, entityType, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if deleted {
		return true, nil
	}
	switch v := payload.(type) {
	case *model.Task:
		return !v.Synced, nil
	case *model.Event:
		return !v.Synced, nil
	case *model.ChatSession:
		return !v.Synced, nil
	case *model.ChatMessage:
		return !v.Synced, nil
	}
	return false, nil
}
