package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/syncer"
)

// Events manages the calendar event collection.
type Events struct {
	cache *cache.DB
	sync  *syncer.Coordinator
	clock func() time.Time
}

// NewEvents creates an event repository backed by the given cache and
// coordinator.
func NewEvents(db *cache.DB, coord *syncer.Coordinator) *Events {
	return &Events{cache: db, sync: coord, clock: time.Now}
}

// Create stores a new event locally under a temporary id and queues it
// for sync.
func (r *Events) Create(ctx context.Context, e *model.Event) (syncer.Outcome, error) {
	e.SetDefaults()
	id, err := r.cache.NextTempID(ctx, model.EntityEvent)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	e.ID = id
	e.Touch(r.clock())
	if err := e.Validate(); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.PutEvent(ctx, e); err != nil {
		return syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpCreate, model.EntityEvent, e.ID, e)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	e.ID = r.sync.ResolveID(model.EntityEvent, e.ID)
	if outcome == syncer.OutcomeSynced {
		e.Synced = true
	}
	return outcome, err
}

// Update persists changed fields locally and queues the update.
func (r *Events) Update(ctx context.Context, e *model.Event) (syncer.Outcome, error) {
	if _, err := r.Get(ctx, e.ID); err != nil {
		return syncer.OutcomeQueued, err
	}
	e.Touch(r.clock())
	if err := e.Validate(); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.PutEvent(ctx, e); err != nil {
		return syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpUpdate, model.EntityEvent, e.ID, e)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	if outcome == syncer.OutcomeSynced {
		e.Synced = true
	}
	return outcome, err
}

// Delete tombstones the event locally and queues the remote delete.
func (r *Events) Delete(ctx context.Context, id int64) (syncer.Outcome, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.MarkDeleted(ctx, model.EntityEvent, id, r.clock()); err != nil {
		return syncer.OutcomeQueued, err
	}
	m, err := model.NewMutation(model.OpDelete, model.EntityEvent, id, nil)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	return r.sync.Apply(ctx, m)
}

// Get returns the event, or ErrNotFound if it is absent or tombstoned.
func (r *Events) Get(ctx context.Context, id int64) (*model.Event, error) {
	e, err := r.cache.GetEvent(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if e.Deleted {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// List returns events matching the filter in chronological order.
func (r *Events) List(ctx context.Context, filter cache.EventFilter) ([]*model.Event, error) {
	return r.cache.ListEvents(ctx, filter)
}

// Upcoming returns events starting within the given window from now.
func (r *Events) Upcoming(ctx context.Context, window time.Duration) ([]*model.Event, error) {
	now := r.clock()
	until := now.Add(window)
	return r.cache.ListEvents(ctx, cache.EventFilter{From: &now, Until: &until})
}
