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

// ErrNotFound is returned when a record does not exist locally or has
// been deleted.
var ErrNotFound = errors.New("record not found")

// Tasks manages the task collection.
type Tasks struct {
	cache *cache.DB
	sync  *syncer.Coordinator
	clock func() time.Time
}

// NewTasks creates a task repository backed by the given cache and
// coordinator.
func NewTasks(db *cache.DB, coord *syncer.Coordinator) *Tasks {
	return &Tasks{cache: db, sync: coord, clock: time.Now}
}

// Create stores a new task locally under a temporary id and queues it
// for sync. On return t.ID holds the record's current id: still
// temporary if the create is queued, the server id if it synced
// inline.
func (r *Tasks) Create(ctx context.Context, t *model.Task) (syncer.Outcome, error) {
	t.SetDefaults()
	id, err := r.cache.NextTempID(ctx, model.EntityTask)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	t.ID = id
	t.Touch(r.clock())
	if err := t.Validate(); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.PutTask(ctx, t); err != nil {
		return syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpCreate, model.EntityTask, t.ID, t)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	t.ID = r.sync.ResolveID(model.EntityTask, t.ID)
	if outcome == syncer.OutcomeSynced {
		t.Synced = true
	}
	return outcome, err
}

// Update persists changed fields locally and queues the update.
func (r *Tasks) Update(ctx context.Context, t *model.Task) (syncer.Outcome, error) {
	if _, err := r.Get(ctx, t.ID); err != nil {
		return syncer.OutcomeQueued, err
	}
	t.Touch(r.clock())
	if err := t.Validate(); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.PutTask(ctx, t); err != nil {
		return syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpUpdate, model.EntityTask, t.ID, t)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	if outcome == syncer.OutcomeSynced {
		t.Synced = true
	}
	return outcome, err
}

// Delete tombstones the task locally and queues the remote delete. The
// row is purged once the delete replays successfully.
func (r *Tasks) Delete(ctx context.Context, id int64) (syncer.Outcome, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return syncer.OutcomeQueued, err
	}
	if err := r.cache.MarkDeleted(ctx, model.EntityTask, id, r.clock()); err != nil {
		return syncer.OutcomeQueued, err
	}
	m, err := model.NewMutation(model.OpDelete, model.EntityTask, id, nil)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	return r.sync.Apply(ctx, m)
}

// Get returns the task, or ErrNotFound if it is absent or tombstoned.
func (r *Tasks) Get(ctx context.Context, id int64) (*model.Task, error) {
	t, err := r.cache.GetTask(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if t.Deleted {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, nil
}

// List returns tasks matching the filter, most recently updated first.
func (r *Tasks) List(ctx context.Context, filter cache.TaskFilter) ([]*model.Task, error) {
	return r.cache.ListTasks(ctx, filter)
}

// ToggleComplete flips the task's completion state. Completing a task
// also sets its progress to 1.
func (r *Tasks) ToggleComplete(ctx context.Context, id int64) (*model.Task, syncer.Outcome, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	t.Completed = !t.Completed
	if t.Completed {
		t.Progress = 1
	}
	outcome, err := r.Update(ctx, t)
	return t, outcome, err
}

// SetProgress records partial completion, clamped to [0, 1].
func (r *Tasks) SetProgress(ctx context.Context, id int64, progress float64) (*model.Task, syncer.Outcome, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t.Progress = progress
	t.Completed = progress >= 1
	outcome, err := r.Update(ctx, t)
	return t, outcome, err
}
