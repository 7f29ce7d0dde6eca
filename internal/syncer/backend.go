package syncer

import (
	"context"

	"github.com/google/uuid"

	"github.com/agentx/assistant-core/internal/model"
)

// Backend is the remote surface the coordinator replays mutations
// against. *remote.Client satisfies it; tests substitute a fake.
type Backend interface {
	// Create persists a new record remotely and returns its
	// server-assigned id. The idempotency key makes interrupted
	// replays safe to repeat.
	Create(ctx context.Context, entityType model.EntityType, key uuid.UUID, payload model.Payload) (int64, error)

	// Update overwrites the remote record's mutable fields.
	Update(ctx context.Context, entityType model.EntityType, id int64, payload model.Payload) error

	// Delete removes the remote record.
	Delete(ctx context.Context, entityType model.EntityType, id int64) error
}

// Notifier receives sync lifecycle events for live status consumers
// such as the websocket feed. Implementations must not block; the
// coordinator calls these inline.
type Notifier interface {
	SyncState(online bool)
	QueueStats(pending int)
	ReconcileComplete(replayed, remaining int, err error)
	EntityUpdate(entityType model.EntityType, id int64, action string)
}

// Outcome reports what happened to a mutation handed to Apply.
type Outcome int

const (
	// OutcomeQueued means the mutation is durably queued and will be
	// replayed during a later reconciliation pass.
	OutcomeQueued Outcome = iota

	// OutcomeSynced means the mutation reached the backend and the
	// local record now carries its server-confirmed state.
	OutcomeSynced
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	if o == OutcomeSynced {
		return "synced"
	}
	return "queued"
}
