package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the typed body of a mutation. Each entity struct is its own
// payload variant; there are no loose maps anywhere in the queue.
type Payload interface {
	EntityType() EntityType
	Validate() error
}

// Mutation is one durable entry in the mutation queue.
//
// Key is a client-generated idempotency token. The backend deduplicates
// creates by it, so replaying an interrupted create cannot mint a second
// server record.
type Mutation struct {
	QueueID    int64      // assigned by the cache on enqueue
	Key        uuid.UUID  // idempotency key, stable across replays
	Entity     EntityType
	Op         Op
	EntityID   int64
	Payload    Payload // nil for deletes
	EnqueuedAt time.Time
}

// NewMutation builds a mutation for the given operation. Payload may be nil
// only for deletes.
func NewMutation(op Op, entityType EntityType, entityID int64, payload Payload) (Mutation, error) {
	if !op.Valid() {
		return Mutation{}, fmt.Errorf("unknown operation %q", op)
	}
	if !entityType.Valid() {
		return Mutation{}, fmt.Errorf("unknown entity type %q", entityType)
	}
	if err := validateID(entityID); err != nil {
		return Mutation{}, err
	}
	if payload == nil && op != OpDelete {
		return Mutation{}, fmt.Errorf("%s mutation requires a payload", op)
	}
	if payload != nil && payload.EntityType() != entityType {
		return Mutation{}, fmt.Errorf("payload type %s does not match entity type %s", payload.EntityType(), entityType)
	}
	return Mutation{
		Key:        uuid.New(),
		Entity:     entityType,
		Op:         op,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}, nil
}

// EncodePayload serializes a payload for queue storage.
// Returns nil for a nil payload (delete mutations).
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.EntityType(), err)
	}
	return data, nil
}

// DecodePayload deserializes a stored queue payload back into its typed
// variant. Returns nil for empty data.
func DecodePayload(entityType EntityType, data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var p Payload
	switch entityType {
	case EntityTask:
		p = &Task{}
	case EntityEvent:
		p = &Event{}
	case EntityChatSession:
		p = &ChatSession{}
	case EntityChatMessage:
		p = &ChatMessage{}
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", entityType, err)
	}
	return p, nil
}
