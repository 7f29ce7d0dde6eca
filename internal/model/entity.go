package model

import (
	"fmt"
	"time"
)

// EntityType identifies one of the synchronizable tables.
type EntityType string

const (
	EntityTask        EntityType = "task"
	EntityEvent       EntityType = "event"
	EntityChatSession EntityType = "chat_session"
	EntityChatMessage EntityType = "chat_message"
)

// Valid reports whether t names a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTask, EntityEvent, EntityChatSession, EntityChatMessage:
		return true
	}
	return false
}

// Op is the kind of mutation applied to an entity.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Valid reports whether o names a known operation.
func (o Op) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Meta holds the sync bookkeeping fields shared by every entity.
//
// Locally created records get a temporary negative ID so they can never
// collide with server-assigned (positive) identifiers. The temporary ID is
// only a local join key; it is never sent to the backend as the record's
// identity.
type Meta struct {
	ID          int64     `json:"id"`
	Synced      bool      `json:"is_synced"`
	Deleted     bool      `json:"is_deleted"`
	LastUpdated time.Time `json:"last_updated"`
}

// IsTemp reports whether id is a locally assigned temporary identifier.
func IsTemp(id int64) bool {
	return id < 0
}

// Touch stamps LastUpdated and clears the synced flag. Call it on every
// local mutation before handing the record to the cache.
func (m *Meta) Touch(now time.Time) {
	m.LastUpdated = now
	m.Synced = false
}

func validateID(id int64) error {
	if id == 0 {
		return fmt.Errorf("id is required (temporary ids are negative, server ids positive)")
	}
	return nil
}
