package model

import (
	"fmt"
	"time"
)

// Event is a calendar entry.
type Event struct {
	Meta

	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Category    string     `json:"category,omitempty"`
	Priority    string     `json:"priority"`
	Location    string     `json:"location,omitempty"`
}

// EntityType implements Payload.
func (e *Event) EntityType() EntityType { return EntityEvent }

// Validate checks field values before the event is written to the cache.
func (e *Event) Validate() error {
	if err := validateID(e.ID); err != nil {
		return err
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return fmt.Errorf("end_time %s is before start_time %s", e.EndTime.Format(time.RFC3339), e.StartTime.Format(time.RFC3339))
	}
	if e.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (e *Event) SetDefaults() {
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	if e.Category == "" {
		e.Category = "general"
	}
	if e.LastUpdated.IsZero() {
		e.LastUpdated = time.Now()
	}
}
