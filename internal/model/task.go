package model

import (
	"fmt"
	"time"
)

// Task priorities as the backend understands them.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a to-do item. Field set mirrors the backend's tasks resource.
type Task struct {
	Meta

	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"` // low, medium, high
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"is_completed"`
	Progress    float64    `json:"progress"` // 0.0 - 1.0
	Tags        []string   `json:"tags,omitempty"`
}

// EntityType implements Payload.
func (t *Task) EntityType() EntityType { return EntityTask }

// Validate checks field values before the task is written to the cache.
func (t *Task) Validate() error {
	if err := validateID(t.ID); err != nil {
		return err
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("priority must be low, medium or high (got %q)", t.Priority)
	}
	if t.Progress < 0 || t.Progress > 1 {
		return fmt.Errorf("progress must be between 0 and 1 (got %g)", t.Progress)
	}
	if t.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Category == "" {
		t.Category = "general"
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = time.Now()
	}
}
