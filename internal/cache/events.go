package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

// PutEvent inserts or replaces a calendar event in the cache.
func (db *DB) PutEvent(ctx context.Context, event *model.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	query := `
	INSERT INTO events (
		id, title, description, start_time, end_time, category,
		priority, location, is_synced, is_deleted, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		category = excluded.category,
		priority = excluded.priority,
		location = excluded.location,
		is_synced = excluded.is_synced,
		is_deleted = excluded.is_deleted,
		last_updated = excluded.last_updated
	`

	_, err := db.conn.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.StartTime.Format(time.RFC3339Nano),
		timeToNullString(event.EndTime),
		event.Category,
		event.Priority,
		event.Location,
		boolToInt(event.Synced),
		boolToInt(event.Deleted),
		event.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put event %d: %w", event.ID, err)
	}

	return nil
}

// GetEvent retrieves a single event by id.
// Returns sql.ErrNoRows if the event is not found.
func (db *DB) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := db.conn.QueryRowContext(ctx, eventColumns+" FROM events WHERE id = ?", id)
	return scanEvent(row)
}

// EventFilter configures ListEvents.
type EventFilter struct {
	// IncludeDeleted includes soft-deleted rows.
	IncludeDeleted bool
	// From filters to events starting at or after this time.
	From *time.Time
	// Until filters to events starting before this time.
	Until *time.Time
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListEvents retrieves events matching the filter ordered by start time.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]*model.Event, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "is_deleted = 0")
	}
	if filter.From != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, filter.From.Format(time.RFC3339Nano))
	}
	if filter.Until != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, filter.Until.Format(time.RFC3339Nano))
	}

	query := eventColumns + " FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

const eventColumns = `SELECT id, title, description, start_time, end_time,
	category, priority, location, is_synced, is_deleted, last_updated`

func scanEvent(row scanner) (*model.Event, error) {
	var event model.Event
	var startTime, lastUpdated string
	var endTime sql.NullString
	var synced, deleted int

	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&startTime,
		&endTime,
		&event.Category,
		&event.Priority,
		&event.Location,
		&synced,
		&deleted,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, startTime); err == nil {
		event.StartTime = t
	}
	event.EndTime = nullStringToTime(endTime)
	event.Synced = synced != 0
	event.Deleted = deleted != 0
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		event.LastUpdated = t
	}

	return &event, nil
}
