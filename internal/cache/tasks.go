package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

// PutTask inserts or replaces a task in the cache.
// Tags are stored as a JSON array string.
func (db *DB) PutTask(ctx context.Context, task *model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO tasks (
		id, title, description, priority, category, due_date,
		is_completed, progress, tags, is_synced, is_deleted, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		priority = excluded.priority,
		category = excluded.category,
		due_date = excluded.due_date,
		is_completed = excluded.is_completed,
		progress = excluded.progress,
		tags = excluded.tags,
		is_synced = excluded.is_synced,
		is_deleted = excluded.is_deleted,
		last_updated = excluded.last_updated
	`

	_, err = db.conn.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Priority,
		task.Category,
		timeToNullString(task.DueDate),
		boolToInt(task.Completed),
		task.Progress,
		string(tagsJSON),
		boolToInt(task.Synced),
		boolToInt(task.Deleted),
		task.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to put task %d: %w", task.ID, err)
	}

	return nil
}

// GetTask retrieves a single task by id.
// Returns sql.ErrNoRows if the task is not found.
func (db *DB) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx, taskColumns+" FROM tasks WHERE id = ?", id)
	return scanTask(row)
}

// TaskFilter configures ListTasks.
type TaskFilter struct {
	// IncludeDeleted includes soft-deleted rows.
	IncludeDeleted bool
	// Completed filters by completion state (nil = all).
	Completed *bool
	// Category filters by category (empty = all).
	Category string
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListTasks retrieves tasks matching the filter, newest first. This is the
// read-through query surface for the screen layer: it returns the current
// best-known state regardless of sync status.
func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]*model.Task, error) {
	var conditions []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "is_deleted = 0")
	}
	if filter.Completed != nil {
		conditions = append(conditions, "is_completed = ?")
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	query := taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY last_updated DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

const taskColumns = `SELECT id, title, description, priority, category, due_date,
	is_completed, progress, tags, is_synced, is_deleted, last_updated`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*model.Task, error) {
	var task model.Task
	var dueDate sql.NullString
	var completed, synced, deleted int
	var tagsJSON, lastUpdated string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Category,
		&dueDate,
		&completed,
		&task.Progress,
		&tagsJSON,
		&synced,
		&deleted,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	task.DueDate = nullStringToTime(dueDate)
	task.Completed = completed != 0
	task.Synced = synced != 0
	task.Deleted = deleted != 0
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		task.LastUpdated = t
	}

	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	} else {
		task.Tags = []string{}
	}

	return &task, nil
}
