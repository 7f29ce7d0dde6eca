package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

// newTestDB opens an initialized cache in a temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func testTask(id int64, title string) *model.Task {
	return &model.Task{
		Meta: model.Meta{
			ID:          id,
			LastUpdated: time.Now().UTC(),
		},
		Title:    title,
		Priority: model.PriorityMedium,
		Tags:     []string{},
	}
}

func TestInitSchema_CreatesTables(t *testing.T) {
	db := newTestDB(t)

	tables := []string{"tasks", "events", "chat_sessions", "chat_messages", "mutation_queue"}
	for _, table := range tables {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := db.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

func TestNextTempID_Descends(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id1, err := db.NextTempID(ctx, model.EntityTask)
	if err != nil {
		t.Fatalf("NextTempID() failed: %v", err)
	}
	if id1 != -1 {
		t.Errorf("first temp id = %d, want -1", id1)
	}

	if err := db.PutTask(ctx, testTask(id1, "first")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}

	id2, err := db.NextTempID(ctx, model.EntityTask)
	if err != nil {
		t.Fatalf("NextTempID() failed: %v", err)
	}
	if id2 != -2 {
		t.Errorf("second temp id = %d, want -2", id2)
	}
	if !model.IsTemp(id2) {
		t.Errorf("IsTemp(%d) = false, want true", id2)
	}
}

func TestNextTempID_IgnoresServerIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutTask(ctx, testTask(42, "synced")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}

	id, err := db.NextTempID(ctx, model.EntityTask)
	if err != nil {
		t.Fatalf("NextTempID() failed: %v", err)
	}
	if id != -1 {
		t.Errorf("temp id = %d, want -1", id)
	}
}

func TestPutTask_Roundtrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	task := testTask(-1, "buy milk")
	task.Description = "2% if they have it"
	task.Priority = model.PriorityHigh
	task.Category = "errands"
	task.DueDate = &due
	task.Progress = 0.5
	task.Tags = []string{"home", "shopping"}

	if err := db.PutTask(ctx, task); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}

	got, err := db.GetTask(ctx, -1)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if got.Title != task.Title || got.Description != task.Description {
		t.Errorf("got %q/%q, want %q/%q", got.Title, got.Description, task.Title, task.Description)
	}
	if got.Priority != model.PriorityHigh || got.Category != "errands" {
		t.Errorf("priority/category = %q/%q", got.Priority, got.Category)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", got.DueDate, due)
	}
	if got.Progress != 0.5 {
		t.Errorf("progress = %v, want 0.5", got.Progress)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "home" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Synced {
		t.Error("new task should not be marked synced")
	}
}

func TestGetTask_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTask(context.Background(), 999)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetTask() error = %v, want sql.ErrNoRows", err)
	}
}

func TestMarkDeleted_HidesFromList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutTask(ctx, testTask(-1, "doomed")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}
	if err := db.MarkDeleted(ctx, model.EntityTask, -1, time.Now()); err != nil {
		t.Fatalf("MarkDeleted() failed: %v", err)
	}

	tasks, err := db.ListTasks(ctx, TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("ListTasks() returned %d tasks, want 0", len(tasks))
	}

	// The tombstone is still readable directly.
	got, err := db.GetTask(ctx, -1)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if !got.Deleted {
		t.Error("task should be marked deleted")
	}
	if got.Synced {
		t.Error("tombstone should be unsynced until the delete replays")
	}
}

func TestPurge_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutTask(ctx, testTask(-1, "gone")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}
	if err := db.Purge(ctx, model.EntityTask, -1); err != nil {
		t.Fatalf("Purge() failed: %v", err)
	}
	if err := db.Purge(ctx, model.EntityTask, -1); err != nil {
		t.Errorf("second Purge() failed: %v", err)
	}

	_, err := db.GetTask(ctx, -1)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetTask() after purge error = %v, want sql.ErrNoRows", err)
	}
}

func TestCountUnsynced_AcrossTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutTask(ctx, testTask(-1, "pending")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}
	event := &model.Event{
		Meta:      model.Meta{ID: -1, LastUpdated: time.Now()},
		Title:     "standup",
		StartTime: time.Now().Add(time.Hour),
	}
	if err := db.PutEvent(ctx, event); err != nil {
		t.Fatalf("PutEvent() failed: %v", err)
	}

	n, err := db.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("CountUnsynced() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountUnsynced() = %d, want 2", n)
	}

	if err := db.MarkSynced(ctx, model.EntityTask, -1); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	n, err = db.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("CountUnsynced() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountUnsynced() after MarkSynced = %d, want 1", n)
	}
}

func TestListTasks_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	done := testTask(-1, "done")
	done.Completed = true
	done.Category = "work"
	open := testTask(-2, "open")
	open.Category = "home"
	for _, task := range []*model.Task{done, open} {
		if err := db.PutTask(ctx, task); err != nil {
			t.Fatalf("PutTask() failed: %v", err)
		}
	}

	completed := true
	tasks, err := db.ListTasks(ctx, TaskFilter{Completed: &completed})
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "done" {
		t.Errorf("completed filter returned %d tasks", len(tasks))
	}

	tasks, err = db.ListTasks(ctx, TaskFilter{Category: "home"})
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "open" {
		t.Errorf("category filter returned %d tasks", len(tasks))
	}
}
