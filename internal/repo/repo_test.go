package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/syncer"
)

// offlineEnv wires repositories to a cache with no connectivity: every
// write must succeed locally and queue.
type offlineEnv struct {
	db     *cache.DB
	coord  *syncer.Coordinator
	tasks  *Tasks
	events *Events
	chats  *Chats
}

func newOfflineEnv(t *testing.T) *offlineEnv {
	t.Helper()
	db, err := cache.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	coord := syncer.New(db, nil, nil, nil) // offline, backend never reached
	return &offlineEnv{
		db:     db,
		coord:  coord,
		tasks:  NewTasks(db, coord),
		events: NewEvents(db, coord),
		chats:  NewChats(db, coord),
	}
}

func TestTasksCreate_OfflineIsAvailableImmediately(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	task := &model.Task{Title: "write report"}
	outcome, err := env.tasks.Create(ctx, task)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if outcome != syncer.OutcomeQueued {
		t.Errorf("outcome = %s, want queued", outcome)
	}
	if !model.IsTemp(task.ID) {
		t.Errorf("task id = %d, want temporary", task.ID)
	}

	got, err := env.tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Synced {
		t.Error("offline create must be flagged unsynced")
	}
	if got.LastUpdated.IsZero() {
		t.Error("create did not stamp last_updated")
	}
}

func TestTasksCreate_AppliesDefaults(t *testing.T) {
	env := newOfflineEnv(t)

	task := &model.Task{Title: "defaults"}
	if _, err := env.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if task.Priority != model.PriorityMedium {
		t.Errorf("priority = %q, want %q", task.Priority, model.PriorityMedium)
	}
}

func TestTasksCreate_RejectsInvalid(t *testing.T) {
	env := newOfflineEnv(t)

	if _, err := env.tasks.Create(context.Background(), &model.Task{}); err == nil {
		t.Error("Create() accepted a task without a title")
	}
}

func TestTasksUpdate_FlagsUnsynced(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	task := &model.Task{Title: "v1"}
	if _, err := env.tasks.Create(ctx, task); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	before := task.LastUpdated

	time.Sleep(5 * time.Millisecond)
	task.Title = "v2"
	if _, err := env.tasks.Update(ctx, task); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := env.tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Title != "v2" {
		t.Errorf("title = %q, want v2", got.Title)
	}
	if !got.LastUpdated.After(before) {
		t.Error("update did not advance last_updated")
	}
	if got.Synced {
		t.Error("update must clear the synced flag")
	}
}

func TestTasksDelete_HidesRecordAndQueues(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	task := &model.Task{Title: "to delete"}
	if _, err := env.tasks.Create(ctx, task); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := env.tasks.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := env.tasks.Get(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := env.tasks.Delete(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	pending, err := env.db.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("PendingMutations() failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("queue has %d entries, want create+delete", len(pending))
	}
}

func TestTasksToggleComplete(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	task := &model.Task{Title: "toggle"}
	if _, err := env.tasks.Create(ctx, task); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, _, err := env.tasks.ToggleComplete(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleComplete() failed: %v", err)
	}
	if !got.Completed || got.Progress != 1 {
		t.Errorf("completed = %v, progress = %v", got.Completed, got.Progress)
	}

	got, _, err = env.tasks.ToggleComplete(ctx, task.ID)
	if err != nil {
		t.Fatalf("ToggleComplete() failed: %v", err)
	}
	if got.Completed {
		t.Error("second toggle did not reopen the task")
	}
}

func TestTasksSetProgress_Clamps(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	task := &model.Task{Title: "progress"}
	if _, err := env.tasks.Create(ctx, task); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, _, err := env.tasks.SetProgress(ctx, task.ID, 1.7)
	if err != nil {
		t.Fatalf("SetProgress() failed: %v", err)
	}
	if got.Progress != 1 || !got.Completed {
		t.Errorf("progress = %v, completed = %v", got.Progress, got.Completed)
	}
}

func TestEventsCreate_Offline(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	event := &model.Event{Title: "sync review", StartTime: time.Now().Add(time.Hour)}
	outcome, err := env.events.Create(ctx, event)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if outcome != syncer.OutcomeQueued || !model.IsTemp(event.ID) {
		t.Errorf("outcome = %s, id = %d", outcome, event.ID)
	}

	got, err := env.events.Get(ctx, event.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Synced {
		t.Error("offline event must be unsynced")
	}
}

func TestChatsAppendMessage_RequiresSession(t *testing.T) {
	env := newOfflineEnv(t)

	_, _, err := env.chats.AppendMessage(context.Background(), -99, model.RoleUser, "hello?")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendMessage() error = %v, want ErrNotFound", err)
	}
}

func TestChatsAppendMessage_CarriesTempSessionID(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	session, _, err := env.chats.CreateSession(ctx, "trip", "planner")
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if !model.IsTemp(session.ID) {
		t.Fatalf("session id = %d, want temporary", session.ID)
	}

	msg, _, err := env.chats.AppendMessage(ctx, session.ID, model.RoleUser, "find flights")
	if err != nil {
		t.Fatalf("AppendMessage() failed: %v", err)
	}
	if msg.SessionID != session.ID {
		t.Errorf("message session id = %d, want %d", msg.SessionID, session.ID)
	}

	msgs, err := env.chats.Messages(ctx, session.ID)
	if err != nil {
		t.Fatalf("Messages() failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "find flights" {
		t.Errorf("Messages() = %+v", msgs)
	}
}

func TestChatsDeleteSession_RemovesMessages(t *testing.T) {
	env := newOfflineEnv(t)
	ctx := context.Background()

	session, _, err := env.chats.CreateSession(ctx, "old chat", "")
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if _, _, err := env.chats.AppendMessage(ctx, session.ID, model.RoleUser, "hi"); err != nil {
		t.Fatalf("AppendMessage() failed: %v", err)
	}

	if _, err := env.chats.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession() failed: %v", err)
	}

	if _, err := env.chats.GetSession(ctx, session.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
	n, err := env.db.CountMessagesForSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountMessagesForSession() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("%d messages survived session deletion", n)
	}
}
