package cache

import (
	"context"
	"testing"

	"github.com/agentx/assistant-core/internal/model"
)

func mustMutation(t *testing.T, op model.Op, entityType model.EntityType, id int64, payload model.Payload) model.Mutation {
	t.Helper()
	m, err := model.NewMutation(op, entityType, id, payload)
	if err != nil {
		t.Fatalf("NewMutation() failed: %v", err)
	}
	return m
}

func TestEnqueue_PreservesFIFOOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := testTask(-1, "ordered")
	muts := []model.Mutation{
		mustMutation(t, model.OpCreate, model.EntityTask, -1, task),
		mustMutation(t, model.OpUpdate, model.EntityTask, -1, task),
		mustMutation(t, model.OpDelete, model.EntityTask, -1, nil),
	}
	for _, m := range muts {
		if _, err := db.Enqueue(ctx, m); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}

	pending, err := db.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("PendingMutations() failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	wantOps := []model.Op{model.OpCreate, model.OpUpdate, model.OpDelete}
	for i, m := range pending {
		if m.Op != wantOps[i] {
			t.Errorf("pending[%d].Op = %s, want %s", i, m.Op, wantOps[i])
		}
		if i > 0 && pending[i].QueueID <= pending[i-1].QueueID {
			t.Errorf("queue ids not ascending: %d then %d", pending[i-1].QueueID, pending[i].QueueID)
		}
	}
}

func TestEnqueue_RoundtripsKeyAndPayload(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := testTask(-1, "payload")
	m := mustMutation(t, model.OpCreate, model.EntityTask, -1, task)
	if _, err := db.Enqueue(ctx, m); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	pending, err := db.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("PendingMutations() failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	got := pending[0]
	if got.Key != m.Key {
		t.Errorf("idempotency key = %s, want %s", got.Key, m.Key)
	}
	decoded, ok := got.Payload.(*model.Task)
	if !ok {
		t.Fatalf("payload type = %T, want *model.Task", got.Payload)
	}
	if decoded.Title != "payload" {
		t.Errorf("payload title = %q", decoded.Title)
	}
}

func TestPendingMutationsFor_FiltersByType(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := testTask(-1, "t")
	event := &model.Event{Meta: model.Meta{ID: -1, LastUpdated: task.LastUpdated}, Title: "e", StartTime: task.LastUpdated}

	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityTask, -1, task)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityEvent, -1, event)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	pending, err := db.PendingMutationsFor(ctx, model.EntityEvent)
	if err != nil {
		t.Fatalf("PendingMutationsFor() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Entity != model.EntityEvent {
		t.Errorf("got %d event mutations", len(pending))
	}
}

func TestRemoveMutationsForEntity_OnlyTouchesTarget(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	keep := testTask(-1, "keep")
	drop := testTask(-2, "drop")
	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityTask, -1, keep)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityTask, -2, drop)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpDelete, model.EntityTask, -2, nil)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	if err := db.RemoveMutationsForEntity(ctx, model.EntityTask, -2); err != nil {
		t.Fatalf("RemoveMutationsForEntity() failed: %v", err)
	}

	pending, err := db.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("PendingMutations() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EntityID != -1 {
		t.Errorf("got %d pending, want only entity -1", len(pending))
	}
}

func TestMutationExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityTask, -1, testTask(-1, "x")))
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	exists, err := db.MutationExists(ctx, id)
	if err != nil {
		t.Fatalf("MutationExists() failed: %v", err)
	}
	if !exists {
		t.Error("MutationExists() = false, want true")
	}

	if err := db.RemoveMutation(ctx, id); err != nil {
		t.Fatalf("RemoveMutation() failed: %v", err)
	}
	exists, err = db.MutationExists(ctx, id)
	if err != nil {
		t.Fatalf("MutationExists() failed: %v", err)
	}
	if exists {
		t.Error("MutationExists() = true after removal")
	}
}
