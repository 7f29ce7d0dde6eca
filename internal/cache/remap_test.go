package cache

import (
	"context"
	"testing"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

func seedSessionWithMessages(t *testing.T, db *DB, sessionID int64, msgIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	session := &model.ChatSession{
		Meta:      model.Meta{ID: sessionID, LastUpdated: now},
		Title:     "trip planning",
		CreatedAt: now,
	}
	if err := db.PutChatSession(ctx, session); err != nil {
		t.Fatalf("PutChatSession() failed: %v", err)
	}
	for _, id := range msgIDs {
		msg := &model.ChatMessage{
			Meta:      model.Meta{ID: id, LastUpdated: now},
			SessionID: sessionID,
			Role:      model.RoleUser,
			Content:   "hello",
			CreatedAt: now,
		}
		if err := db.PutChatMessage(ctx, msg); err != nil {
			t.Fatalf("PutChatMessage() failed: %v", err)
		}
	}
}

func TestRemapID_RewritesPrimaryKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.PutTask(ctx, testTask(-3, "remap me")); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}
	if err := db.RemapID(ctx, model.EntityTask, -3, 77); err != nil {
		t.Fatalf("RemapID() failed: %v", err)
	}

	got, err := db.GetTask(ctx, 77)
	if err != nil {
		t.Fatalf("GetTask(77) failed: %v", err)
	}
	if got.Title != "remap me" {
		t.Errorf("title = %q", got.Title)
	}
	if _, err := db.GetTask(ctx, -3); err == nil {
		t.Error("old id still resolves after remap")
	}
}

func TestRemapID_RewritesSessionReferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedSessionWithMessages(t, db, -5, -6, -7)

	// A queued mutation for the session must follow the id too.
	session, err := db.GetChatSession(ctx, -5)
	if err != nil {
		t.Fatalf("GetChatSession() failed: %v", err)
	}
	if _, err := db.Enqueue(ctx, mustMutation(t, model.OpCreate, model.EntityChatSession, -5, session)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	if err := db.RemapID(ctx, model.EntityChatSession, -5, 101); err != nil {
		t.Fatalf("RemapID() failed: %v", err)
	}

	msgs, err := db.ListChatMessages(ctx, 101)
	if err != nil {
		t.Fatalf("ListChatMessages(101) failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages under new id, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.SessionID != 101 {
			t.Errorf("message %d session_id = %d, want 101", m.ID, m.SessionID)
		}
	}

	orphans, err := db.CountMessagesForSession(ctx, -5)
	if err != nil {
		t.Fatalf("CountMessagesForSession() failed: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d messages still reference the old id", orphans)
	}

	pending, err := db.PendingMutations(ctx)
	if err != nil {
		t.Fatalf("PendingMutations() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EntityID != 101 {
		t.Errorf("queue entry not remapped: %+v", pending)
	}
}

func TestRemapID_RejectsNonTempOldID(t *testing.T) {
	db := newTestDB(t)

	if err := db.RemapID(context.Background(), model.EntityTask, 5, 10); err == nil {
		t.Error("RemapID() accepted a non-temporary old id")
	}
}

func TestRemapID_RejectsInvalidNewID(t *testing.T) {
	db := newTestDB(t)

	if err := db.RemapID(context.Background(), model.EntityTask, -1, -2); err == nil {
		t.Error("RemapID() accepted a negative new id")
	}
	if err := db.RemapID(context.Background(), model.EntityTask, -1, 0); err == nil {
		t.Error("RemapID() accepted a zero new id")
	}
}
