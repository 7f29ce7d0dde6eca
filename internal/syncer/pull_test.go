package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

type fakePuller struct {
	tasks  []*model.Task
	events []*model.Event
}

func (f *fakePuller) ListTasks(ctx context.Context) ([]*model.Task, error)   { return f.tasks, nil }
func (f *fakePuller) ListEvents(ctx context.Context) ([]*model.Event, error) { return f.events, nil }

func TestPullAll_HydratesCache(t *testing.T) {
	db := newTestCache(t)
	c := New(db, newFakeBackend(), onlineMonitor(t), nil)
	ctx := context.Background()
	now := time.Now().UTC()

	puller := &fakePuller{
		tasks: []*model.Task{{
			Meta:     model.Meta{ID: 10, LastUpdated: now},
			Title:    "from server",
			Priority: model.PriorityLow,
			Tags:     []string{},
		}},
		events: []*model.Event{{
			Meta:      model.Meta{ID: 20, LastUpdated: now},
			Title:     "review",
			StartTime: now.Add(2 * time.Hour),
		}},
	}

	if err := c.PullAll(ctx, puller); err != nil {
		t.Fatalf("PullAll() failed: %v", err)
	}

	task, err := db.GetTask(ctx, 10)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if !task.Synced {
		t.Error("pulled task should be marked synced")
	}
	event, err := db.GetEvent(ctx, 20)
	if err != nil {
		t.Fatalf("GetEvent() failed: %v", err)
	}
	if !event.Synced {
		t.Error("pulled event should be marked synced")
	}
}

func TestPullAll_SkipsLocallyDivergedRecords(t *testing.T) {
	db := newTestCache(t)
	c := New(db, newFakeBackend(), onlineMonitor(t), nil)
	ctx := context.Background()
	now := time.Now().UTC()

	// Local record 10 has an unsynced edit.
	local := &model.Task{
		Meta:     model.Meta{ID: 10, Synced: false, LastUpdated: now},
		Title:    "local edit",
		Priority: model.PriorityHigh,
		Tags:     []string{},
	}
	if err := db.PutTask(ctx, local); err != nil {
		t.Fatalf("PutTask() failed: %v", err)
	}

	puller := &fakePuller{
		tasks: []*model.Task{{
			Meta:     model.Meta{ID: 10, LastUpdated: now},
			Title:    "server version",
			Priority: model.PriorityLow,
			Tags:     []string{},
		}},
	}
	if err := c.PullAll(ctx, puller); err != nil {
		t.Fatalf("PullAll() failed: %v", err)
	}

	got, err := db.GetTask(ctx, 10)
	if err != nil {
		t.Fatalf("GetTask() failed: %v", err)
	}
	if got.Title != "local edit" {
		t.Errorf("pull clobbered a locally-diverged record: title = %q", got.Title)
	}
}
