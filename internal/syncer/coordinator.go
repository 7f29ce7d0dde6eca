package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/connectivity"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/remote"
)

// Coordinator routes mutations between the local cache and the remote
// backend. A single mutex serializes Apply and Reconcile so queue
// order is never violated by concurrent replays.
type Coordinator struct {
	cache    *cache.DB
	backend  Backend
	monitor  *connectivity.Monitor
	logger   *log.Logger
	notifier Notifier

	mu            sync.Mutex
	lastReconcile time.Time
	lastErr       error
	remaps        map[remapKey]int64
}

type remapKey struct {
	entity model.EntityType
	tempID int64
}

// New creates a coordinator. The monitor may be nil, in which case the
// coordinator treats the device as permanently offline and only queues.
func New(db *cache.DB, backend Backend, monitor *connectivity.Monitor, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Coordinator{
		cache:   db,
		backend: backend,
		monitor: monitor,
		logger:  logger,
		remaps:  make(map[remapKey]int64),
	}
}

// ResolveID translates a temporary id to the server id it was remapped
// to during this session. Ids that were never remapped come back
// unchanged.
func (c *Coordinator) ResolveID(entityType model.EntityType, id int64) int64 {
	if !model.IsTemp(id) {
		return id
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if serverID, ok := c.remaps[remapKey{entityType, id}]; ok {
		return serverID
	}
	return id
}

// SetNotifier attaches a sync event consumer. Call before Run.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.notifier = n
}

// Status is a point-in-time snapshot of sync health.
type Status struct {
	Online        bool      `json:"online"`
	Pending       int       `json:"pending"`
	Unsynced      int       `json:"unsynced"`
	LastReconcile time.Time `json:"last_reconcile,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Status reports connectivity, queue depth, and the result of the most
// recent reconciliation pass.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	pending, err := c.cache.QueueLen(ctx)
	if err != nil {
		return Status{}, err
	}
	unsynced, err := c.cache.CountUnsynced(ctx)
	if err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Pending:       pending,
		Unsynced:      unsynced,
		LastReconcile: c.lastReconcile,
	}
	if c.monitor != nil {
		s.Online = c.monitor.Online()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s, nil
}

// Apply records a mutation and pushes it to the backend when possible.
//
// The mutation is appended to the durable queue before any network
// activity, so a crash at any point leaves it replayable. When the
// device is online the coordinator then drains the queue in order;
// draining rather than dispatching the single new entry guarantees an
// earlier queued create (and its id remap) lands first.
//
// OutcomeSynced means this mutation settled: it either reached the
// backend or coalesced away locally (create-then-delete). OutcomeQueued
// means it remains pending; the error is non-nil only when the failure
// needs user attention (rejection or auth), never for transient
// transport trouble.
func (c *Coordinator) Apply(ctx context.Context, m model.Mutation) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queueID, err := c.cache.Enqueue(ctx, m)
	if err != nil {
		return OutcomeQueued, fmt.Errorf("failed to queue %s %s: %w", m.Op, m.Entity, err)
	}
	m.QueueID = queueID
	c.publishQueueStats(ctx)

	if c.monitor == nil || !c.monitor.Online() {
		c.logger.Printf("offline: queued %s %s %d", m.Op, m.Entity, m.EntityID)
		return OutcomeQueued, nil
	}

	_, firstErr := c.reconcileLocked(ctx)

	stillPending, err := c.cache.MutationExists(ctx, queueID)
	if err != nil {
		return OutcomeQueued, err
	}
	if !stillPending {
		return OutcomeSynced, nil
	}
	if firstErr != nil && !remote.IsTransient(firstErr) {
		return OutcomeQueued, firstErr
	}
	return OutcomeQueued, nil
}

// Reconcile replays the pending queue oldest-to-newest. Entries replay
// against the record's current local state; a failure blocks the rest
// of that entity type's entries for this pass (order within a type is
// sacred) while other entity types continue. Auth failures abort the
// whole pass since every call would fail the same way.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.reconcileLocked(ctx)
	return err
}

func (c *Coordinator) reconcileLocked(ctx context.Context) (int, error) {
	pending, err := c.cache.PendingMutations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending mutations: %w", err)
	}
	if len(pending) == 0 {
		c.lastReconcile = time.Now()
		c.lastErr = nil
		return 0, nil
	}

	c.logger.Printf("reconciling %d pending mutations", len(pending))

	var firstErr error
	blocked := make(map[model.EntityType]bool)
	replayed := 0

	for _, m := range pending {
		if blocked[m.Entity] {
			continue
		}
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		if err := c.replayOne(ctx, m); err != nil {
			blocked[m.Entity] = true
			if firstErr == nil {
				firstErr = err
			}
			c.logger.Printf("replay of %s %s %d failed: %v", m.Op, m.Entity, m.EntityID, err)
			if errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, remote.ErrNoCredential) {
				break
			}
			continue
		}
		replayed++
	}

	remaining, lenErr := c.cache.QueueLen(ctx)
	if lenErr != nil {
		c.logger.Printf("failed to read queue length: %v", lenErr)
		remaining = len(pending) - replayed
	}

	c.lastReconcile = time.Now()
	c.lastErr = firstErr
	if c.notifier != nil {
		c.notifier.ReconcileComplete(replayed, remaining, firstErr)
		c.notifier.QueueStats(remaining)
	}
	c.logger.Printf("reconcile complete: %d replayed, %d remaining", replayed, remaining)
	return replayed, firstErr
}

// Run drives background synchronization until ctx is cancelled. It
// reconciles once at startup if unsynced records survive from a prior
// session, then again on every offline-to-online transition.
func (c *Coordinator) Run(ctx context.Context) error {
	var states <-chan connectivity.State
	if c.monitor != nil {
		var cancel func()
		states, cancel = c.monitor.Subscribe()
		defer cancel()
	}

	if c.monitor != nil && c.monitor.Online() {
		if n, err := c.cache.CountUnsynced(ctx); err == nil && n > 0 {
			c.logger.Printf("startup: %d unsynced records, reconciling", n)
			if err := c.Reconcile(ctx); err != nil {
				c.logger.Printf("startup reconcile: %v", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if c.notifier != nil {
				c.notifier.SyncState(state == connectivity.StateOnline)
			}
			if state != connectivity.StateOnline {
				continue
			}
			if err := c.Reconcile(ctx); err != nil {
				c.logger.Printf("reconcile after reconnect: %v", err)
			}
		}
	}
}

func (c *Coordinator) publishQueueStats(ctx context.Context) {
	if c.notifier == nil {
		return
	}
	if n, err := c.cache.QueueLen(ctx); err == nil {
		c.notifier.QueueStats(n)
	}
}
