package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/syncer"
)

// Chats manages chat sessions and their messages. Messages reference
// their session by value, so a message appended to a not-yet-synced
// session carries the session's temporary id until the remap lands.
type Chats struct {
	cache *cache.DB
	sync  *syncer.Coordinator
	clock func() time.Time
}

// NewChats creates a chat repository backed by the given cache and
// coordinator.
func NewChats(db *cache.DB, coord *syncer.Coordinator) *Chats {
	return &Chats{cache: db, sync: coord, clock: time.Now}
}

// CreateSession starts a new conversation and queues it for sync.
func (r *Chats) CreateSession(ctx context.Context, title, agentName string) (*model.ChatSession, syncer.Outcome, error) {
	now := r.clock()
	s := &model.ChatSession{
		Title:     title,
		AgentName: agentName,
		CreatedAt: now,
	}
	id, err := r.cache.NextTempID(ctx, model.EntityChatSession)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	s.ID = id
	s.Touch(now)
	if err := s.Validate(); err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	if err := r.cache.PutChatSession(ctx, s); err != nil {
		return nil, syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpCreate, model.EntityChatSession, s.ID, s)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	s.ID = r.sync.ResolveID(model.EntityChatSession, s.ID)
	if outcome == syncer.OutcomeSynced {
		s.Synced = true
	}
	return s, outcome, err
}

// AppendMessage adds a message to an existing session. The session may
// still carry a temporary id; the queue replays the session's create
// first and remaps the reference before the message ever goes out.
func (r *Chats) AppendMessage(ctx context.Context, sessionID int64, role, content string) (*model.ChatMessage, syncer.Outcome, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, syncer.OutcomeQueued, err
	}

	now := r.clock()
	msg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	id, err := r.cache.NextTempID(ctx, model.EntityChatMessage)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	msg.ID = id
	msg.Touch(now)
	if err := msg.Validate(); err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	if err := r.cache.PutChatMessage(ctx, msg); err != nil {
		return nil, syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpCreate, model.EntityChatMessage, msg.ID, msg)
	if err != nil {
		return nil, syncer.OutcomeQueued, err
	}
	outcome, err := r.sync.Apply(ctx, m)
	msg.ID = r.sync.ResolveID(model.EntityChatMessage, msg.ID)
	msg.SessionID = r.sync.ResolveID(model.EntityChatSession, msg.SessionID)
	if outcome == syncer.OutcomeSynced {
		msg.Synced = true
	}
	return msg, outcome, err
}

// GetSession returns the session, or ErrNotFound if absent or
// tombstoned.
func (r *Chats) GetSession(ctx context.Context, id int64) (*model.ChatSession, error) {
	s, err := r.cache.GetChatSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if s.Deleted {
		return nil, fmt.Errorf("chat session %d: %w", id, ErrNotFound)
	}
	return s, nil
}

// ListSessions returns all live sessions, newest first.
func (r *Chats) ListSessions(ctx context.Context) ([]*model.ChatSession, error) {
	return r.cache.ListChatSessions(ctx)
}

// Messages returns the session's messages oldest first.
func (r *Chats) Messages(ctx context.Context, sessionID int64) ([]*model.ChatMessage, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.cache.ListChatMessages(ctx, sessionID)
}

// DeleteSession tombstones the session locally and queues the remote
// delete. The server cascades message deletion, so messages are purged
// locally and only the session mutation is queued.
func (r *Chats) DeleteSession(ctx context.Context, id int64) (syncer.Outcome, error) {
	if _, err := r.GetSession(ctx, id); err != nil {
		return syncer.OutcomeQueued, err
	}

	msgs, err := r.cache.ListChatMessages(ctx, id)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	for _, msg := range msgs {
		if err := r.cache.RemoveMutationsForEntity(ctx, model.EntityChatMessage, msg.ID); err != nil {
			return syncer.OutcomeQueued, err
		}
		if err := r.cache.Purge(ctx, model.EntityChatMessage, msg.ID); err != nil {
			return syncer.OutcomeQueued, err
		}
	}
	if err := r.cache.MarkDeleted(ctx, model.EntityChatSession, id, r.clock()); err != nil {
		return syncer.OutcomeQueued, err
	}

	m, err := model.NewMutation(model.OpDelete, model.EntityChatSession, id, nil)
	if err != nil {
		return syncer.OutcomeQueued, err
	}
	return r.sync.Apply(ctx, m)
}
