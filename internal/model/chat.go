package model

import (
	"fmt"
	"time"
)

// ChatSession groups the messages of one conversation with an agent.
type ChatSession struct {
	Meta

	Title     string    `json:"title"`
	AgentName string    `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements Payload.
func (s *ChatSession) EntityType() EntityType { return EntityChatSession }

// Validate checks field values before the session is written to the cache.
func (s *ChatSession) Validate() error {
	if err := validateID(s.ID); err != nil {
		return err
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if s.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated is required")
	}
	return nil
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn inside a session.
//
// SessionID references ChatSession.ID by value, not by an enforced foreign
// key. This is the relationship that makes identifier remapping
// transactional: when a session's temporary ID becomes a server ID, every
// message carrying the old SessionID must be rewritten with it.
type ChatMessage struct {
	Meta

	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements Payload.
func (m *ChatMessage) EntityType() EntityType { return EntityChatMessage }

// Validate checks field values before the message is written to the cache.
func (m *ChatMessage) Validate() error {
	if err := validateID(m.ID); err != nil {
		return err
	}
	if m.SessionID == 0 {
		return fmt.Errorf("session_id is required")
	}
	switch m.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("role must be user or assistant (got %q)", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("content is required")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if m.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated is required")
	}
	return nil
}
