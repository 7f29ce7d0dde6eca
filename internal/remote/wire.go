package remote

import (
	"fmt"
	"time"

	"github.com/agentx/assistant-core/internal/model"
)

// Wire DTOs. These deliberately exclude the local sync bookkeeping (id,
// is_synced, is_deleted, last_updated): the backend assigns identity on
// create, and the sync flags mean nothing to it.

type taskWire struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"is_completed"`
	Progress    float64    `json:"progress"`
	Tags        []string   `json:"tags,omitempty"`
}

type eventWire struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Category    string     `json:"category,omitempty"`
	Priority    string     `json:"priority"`
	Location    string     `json:"location,omitempty"`
}

type sessionWire struct {
	Title     string    `json:"title"`
	AgentName string    `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWire struct {
	SessionID int64     `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// wirePayload converts a typed payload into its wire DTO.
//
// A chat message's SessionID is the one live foreign key on the wire; by
// replay time it has already been remapped to a server id.
func wirePayload(p model.Payload) (interface{}, error) {
	switch v := p.(type) {
	case *model.Task:
		return &taskWire{
			Title:       v.Title,
			Description: v.Description,
			Priority:    v.Priority,
			Category:    v.Category,
			DueDate:     v.DueDate,
			Completed:   v.Completed,
			Progress:    v.Progress,
			Tags:        v.Tags,
		}, nil
	case *model.Event:
		return &eventWire{
			Title:       v.Title,
			Description: v.Description,
			StartTime:   v.StartTime,
			EndTime:     v.EndTime,
			Category:    v.Category,
			Priority:    v.Priority,
			Location:    v.Location,
		}, nil
	case *model.ChatSession:
		return &sessionWire{
			Title:     v.Title,
			AgentName: v.AgentName,
			CreatedAt: v.CreatedAt,
		}, nil
	case *model.ChatMessage:
		if model.IsTemp(v.SessionID) {
			return nil, fmt.Errorf("chat message still references temporary session id %d", v.SessionID)
		}
		return &messageWire{
			SessionID: v.SessionID,
			Role:      v.Role,
			Content:   v.Content,
			CreatedAt: v.CreatedAt,
		}, nil
	}
	return nil, fmt.Errorf("unknown payload type %T", p)
}
