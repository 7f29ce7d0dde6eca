// Package remote implements the REST client for the assistant backend.
//
// The backend accepts CRUD requests per entity type and returns a
// canonical identifier on create. Serialization to the wire format is
// isolated here: the rest of the module only ever sees the typed entities
// of the model package.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agentx/assistant-core/internal/model"
	"github.com/google/uuid"
)

// Client talks to the assistant backend.
//
// Every request carries a bearer credential from the token source and, for
// mutations, an X-Idempotency-Key header so interrupted replays cannot
// duplicate server records.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
}

// NewClient creates a backend client. Timeout bounds every call; on
// timeout the mutation falls back to the queued state exactly as a hard
// failure would.
//
// If logger is nil, a default logger writing to stderr is used.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// pathFor maps an entity type to its REST collection path.
func pathFor(entityType model.EntityType) (string, error) {
	switch entityType {
	case model.EntityTask:
		return "/api/tasks", nil
	case model.EntityEvent:
		return "/api/events", nil
	case model.EntityChatSession:
		return "/api/chat/sessions", nil
	case model.EntityChatMessage:
		return "/api/chat/messages", nil
	}
	return "", fmt.Errorf("unknown entity type %q", entityType)
}

// createResponse is the backend's reply to a create.
type createResponse struct {
	ID int64 `json:"id"`
}

// Create posts a new record and returns the server-assigned identifier.
// The temporary local id is never part of the body; the idempotency key is
// the record's identity until the server replies.
func (c *Client) Create(ctx context.Context, entityType model.EntityType, key uuid.UUID, payload model.Payload) (int64, error) {
	path, err := pathFor(entityType)
	if err != nil {
		return 0, err
	}

	body, err := wirePayload(payload)
	if err != nil {
		return 0, err
	}

	var reply createResponse
	if err := c.do(ctx, http.MethodPost, path, key.String(), body, &reply); err != nil {
		return 0, err
	}
	if reply.ID <= 0 {
		return 0, fmt.Errorf("backend returned invalid id %d for created %s", reply.ID, entityType)
	}

	c.logger.Printf("Created %s: server id %d", entityType, reply.ID)
	return reply.ID, nil
}

// Update replaces the record's server-side state.
func (c *Client) Update(ctx context.Context, entityType model.EntityType, id int64, payload model.Payload) error {
	path, err := pathFor(entityType)
	if err != nil {
		return err
	}

	body, err := wirePayload(payload)
	if err != nil {
		return err
	}

	return c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", path, id), "", body, nil)
}

// Delete removes the record server-side.
func (c *Client) Delete(ctx context.Context, entityType model.EntityType, id int64) error {
	path, err := pathFor(entityType)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", path, id), "", nil, nil)
}

// ListTasks fetches all tasks from the backend.
func (c *Client) ListTasks(ctx context.Context) ([]*model.Task, error) {
	var out []*model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents fetches all events from the backend.
func (c *Client) ListEvents(ctx context.Context) ([]*model.Event, error) {
	var out []*model.Event
	if err := c.do(ctx, http.MethodGet, "/api/events", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do executes one request with auth, encodes body, and decodes reply.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, reply interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if reply != nil {
		if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// readErrorMessage extracts a short error detail from a failure body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(data) == 0 {
		return ""
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return strings.TrimSpace(string(data))
}
