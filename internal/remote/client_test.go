package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentx/assistant-core/internal/model"
)

func testTask(title string) *model.Task {
	return &model.Task{
		Meta:     model.Meta{ID: -1, LastUpdated: time.Now().UTC()},
		Title:    title,
		Priority: model.PriorityMedium,
		Tags:     []string{},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, StaticToken("secret-token"), time.Second, nil)
	return client, srv
}

func TestCreate_DecodesServerID(t *testing.T) {
	key := uuid.New()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Errorf("got %s %s, want POST /api/tasks", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Idempotency-Key"); got != key.String() {
			t.Errorf("X-Idempotency-Key = %q, want %q", got, key)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["title"] != "from client" {
			t.Errorf("body title = %v", body["title"])
		}
		if _, hasID := body["id"]; hasID {
			t.Error("create body must not carry the local id")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 321}`)
	})

	id, err := client.Create(context.Background(), model.EntityTask, key, testTask("from client"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if id != 321 {
		t.Errorf("Create() id = %d, want 321", id)
	}
}

func TestCreate_RejectsInvalidServerID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 0}`)
	})

	_, err := client.Create(context.Background(), model.EntityTask, uuid.New(), testTask("x"))
	if err == nil {
		t.Error("Create() accepted a zero server id")
	}
}

func TestDo_UnauthorizedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		err := client.Delete(context.Background(), model.EntityTask, 5)
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("status %d: error = %v, want ErrUnauthorized", status, err)
		}
	}
}

func TestDo_SurfacesAPIErrorDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail": "title too long"}`)
	})

	err := client.Update(context.Background(), model.EntityTask, 5, testTask("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 422 || apiErr.Message != "title too long" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if IsTransient(err) {
		t.Error("422 classified as transient")
	}
	if !IsRejection(err) {
		t.Error("422 not classified as rejection")
	}
}

func TestDo_NoCredentialShortCircuits(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	client.tokens = StaticToken("")

	err := client.Delete(context.Background(), model.EntityTask, 5)
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
	if called {
		t.Error("request was sent without a credential")
	}
}

func TestIsTransient_Classification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&APIError{StatusCode: 500}, true},
		{&APIError{StatusCode: 503}, true},
		{&APIError{StatusCode: 408}, true},
		{&APIError{StatusCode: 429}, true},
		{&APIError{StatusCode: 400}, false},
		{&APIError{StatusCode: 404}, false},
		{&APIError{StatusCode: 422}, false},
		{ErrUnauthorized, false},
		{ErrNoCredential, false},
		{errors.New("connection refused"), true},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestListTasks_DecodesCollection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tasks" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 1, "title": "a"}, {"id": 2, "title": "b"}]`)
	})

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].Title != "b" {
		t.Errorf("ListTasks() = %+v", tasks)
	}
}

func TestWirePayload_RejectsTempSessionReference(t *testing.T) {
	msg := &model.ChatMessage{
		Meta:      model.Meta{ID: -2, LastUpdated: time.Now()},
		SessionID: -1,
		Role:      model.RoleUser,
		Content:   "hi",
		CreatedAt: time.Now(),
	}
	if _, err := wirePayload(msg); err == nil {
		t.Error("wirePayload() accepted a message with a temporary session id")
	}
}
