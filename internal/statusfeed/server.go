// Package statusfeed provides a real-time WebSocket feed of sync
// activity.
//
// The feed broadcasts connectivity transitions, queue depth changes,
// reconciliation results, and per-record updates to connected clients,
// so a UI can reflect sync state without polling the cache.
package statusfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/syncer"
)

// MessageType identifies a feed message.
type MessageType string

const (
	// MessageTypeSyncState reports an online/offline transition.
	MessageTypeSyncState MessageType = "sync_state"

	// MessageTypeQueueStats reports the pending mutation count.
	MessageTypeQueueStats MessageType = "queue_stats"

	// MessageTypeReconcileComplete reports the result of a replay pass.
	MessageTypeReconcileComplete MessageType = "reconcile_complete"

	// MessageTypeEntityUpdate reports a record reaching the backend.
	MessageTypeEntityUpdate MessageType = "entity_update"

	// MessageTypeStatus carries a full status snapshot, sent once on
	// connect.
	MessageTypeStatus MessageType = "status"
)

// Message is the wire envelope for feed broadcasts.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncStateData reports connectivity.
type SyncStateData struct {
	Online bool `json:"online"`
}

// QueueStatsData reports queue depth.
type QueueStatsData struct {
	Pending int `json:"pending"`
}

// ReconcileCompleteData summarizes a replay pass.
type ReconcileCompleteData struct {
	Replayed  int    `json:"replayed"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

// EntityUpdateData reports a record change confirmed by the backend.
type EntityUpdateData struct {
	EntityType model.EntityType `json:"entity_type"`
	ID         int64            `json:"id"`
	Action     string           `json:"action"` // created, updated, deleted
}

// StatusProvider supplies the snapshot sent to newly connected
// clients. *syncer.Coordinator satisfies it.
type StatusProvider interface {
	Status(ctx context.Context) (syncer.Status, error)
}

// Server manages WebSocket connections and broadcasts feed messages.
// It implements syncer.Notifier.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	status   StatusProvider

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a feed server listening on addr (host:port). The
// status provider may be nil; connecting clients then get no snapshot.
func NewServer(addr string, status StatusProvider, logger *log.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8787"
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[statusfeed] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      addr,
		status:    status,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start begins listening and serving the feed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("status feed listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and disconnects all clients.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("feed shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// SyncState implements syncer.Notifier.
func (s *Server) SyncState(online bool) {
	s.publish(MessageTypeSyncState, SyncStateData{Online: online})
}

// QueueStats implements syncer.Notifier.
func (s *Server) QueueStats(pending int) {
	s.publish(MessageTypeQueueStats, QueueStatsData{Pending: pending})
}

// ReconcileComplete implements syncer.Notifier.
func (s *Server) ReconcileComplete(replayed, remaining int, err error) {
	data := ReconcileCompleteData{Replayed: replayed, Remaining: remaining}
	if err != nil {
		data.Error = err.Error()
	}
	s.publish(MessageTypeReconcileComplete, data)
}

// EntityUpdate implements syncer.Notifier.
func (s *Server) EntityUpdate(entityType model.EntityType, id int64, action string) {
	s.publish(MessageTypeEntityUpdate, EntityUpdateData{
		EntityType: entityType,
		ID:         id,
		Action:     action,
	})
}

// publish queues a broadcast without ever blocking the caller; the
// coordinator calls the Notifier methods inline during replay.
func (s *Server) publish(typ MessageType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("failed to marshal %s: %v", typ, err)
		return
	}
	msg := Message{Type: typ, Timestamp: time.Now(), Data: raw}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("broadcast channel full, dropping %s", typ)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the lock; a slow client is evicted rather
			// than allowed to stall the feed.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("client connected (total: %d)", clientCount)

	if s.status != nil {
		s.sendSnapshot(r.Context(), conn)
	}

	go s.readLoop(conn)
}

// sendSnapshot gives a new client the current sync picture so it need
// not wait for the next broadcast.
func (s *Server) sendSnapshot(ctx context.Context, conn *websocket.Conn) {
	snapshot, err := s.status.Status(ctx)
	if err != nil {
		s.logger.Printf("failed to read status snapshot: %v", err)
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	msg := Message{Type: MessageTypeStatus, Timestamp: time.Now(), Data: raw}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, data)
}

// readLoop keeps the connection alive and notices client disconnects.
// Client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
