package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"chainvault-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of this.
		return true
	},
}

// Connection one websocket subscriber
type Connection struct {
	ID       string          `json:"id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage envelope for every outbound push
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// OperationUpdateData payload pushed on every pending-operation transition
type OperationUpdateData struct {
	Operation models.PendingOperation `json:"operation"`
}

// WebSocketPushService fan-out hub pushing operation status transitions
// to connected clients
type WebSocketPushService struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	stopCh      chan struct{}
	running     bool
}

// NewWebSocketPushService creates a new WebSocketPushService
func NewWebSocketPushService() *WebSocketPushService {
	return &WebSocketPushService{
		connections: make(map[string]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stopCh:      make(chan struct{}),
	}
}

// Start runs the hub loop
func (s *WebSocketPushService) Start() {
	if s.running {
		return
	}
	s.running = true
	go s.run()
	log.Printf("WebSocketPushService started")
}

// Stop closes every connection and stops the hub
func (s *WebSocketPushService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// HandleWebSocket upgrades the HTTP request and registers the connection
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, 64),
		LastPing: time.Now(),
	}
	s.register <- c

	go s.writePump(c)
	go s.readPump(c)
}

// BroadcastOperationUpdate pushes one operation transition to every client.
// Wired as the orchestrator's push hook.
func (s *WebSocketPushService) BroadcastOperationUpdate(op *models.PendingOperation) {
	msg := PushMessage{
		Type:      "operation_update",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Data:      OperationUpdateData{Operation: *op},
	}
	select {
	case s.hub <- msg:
	default:
		log.Printf("Push hub full, dropping operation update %s", op.MessageID)
	}
}

// ConnectionCount currently registered clients
func (s *WebSocketPushService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case c := <-s.register:
			s.mu.Lock()
			s.connections[c.ID] = c
			s.mu.Unlock()
			log.Printf("WebSocket client connected: %s", c.ID)

		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[c.ID]; ok {
				delete(s.connections, c.ID)
				close(c.Send)
			}
			s.mu.Unlock()
			log.Printf("WebSocket client disconnected: %s", c.ID)

		case msg := <-s.hub:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal push message: %v", err)
				continue
			}
			s.mu.RLock()
			for _, c := range s.connections {
				select {
				case c.Send <- data:
				default:
					// Slow client; skip rather than block the hub.
				}
			}
			s.mu.RUnlock()

		case <-s.stopCh:
			s.mu.Lock()
			for id, c := range s.connections {
				close(c.Send)
				_ = c.Conn.Close()
				delete(s.connections, id)
			}
			s.mu.Unlock()
			return
		}
	}
}

func (s *WebSocketPushService) writePump(c *Connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) readPump(c *Connection) {
	defer func() {
		s.unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
