package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages the WebSocket connections of local viewers
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader   websocket.Upgrader
	config     ConnectionConfig
	controller Controller
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	ActionTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		// Scoring waits on the model.
		ActionTimeout:   60 * time.Second,
		// Answers can be long transcripts.
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, controller Controller) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:     config,
		controller: controller,
	}
}

// Start pushes every replica snapshot to connected clients until ctx is
// cancelled or the snapshot stream closes.
func (cm *ConnectionManager) Start(ctx context.Context) {
	updates, unsubscribe := cm.controller.Subscribe()
	defer unsubscribe()

	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case snap, ok := <-updates:
			if !ok {
				log.Info().Msg("snapshot stream closed")
				cm.closeAll()
				return
			}
			cm.Broadcast(ServerMessage{Type: MessageTypeSnapshot, Snapshot: &snap})
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and sends the
// current snapshot
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 64),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	if snap, err := cm.controller.Snapshot(r.Context()); err == nil {
		connection.send(ServerMessage{Type: MessageTypeSnapshot, Snapshot: &snap})
	} else {
		log.Warn().Err(err).Str("connection_id", connection.ID).Msg("failed to load initial snapshot")
	}

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; exists {
		delete(cm.connections, conn)
		close(conn.Send)
		log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for conn := range cm.connections {
		delete(cm.connections, conn)
		close(conn.Send)
	}
}

// Broadcast sends msg to every connection. Connections whose send buffer
// is full are closed.
func (cm *ConnectionManager) Broadcast(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !conn.trySend(data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// ConnectionCount returns the number of open connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// trySend queues data unless the connection has been unregistered or its
// buffer is full.
func (c *Connection) trySend(data []byte) bool {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}
	c.trySend(data)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client actions until the connection closes
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage runs the action a client sent. Failures are reported
// back to that client only.
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.send(ServerMessage{Type: MessageTypeError, Error: "invalid message"})
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("action", string(msg.Action)).
		Msg("received client action")

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.ActionTimeout)
	defer cancel()
	if err := Dispatch(ctx, c.Manager.controller, msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("action", string(msg.Action)).
			Msg("client action failed")
		c.send(ServerMessage{Type: MessageTypeError, Action: msg.Action, Error: err.Error()})
	}
}
