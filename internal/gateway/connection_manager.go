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

	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

// EventHandler receives inbound client traffic from the connection manager.
// The manager itself stays transport-only: it never inspects payloads.
type EventHandler interface {
	HandleMessage(connID uuid.UUID, data []byte)
	HandleDisconnect(connID uuid.UUID)
}

// ConnectionManager owns every WebSocket connection and the per-room
// delivery pools. It implements the coordinator's Broadcaster.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
	roomPools   map[uuid.UUID]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  EventHandler

	broadcastCh chan broadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID      uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	// The coordinator must be signalled exactly once per transport loss,
	// before the connection's resources are released.
	disconnectOnce sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage is one queued delivery. A zero roomID means unicast to
// connID; otherwise the message fans out to the room pool, skipping exclude
// when set.
type broadcastMessage struct {
	roomID  uuid.UUID
	connID  uuid.UUID
	exclude uuid.UUID
	data    []byte
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uuid.UUID]*Connection),
		roomPools:   make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetHandler installs the inbound event handler. Must be called before the
// first upgrade.
func (cm *ConnectionManager) SetHandler(handler EventHandler) {
	cm.handler = handler
}

// Start begins processing queued deliveries until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.deliver(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// registers it. Room membership is assigned later, when the client sends a
// join event.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return uuid.Nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.connections[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection.ID, nil
}

// Unicast queues an event for a single connection.
func (cm *ConnectionManager) Unicast(connID uuid.UUID, event *events.Envelope) {
	cm.enqueue(broadcastMessage{connID: connID, data: marshalEvent(event)})
}

// Broadcast queues an event for every connection in a room.
func (cm *ConnectionManager) Broadcast(roomID uuid.UUID, event *events.Envelope) {
	cm.enqueue(broadcastMessage{roomID: roomID, data: marshalEvent(event)})
}

// BroadcastExcept queues an event for every connection in a room except one,
// typically the sender.
func (cm *ConnectionManager) BroadcastExcept(roomID, exclude uuid.UUID, event *events.Envelope) {
	cm.enqueue(broadcastMessage{roomID: roomID, exclude: exclude, data: marshalEvent(event)})
}

// JoinRoom adds a connection to a room's delivery pool.
func (cm *ConnectionManager) JoinRoom(connID, roomID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.connections[connID]
	if !ok {
		return
	}
	if cm.roomPools[roomID] == nil {
		cm.roomPools[roomID] = make(map[*Connection]bool)
	}
	cm.roomPools[roomID][conn] = true
}

// LeaveRoom removes a connection from a room's delivery pool.
func (cm *ConnectionManager) LeaveRoom(connID, roomID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pool, ok := cm.roomPools[roomID]
	if !ok {
		return
	}
	for conn := range pool {
		if conn.ID == connID {
			delete(pool, conn)
			break
		}
	}
	if len(pool) == 0 {
		delete(cm.roomPools, roomID)
	}
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"active_rooms":      len(cm.roomPools),
	}
}

func marshalEvent(event *events.Envelope) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event")
		return nil
	}
	return data
}

func (cm *ConnectionManager) enqueue(message broadcastMessage) {
	if message.data == nil {
		return
	}
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Msg("broadcast channel full, dropping message")
	}
}

// deliver fans a queued message out to its targets. Slow or dead
// connections are closed rather than allowed to stall the room.
func (cm *ConnectionManager) deliver(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.roomID == uuid.Nil {
		if conn, ok := cm.connections[message.connID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.roomPools[message.roomID] {
			if message.exclude != uuid.Nil && conn.ID == message.exclude {
				continue
			}
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- message.data:
		default:
			log.Warn().
				Str("connection_id", conn.ID.String()).
				Msg("connection send buffer full, closing connection")
			conn.Conn.Close()
		}
	}
}

// unregisterConnection removes a connection from the registry and every room
// pool it belongs to.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.connections[conn.ID]; !ok {
		return
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	for roomID, pool := range cm.roomPools {
		if pool[conn] {
			delete(pool, conn)
			if len(pool) == 0 {
				delete(cm.roomPools, roomID)
			}
		}
	}

	log.Info().
		Str("connection_id", conn.ID.String()).
		Msg("connection unregistered")
}

// signalDisconnect notifies the coordinator of transport loss, exactly once,
// synchronously, before resources are released.
func (c *Connection) signalDisconnect() {
	c.disconnectOnce.Do(func() {
		if c.manager.handler != nil {
			c.manager.handler.HandleDisconnect(c.ID)
		}
	})
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID.String()).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.signalDisconnect()
		c.manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID.String()).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.manager.handler != nil {
			c.manager.handler.HandleMessage(c.ID, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
