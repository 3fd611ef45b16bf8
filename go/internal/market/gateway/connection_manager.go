// Package gateway pushes session events to websocket clients.
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
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/rs/zerolog/log"
)

// Presence records member liveness. It fails when the member may not follow
// the session.
type Presence interface {
	Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID) error
}

// ConnectionManager manages websocket connections grouped by session.
type ConnectionManager struct {
	sessions map[uuid.UUID]map[*Connection]bool
	mu       sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	presence Presence

	broadcastCh chan events.Event
}

// Connection is one client socket following a session.
type Connection struct {
	ID        string
	MemberID  uuid.UUID
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    15 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, presence Presence) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		presence:    presence,
		broadcastCh: make(chan events.Event, 1000),
	}
}

// Start fans queued events out until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return nil
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// Emit queues an event for the session's clients. A full queue drops it.
func (cm *ConnectionManager) Emit(_ context.Context, event events.Event) error {
	select {
	case cm.broadcastCh <- event:
		return nil
	default:
		log.Warn().Str("session_id", event.SessionID.String()).Msg("broadcast channel full, dropping message")
		return fmt.Errorf("broadcast channel full")
	}
}

// UpgradeConnection authorizes the member and upgrades the request.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, memberID, sessionID uuid.UUID) error {
	if err := cm.presence.Heartbeat(r.Context(), sessionID, memberID); err != nil {
		return err
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		MemberID:    memberID,
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("member_id", memberID.String()).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessions[conn.SessionID] == nil {
		cm.sessions[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessions[conn.SessionID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, ok := cm.sessions[conn.SessionID]
	if !ok || !connections[conn] {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.sessions, conn.SessionID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("member_id", conn.MemberID.String()).
		Str("session_id", conn.SessionID.String()).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessions {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

func (cm *ConnectionManager) handleBroadcast(event events.Event) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.sessions[event.SessionID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("member_id", conn.MemberID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("session_id", event.SessionID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats counts open connections per session.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveSessions   int            `json:"active_sessions"`
	Sessions         map[string]int `json:"sessions"`
}

func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	s := Stats{ActiveSessions: len(cm.sessions), Sessions: make(map[string]int, len(cm.sessions))}
	for id, connections := range cm.sessions {
		s.TotalConnections += len(connections)
		s.Sessions[id.String()] = len(connections)
	}
	return s
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
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
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump refreshes the member's heartbeat on every pong and client
// heartbeat message.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.beat()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}
	if msg.Type == "heartbeat" {
		c.beat()
	}
}

func (c *Connection) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.WriteTimeout)
	defer cancel()
	if err := c.Manager.presence.Heartbeat(ctx, c.SessionID, c.MemberID); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("heartbeat rejected")
	}
}
