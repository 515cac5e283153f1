package websocket

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
)

// Hub manages WebSocket connections
type Hub struct {
	clients          map[*Client]bool
	clientsBySession map[string]map[*Client]bool
	watchers         map[*Client]bool
	broadcast        chan models.WebSocketMessage
	register         chan *Client
	unregister       chan *Client
	allowedOrigins   map[string]bool
	running          bool
	mu               sync.RWMutex
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan models.WebSocketMessage
	sessionID string
	isWatcher bool // true for connections that follow every session
}

// NewHub creates a new WebSocket hub. An empty origin list accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &Hub{
		clients:          make(map[*Client]bool),
		clientsBySession: make(map[string]map[*Client]bool),
		watchers:         make(map[*Client]bool),
		broadcast:        make(chan models.WebSocketMessage, 256),
		register:         make(chan *Client, 256),
		unregister:       make(chan *Client, 256),
		allowedOrigins:   origins,
		running:          false,
	}
}

// Start starts the WebSocket hub
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}

	h.running = true
	go h.run()
	logrus.Info("WebSocket hub started")
}

// Stop stops the WebSocket hub
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}

	h.running = false
	close(h.broadcast)
	close(h.register)
	close(h.unregister)
	logrus.Info("WebSocket hub stopped")
}

// run runs the WebSocket hub
func (h *Hub) run() {
	for {
		select {
		case client, ok := <-h.register:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			h.mu.Lock()
			h.clients[client] = true
			if client.isWatcher {
				h.watchers[client] = true
				logrus.Debugf("WebSocket watcher registered")
			} else {
				if h.clientsBySession[client.sessionID] == nil {
					h.clientsBySession[client.sessionID] = make(map[*Client]bool)
				}
				h.clientsBySession[client.sessionID][client] = true
				logrus.Debugf("WebSocket client registered for session %s", client.sessionID)
			}
			h.mu.Unlock()

		case client, ok := <-h.unregister:
			if !ok {
				return
			}
			if client == nil {
				continue
			}
			h.mu.Lock()
			h.removeUnsafe(client)
			h.mu.Unlock()

		case message, ok := <-h.broadcast:
			if !ok {
				return
			}
			h.mu.Lock()
			for client := range h.clientsBySession[message.SessionID] {
				h.deliverUnsafe(client, message)
			}
			// Watchers get every message
			for client := range h.watchers {
				h.deliverUnsafe(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliverUnsafe queues message for client, dropping clients that fall behind
// (caller must hold lock)
func (h *Hub) deliverUnsafe(client *Client, message models.WebSocketMessage) {
	select {
	case client.send <- message:
	default:
		logrus.Warnf("WebSocket client for session %q is too slow, disconnecting", client.sessionID)
		h.removeUnsafe(client)
	}
}

// removeUnsafe forgets a client and closes its send channel once
// (caller must hold lock)
func (h *Hub) removeUnsafe(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if client.isWatcher {
		delete(h.watchers, client)
		logrus.Debugf("WebSocket watcher unregistered")
		return
	}
	if sessionClients, ok := h.clientsBySession[client.sessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clientsBySession, client.sessionID)
		}
	}
	logrus.Debugf("WebSocket client unregistered for session %s", client.sessionID)
}

// BroadcastToSession sends a message to the clients of its session and to
// all watchers
func (h *Hub) BroadcastToSession(message models.WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.running {
		return
	}

	select {
	case h.broadcast <- message:
	default:
		logrus.Warn("WebSocket broadcast channel full, dropping message")
	}
}

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(h.allowedOrigins) == 0 {
				return true
			}
			return h.allowedOrigins[r.Header.Get("Origin")]
		},
	}
}

// ServeWs handles WebSocket connections for a single session
func (h *Hub) ServeWs(c *gin.Context, sessionID string) {
	h.serve(c, sessionID, false)
}

// ServeWatcherWs handles WebSocket connections that follow every session
func (h *Hub) ServeWatcherWs(c *gin.Context) {
	h.serve(c, "", true)
}

func (h *Hub) serve(c *gin.Context, sessionID string, watcher bool) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan models.WebSocketMessage, 256),
		sessionID: sessionID,
		isWatcher: watcher,
	}

	h.mu.RLock()
	running := h.running
	if running {
		h.register <- client
	}
	h.mu.RUnlock()

	if !running {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			logrus.Errorf("Failed to write WebSocket message: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains the WebSocket connection until it closes
func (c *Client) readPump() {
	defer func() {
		c.hub.mu.RLock()
		if c.hub.running {
			c.hub.unregister <- c
		}
		c.hub.mu.RUnlock()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error: %v", err)
			}
			break
		}
		// Clients only listen; anything they send is ignored
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSessionClientCount returns the number of clients connected to a session
func (h *Hub) GetSessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sessionClients, ok := h.clientsBySession[sessionID]; ok {
		return len(sessionClients)
	}
	return 0
}
