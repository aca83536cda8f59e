package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HeartbeatEvent is the payload of a "heartbeat" message.
type HeartbeatEvent struct {
	MonitorID        string           `json:"monitor_id"`
	Name             string           `json:"name"`
	Status           string           `json:"status"`
	Heartbeat        models.Heartbeat `json:"heartbeat"`
	IncidentOpened   *models.Incident `json:"incident_opened,omitempty"`
	IncidentResolved *models.Incident `json:"incident_resolved,omitempty"`
}

// SubscribePayload selects monitors for "subscribe" and "unsubscribe".
type SubscribePayload struct {
	MonitorIDs []string `json:"monitor_ids"`
}

type outbound struct {
	monitorID string
	data      []byte
}

// Client represents a WebSocket client
type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	mu   sync.RWMutex
	subs map[string]bool // empty means every monitor
}

func (c *Client) wants(monitorID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[monitorID]
}

// Hub maintains active clients and broadcasts check events
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan outbound
	register       chan *Client
	unregister     chan *Client
	mu             sync.RWMutex
	token          string
	allowedOrigins []string
	log            *zap.Logger
	done           chan struct{}
}

// NewHub creates a new Hub. A non-empty token is required from clients as a
// bearer header or "token" query parameter.
func NewHub(token string, allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan outbound, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		token:          token,
		allowedOrigins: allowedOrigins,
		log:            log,
		done:           make(chan struct{}),
	}
}

// Run dispatches messages until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.String("client", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("websocket client disconnected", zap.String("client", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.monitorID) {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					// Slow consumer.
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CheckRecorded broadcasts a heartbeat message. It never blocks; events are
// dropped when the hub is saturated.
func (h *Hub) CheckRecorded(event engine.CheckEvent) {
	data, err := encode("heartbeat", HeartbeatEvent{
		MonitorID:        event.Monitor.ID,
		Name:             event.Monitor.Name,
		Status:           event.Monitor.Status,
		Heartbeat:        event.Heartbeat,
		IncidentOpened:   event.Opened,
		IncidentResolved: event.Resolved,
	})
	if err != nil {
		h.log.Error("failed to encode websocket event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- outbound{monitorID: event.Monitor.ID, data: data}:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", zap.String("monitor_id", event.Monitor.ID))
	}
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: payloadJSON})
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}

// HandleWebSocket handles WebSocket connections. It blocks until the client
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.log.Warn("websocket connection rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.allowedOrigins}
	for _, o := range h.allowedOrigins {
		if o == "*" {
			opts = &websocket.AcceptOptions{InsecureSkipVerify: true}
			break
		}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   r.RemoteAddr,
		Conn: conn,
		Hub:  h,
		Send: make(chan []byte, 256),
		subs: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go client.writePump(r.Context())
	client.readPump(r.Context())
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, message, err := c.Conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				c.Hub.log.Debug("websocket read ended", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Hub.log.Debug("failed to parse websocket message", zap.Error(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump(ctx context.Context) {
	for message := range c.Send {
		if err := c.Conn.Write(ctx, websocket.MessageText, message); err != nil {
			return
		}
	}
	// Closed by the hub.
	c.Conn.Close(websocket.StatusGoingAway, "")
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "subscribe", "unsubscribe":
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c.mu.Lock()
		for _, id := range p.MonitorIDs {
			if msg.Type == "subscribe" {
				c.subs[id] = true
			} else {
				delete(c.subs, id)
			}
		}
		c.mu.Unlock()
	case "ping":
		response, _ := encode("pong", struct{}{})
		c.send(response)
	default:
		c.Hub.log.Debug("unknown websocket message type", zap.String("type", msg.Type))
	}
}

// send queues data without blocking; the hub may have closed Send already.
func (c *Client) send(data []byte) {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
