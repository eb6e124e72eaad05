package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to WebSocket clients.
const (
	EventBatchStarted  = "batch_started"
	EventTickerDone    = "ticker_done"
	EventBatchFinished = "batch_finished"
	EventPong          = "pong"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// TickerEvent is the payload of EventTickerDone.
type TickerEvent struct {
	Ticker      string `json:"ticker"`
	RunID       string `json:"run_id,omitempty"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	RiskScore   *int   `json:"risk_score,omitempty"`
	HealthScore *int   `json:"health_score,omitempty"`
}

// BatchEvent is the payload of EventBatchFinished.
type BatchEvent struct {
	RunID     string `json:"run_id,omitempty"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// ============================================================
// Hub
// ============================================================

// Hub fans broadcast messages out to connected clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[*Client]struct{}
	broadcast chan WSMessage
}

// Client is one WebSocket connection's outbound queue.
type Client struct {
	send chan WSMessage
}

// NewHub creates a hub. Call Run to start delivery.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan WSMessage, 256),
	}
}

// Run delivers broadcasts until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; disconnect.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Broadcast queues msg for all clients. Messages are dropped when the
// queue is full.
func (h *Hub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// Register adds a new client and returns it.
func (h *Hub) Register() *Client {
	c := &Client{send: make(chan WSMessage, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unregister removes c and closes its queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ============================================================
// WebSocket transport
// ============================================================

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the CORS configuration of the deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// handleWebSocket upgrades the connection and streams hub broadcasts.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := s.hub.Register()
	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump answers client pings and detects disconnects.
func (s *Server) wsReadPump(conn *websocket.Conn, client *Client) {
	defer func() {
		s.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			s.reply(client, WSMessage{Type: EventPong})
		}
	}
}

// reply queues msg for one client unless it has been unregistered.
func (s *Server) reply(c *Client, msg WSMessage) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// wsWritePump writes queued messages and keepalive pings.
func (s *Server) wsWritePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
