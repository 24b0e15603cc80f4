package notification

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roombooking/internal/domain"
	"roombooking/internal/modules/roomloan"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

// client is one websocket subscriber and the loans it is allowed to see.
type client struct {
	actor domain.Actor
	scope roomloan.Scope
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans loan events out to connected websocket clients. It implements
// roomloan.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Publish delivers ev to every client whose scope allows the loan. Slow
// clients miss events instead of blocking the caller.
func (h *Hub) Publish(ev roomloan.LoanEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notification_encode_failed type=%s loan_id=%d error=%q", ev.Type, ev.Loan.ID, err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.scope.Allows(&ev.Loan) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("notification_dropped user_id=%d type=%s loan_id=%d", c.actor.UserID, ev.Type, ev.Loan.ID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// serve registers conn for actor and blocks until the client disconnects.
func (h *Hub) serve(conn *websocket.Conn, actor domain.Actor) {
	c := &client{
		actor: actor,
		scope: roomloan.ScopeFor(actor),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// readPump only drains control frames; clients never send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws_read_error user_id=%d error=%q", c.actor.UserID, err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			return origin == "" || allowed[origin]
		},
	}
}
