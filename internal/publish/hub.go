package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/forceplate.report/internal/forceplate/realtime"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from other origins on the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts session output to every connected websocket client and
// applies corrections the clients send back. A client that cannot keep up
// misses messages.
type Hub struct {
	apply ApplyFunc

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a hub. apply may be nil, in which case corrections are
// answered with an error.
func NewHub(apply ApplyFunc) *Hub {
	return &Hub{apply: apply, clients: make(map[*wsClient]struct{})}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("hub: websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			monitoring.Debugf("hub: write error: %v", err)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	defer h.remove(c)
	for {
		var corr realtime.Correction
		if err := c.conn.ReadJSON(&corr); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				monitoring.Logf("hub: websocket error: %v", err)
			}
			return
		}
		reply := Envelope{Type: TypeAck, Data: corr}
		switch {
		case h.apply == nil:
			reply = Envelope{Type: TypeError, Data: "corrections are not accepted"}
		default:
			if err := h.apply(ctx, corr); err != nil {
				reply = Envelope{Type: TypeError, Data: err.Error()}
			}
		}
		h.sendTo(c, reply)
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) sendTo(c *wsClient, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		monitoring.Logf("hub: marshal %s: %v", env.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) broadcast(kind string, v any) error {
	msg, err := json.Marshal(Envelope{Type: kind, Data: v})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			monitoring.Debugf("hub: dropped %s for slow client", kind)
		}
	}
	return nil
}

func (h *Hub) Snapshot(s realtime.Snapshot) error { return h.broadcast(TypeSnapshot, s) }

func (h *Hub) Feedback(f realtime.Feedback) error { return h.broadcast(TypeFeedback, f) }

func (h *Hub) Quality(q realtime.QualityAssessment) error { return h.broadcast(TypeQuality, q) }

func (h *Hub) Trial(t realtime.TrialResult) error { return h.broadcast(TypeTrial, t) }

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
