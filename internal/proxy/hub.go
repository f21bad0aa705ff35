package proxy

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/standardbeagle/gnm/internal/debug"
)

// Signal types pushed to page clients.
const (
	SignalRefresh = "refresh"
	SignalToggle  = "toggle"
)

// Signal is a message broadcast on the events channel.
type Signal struct {
	Type    string `json:"type"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// RefreshSignal asks pages to re-pull the dictionary and rescan.
func RefreshSignal() Signal {
	return Signal{Type: SignalRefresh}
}

// ToggleSignal tells pages the master switch changed.
func ToggleSignal(enabled bool) Signal {
	return Signal{Type: SignalToggle, Enabled: &enabled}
}

const (
	writeWait    = 10 * time.Second
	clientBuffer = 16
)

type hubClient struct {
	conn *websocket.Conn
	send chan Signal
}

// Hub fans signals out to every connected page.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	closed  bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("hub", "upgrade failed: %v", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan Signal, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	debug.Log("hub", "client connected from %s", r.RemoteAddr)

	go h.writeLoop(c)

	// Pages never send on this channel; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *hubClient) {
	for sig := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(sig); err != nil {
			debug.Log("hub", "write failed: %v", err)
			c.conn.Close()
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.conn.Close()
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues sig for every client. A client whose queue is full misses
// the signal.
func (h *Hub) Broadcast(sig Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- sig:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
	debug.Log("hub", "broadcast %s to %d client(s)", sig.Type, len(h.clients))
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
