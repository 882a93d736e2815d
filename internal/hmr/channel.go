package hmr

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocol is the fixed websocket subprotocol the client runtime
// requests; the upgrader selects it when the browser offers it and still
// accepts an upgrade that does not offer it.
const Subprotocol = "vite-hmr"

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{Subprotocol},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected browser tab. Every write to the underlying
// connection happens on send's single owning goroutine, so message order
// as seen by Broadcast calls is preserved even though callers may be
// arbitrary request/watcher goroutines.
type client struct {
	conn *websocket.Conn
	send chan *Message
	done chan struct{}
}

// Channel is the dev server's websocket hub: it tracks every connected
// client and fans a broadcast out to all of them. One Channel exists per
// running server.
type Channel struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	bufMu      sync.Mutex
	bufferedErr *Message
}

// NewChannel creates an empty hub.
func NewChannel() *Channel {
	return &Channel{clients: make(map[*client]struct{})}
}

// Upgrade handles a single GET /@vite/hmr request: it upgrades the
// connection, registers the client, flushes the greeting (and any error
// buffered while no client was connected, so the first client to
// connect after a build error receives it immediately), then blocks
// reading and discarding control frames until the connection closes.
func (h *Channel) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan *Message, 32), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)

	c.send <- Connected()
	h.bufMu.Lock()
	if h.bufferedErr != nil {
		c.send <- h.bufferedErr
		h.bufferedErr = nil
	}
	h.bufMu.Unlock()

	h.readLoop(c)
	return nil
}

func (h *Channel) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Channel) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			close(c.done)
			return
		}
		// every frame received, including the custom events the client
		// runtime sends, is discarded.
	}
}

func (h *Channel) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Broadcast sends msg to every connected client. If no client is
// connected and msg is an error, it is buffered so the next client to
// connect receives it immediately.
func (h *Channel) Broadcast(msg *Message) {
	h.mu.RLock()
	n := len(h.clients)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer: drop rather than block the broadcaster.
		}
	}
	h.mu.RUnlock()

	if n == 0 && msg.Type == TypeError {
		h.bufMu.Lock()
		h.bufferedErr = msg
		h.bufMu.Unlock()
	}
}

// ClientCount reports the number of currently connected clients, mostly
// useful for tests and diagnostics logging.
func (h *Channel) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
