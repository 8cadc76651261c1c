// Package monitor streams simulator steps to websocket viewers.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	DefaultSendBuffer   = 16
	DefaultWriteTimeout = time.Second
	DefaultPingInterval = 2 * time.Second
)

// Hub fans frames out to every connected viewer. A viewer that cannot keep
// up loses frames; the simulation never waits on it.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With("component", "monitor"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		SendBuffer:   DefaultSendBuffer,
		WriteTimeout: DefaultWriteTimeout,
		PingInterval: DefaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the viewer until it hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.SendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("viewer connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains control frames. Viewers send nothing else.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("viewer read failed", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("viewer write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("viewer disconnected")
	}
}

// Publish encodes frame once and queues it for every viewer. It returns the
// number of viewers that dropped the frame.
func (h *Hub) Publish(frame Frame) (int, error) {
	message, err := json.Marshal(frame)
	if err != nil {
		return 0, errors.Wrap(err, "monitor: encode frame")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Debug("frame dropped", "viewers", dropped, "time", frame.Time)
	}

	return dropped, nil
}

// Clients is the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ListenAndServe serves the hub on addr at /ws until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	server := &http.Server{Addr: addr, Handler: mux}

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	h.logger.Info("monitor listening", "addr", addr)

	select {
	case err := <-errs:
		return errors.Wrap(err, "monitor: serve")
	case <-ctx.Done():
	}

	h.Close()
	shutdown, cancel := context.WithTimeout(context.Background(), h.WriteTimeout)
	defer cancel()
	if err := server.Shutdown(shutdown); err != nil {
		return errors.Wrap(err, "monitor: shutdown")
	}

	return nil
}
