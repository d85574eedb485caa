// Package livefeed streams live run figures to WebSocket subscribers.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/gcpressure/internal/metrics"
)

// DefaultInterval is how often a Hub broadcasts a frame.
const DefaultInterval = time.Second

const writeTimeout = 5 * time.Second

// Frame is one broadcast snapshot.
type Frame struct {
	Time  time.Time     `json:"time"`
	Stats metrics.Stats `json:"stats"`
}

// Hub broadcasts Collector snapshots to every connected subscriber.
type Hub struct {
	collector *metrics.Collector
	interval  time.Duration
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	done     chan struct{}
	finished chan struct{}
	active   int32
}

// NewHub creates a Hub for collector. A non-positive interval uses DefaultInterval.
func NewHub(collector *metrics.Collector, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Hub{
		collector: collector,
		interval:  interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Handler upgrades requests to WebSocket subscriptions.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.add(conn)
		// Send the current figures right away so subscribers need not wait a tick.
		if err := h.send(conn, h.frame()); err != nil {
			h.remove(conn)
			return
		}
		// Subscribers never send data; reading detects when they leave.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	})
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Start begins broadcasting in a background goroutine.
func (h *Hub) Start() {
	if !atomic.CompareAndSwapInt32(&h.active, 0, 1) {
		return
	}
	go h.run()
}

// Stop halts broadcasting and closes every subscriber with a normal closure.
func (h *Hub) Stop() {
	if atomic.CompareAndSwapInt32(&h.active, 1, 2) {
		close(h.done)
		<-h.finished
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
			time.Now().Add(writeTimeout),
		)
		_ = conn.Close()
	}
}

func (h *Hub) run() {
	defer close(h.finished)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.broadcast(h.frame())
		case <-h.done:
			return
		}
	}
}

func (h *Hub) frame() Frame {
	return Frame{Time: time.Now().UTC(), Stats: h.collector.Stats()}
}

func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := h.send(conn, f); err != nil {
			h.remove(conn)
		}
	}
}

// send serializes writes per connection; gorilla allows one concurrent writer.
func (h *Hub) send(conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return websocket.ErrCloseSent
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}
