// Package overlay pushes game events to browser overlays over WebSocket.
//
// Every connected overlay first receives a full snapshot and then every
// game event as it happens, wrapped in a Message envelope. The hub is a
// game.EventSubscriber; OnEvent never blocks the game.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/ayyybubu/RoD/internal/game"
)

// ErrHubClosed is returned by Serve after Shutdown.
var ErrHubClosed = errors.New("overlay hub closed")

// SnapshotSource provides the state sent to new overlays. *game.Game
// implements it.
type SnapshotSource interface {
	Snapshot() game.Snapshot
}

// Hub accepts overlay connections and fans game events out to them.
type Hub struct {
	addr     string
	source   SnapshotSource
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu          sync.RWMutex
	connections map[*Connection]bool
	server      *http.Server
	closed      bool
}

// NewHub creates a hub that will listen on addr.
func NewHub(addr string, source SnapshotSource, logger *log.Logger) *Hub {
	return &Hub{
		addr:   addr,
		source: source,
		upgrader: websocket.Upgrader{
			// Overlays are loaded from local files and streaming software.
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:      logger.WithPrefix("overlay"),
		connections: make(map[*Connection]bool),
	}
}

// Handler returns the HTTP routes: /ws, /snapshot and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/snapshot", h.handleSnapshot)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// Serve listens until ctx is done, then shuts down gracefully.
func (h *Hub) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("overlay listen: %w", err)
	}
	return h.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ln.Close()
		return ErrHubClosed
	}
	srv := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 10 * time.Second}
	h.server = srv
	h.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn("Overlay shutdown", "error", err)
		}
	})
	defer stop()

	h.logger.Info("Starting overlay server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("overlay serve: %w", err)
	}
	return nil
}

// Shutdown closes every overlay and stops the HTTP server.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	srv := h.server
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// OnEvent broadcasts e to every overlay.
func (h *Hub) OnEvent(e game.GameEvent) {
	msg, err := eventMessage(e)
	if err != nil {
		h.logger.Error("Failed to encode event", "type", e.EventType(), "error", err)
		return
	}
	h.Broadcast(msg)
}

// Broadcast queues msg on every connection without blocking.
func (h *Hub) Broadcast(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for conn := range h.connections {
		if err := conn.SendMessage(msg); err == nil {
			count++
		}
	}
	h.logger.Debug("Broadcasted message", "type", msg.Type, "recipients", count)
}

// Connections returns the number of connected overlays.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(ws, h.logger)
	if !h.add(conn) {
		conn.Close()
		conn.start()
		return
	}
	conn.start()

	// Registered before the snapshot is taken, so anything queued ahead of
	// it is already part of it.
	snap := h.source.Snapshot()
	if msg, err := NewMessage(MessageTypeSnapshot, time.Now(), snap); err == nil {
		_ = conn.SendMessage(msg)
	} else {
		h.logger.Error("Failed to encode snapshot", "error", err)
	}

	go func() {
		<-conn.Done()
		h.remove(conn)
	}()
}

func (h *Hub) add(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.connections[c] = true
	h.logger.Info("Overlay connected", "id", c.ID(), "total", len(h.connections))
	return true
}

func (h *Hub) remove(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		h.logger.Info("Overlay disconnected", "id", c.ID(), "total", len(h.connections))
	}
}

func (h *Hub) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.source.Snapshot()); err != nil {
		h.logger.Error("Failed to write snapshot", "error", err)
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
