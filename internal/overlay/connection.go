package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Overlays only send control frames
	maxMessageSize = 512

	sendBuffer = 256
)

// ErrConnectionClosed is returned when sending to a closed or saturated overlay.
var ErrConnectionClosed = errors.New("overlay connection closed")

// Connection is one browser overlay.
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		logger: logger.WithPrefix("conn").With("id", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// Close asks the write pump to send a close frame and hang up. It is safe
// to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(c.cancel)
}

// SendMessage queues msg without blocking. A full buffer means the overlay
// cannot keep up, so the connection is dropped.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		c.Close()
		return ErrConnectionClosed
	}
}

// readPump discards everything but control frames; it exists to notice
// when the browser goes away.
func (c *Connection) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
