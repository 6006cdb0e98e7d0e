package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/floroz/auction-live/pkg/syncutils"
	"github.com/floroz/auction-live/services/auction-service/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	maxMessageSize = 4096

	// DefaultSendQueue bounds the messages buffered for one client
	DefaultSendQueue = 256
)

// client is one websocket connection. Outbound messages are buffered in a
// capped deque that a single writer goroutine drains.
type client struct {
	id     string
	userID uuid.UUID
	conn   *websocket.Conn
	logger *slog.Logger

	mu       syncutils.Mutex
	queue    *deque.Deque[realtime.Message]
	maxQueue int
	closed   bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ realtime.Conn = (*client)(nil)

func newClient(conn *websocket.Conn, userID uuid.UUID, maxQueue int, logger *slog.Logger) *client {
	return &client{
		id:       uuid.NewString(),
		userID:   userID,
		conn:     conn,
		logger:   logger,
		queue:    deque.New[realtime.Message](),
		maxQueue: maxQueue,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (c *client) ID() string        { return c.id }
func (c *client) UserID() uuid.UUID { return c.userID }

// Send implements realtime.Conn
func (c *client) Send(msg realtime.Message) bool {
	c.mu.Lock()
	if c.closed || c.queue.Len() >= c.maxQueue {
		c.mu.Unlock()
		return false
	}
	c.queue.PushBack(msg)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// Close implements realtime.Conn. It stops the writer, which closes the socket.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *client) drain() []realtime.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Message, 0, c.queue.Len())
	for c.queue.Len() > 0 {
		out = append(out, c.queue.PopFront())
	}
	return out
}

// writePump is the only goroutine writing to the socket
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.wake:
			for _, msg := range c.drain() {
				if err := c.write(msg); err != nil {
					c.logger.Debug("Websocket write failed", "conn_id", c.id, "error", err)
					c.Close()
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			// flush what was queued before the close
			for _, msg := range c.drain() {
				if c.write(msg) != nil {
					break
				}
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) write(msg realtime.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", "type", msg.Type, "error", err)
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
