package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomify/logger"
)

const (
	sendQueueSize = 256
	writeDeadline = 5 * time.Second
)

// Client is one authenticated websocket session. Its room subscriptions are
// held by the server's Rooms index and die with the connection.
type Client struct {
	ConnID string // unique connection id (typing events key on this)
	UserID string // identity attached at handshake
	WS     *websocket.Conn
	Send   chan []byte // outbound queue, consumed by a single writer goroutine

	done     chan struct{}
	doneOnce sync.Once
}

func NewClient(connID, userID string, ws *websocket.Conn) *Client {
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue puts a frame on the send queue without blocking. A full queue
// means a slow client; the frame is dropped (delivery is presence-gated,
// not queued).
func (c *Client) Enqueue(payload []byte) {
	select {
	case c.Send <- payload:
	default:
		logger.Warnf("[ws] send queue full, drop frame user=%s conn=%s", c.UserID, c.ConnID)
	}
}

// WritePump is the single writer for the connection. Runs until Close.
func (c *Client) WritePump() {
	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.WS.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err user=%s conn=%s err=%v", c.UserID, c.ConnID, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close tears the session down; safe to call from any goroutine, any number
// of times.
func (c *Client) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
		_ = c.WS.Close()
	})
}
