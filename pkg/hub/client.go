package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Viewers only send control frames.
	maxReadSize = 4 * 1024
)

// Client is one websocket viewer. The hub goroutine is the only sender on
// send and the only one that closes it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	// skipped counts video frames replaced before the viewer took them.
	skipped uint64
}

// NewClient registers a viewer with the hub. It returns nil if the hub has
// stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.clientBuffer),
	}
	select {
	case hub.register <- client:
		return client
	case <-hub.done:
		return nil
	}
}

// offer queues msg without blocking and reports whether the viewer keeps
// up. A full queue of video frames drops its oldest frame so the viewer
// skips ahead; a full queue of face results means the viewer is too slow
// and must be disconnected.
func (c *Client) offer(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
	}
	if msg.Type != BinaryMessage {
		return false
	}

	select {
	case <-c.send:
		c.skipped++
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Run pumps messages to the viewer and blocks until the connection closes.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump discards viewer input. Reading is what notices a closed
// connection and keeps pong deadlines moving.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.frameType(), msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
