package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 256

	// pongWait is how long a connection may stay silent before the read
	// pump gives up on it; pingPeriod must be comfortably shorter.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	// Inbound frames are control traffic only (sends go over HTTP), so
	// the read limit stays small.
	maxInboundBytes = 512
)

// client is one device's live connection to one room.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	room     string
	deviceID string

	send chan []byte

	closeOnce sync.Once
}

// enqueue queues a payload for the write pump without blocking. Returns
// false when the buffer is full.
func (c *client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump consumes inbound frames until the connection dies. Messages are
// appended over HTTP, so everything read here is discarded; the pump exists
// to process pongs and detect the close.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("subscriber read failed",
					"room", c.room, "device_id", c.deviceID, "err", err)
			}
			return
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
