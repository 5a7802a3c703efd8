// Package hub owns the server side of the live channel: one named broadcast
// channel per room, relaying store-confirmed messages to connected
// subscribers. It never persists anything itself.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
)

// Event types emitted to subscribers. Subscribed acknowledges the join;
// MessageNew carries a full persisted message. Nothing else crosses the
// live channel.
const (
	EventSubscribed = "room.subscribed"
	EventMessageNew = "message.new"
)

// Event is the wire envelope for everything sent over a room channel.
type Event struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
}

type broadcastReq struct {
	room    string
	exclude string // device id to skip (the sender)
	payload []byte
}

// Hub tracks the live subscribers of every room and fans broadcasts out to
// them. A single run loop owns the rooms map; registration, removal and
// broadcast all flow through channels.
type Hub struct {
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan broadcastReq
	shutdown   chan struct{}
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func New(logger *slog.Logger) *Hub {
	h := &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcastReq, 64),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[*client]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
			h.mu.Unlock()

			// Ack the subscription; the session on the other end holds
			// off reporting Open until it has seen this.
			c.enqueue(mustMarshal(Event{Type: EventSubscribed}))

			h.logger.Info("subscriber joined", "room", c.room, "device_id", c.deviceID)

		case c := <-h.unregister:
			h.drop(c)

		case req := <-h.broadcast:
			h.mu.RLock()
			subscribers := make([]*client, 0, len(h.rooms[req.room]))
			for c := range h.rooms[req.room] {
				subscribers = append(subscribers, c)
			}
			h.mu.RUnlock()

			for _, c := range subscribers {
				if c.deviceID == req.exclude {
					continue
				}
				if !c.enqueue(req.payload) {
					// Send buffer full means the reader is gone or
					// hopelessly behind; cut it loose and let its
					// session reconnect with a fresh snapshot.
					h.logger.Warn("dropping stalled subscriber",
						"room", c.room, "device_id", c.deviceID)
					h.drop(c)
				}
			}

		case <-h.shutdown:
			h.mu.Lock()
			for _, subscribers := range h.rooms {
				for c := range subscribers {
					c.close()
				}
			}
			h.rooms = make(map[string]map[*client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	subscribers, ok := h.rooms[c.room]
	if ok {
		if _, present := subscribers[c]; present {
			delete(subscribers, c)
			c.close()
		}
		if len(subscribers) == 0 {
			delete(h.rooms, c.room)
		}
	}
	h.mu.Unlock()
}

// Join attaches an already-upgraded, already-authorized connection to a
// room's channel and starts its read/write pumps. The caller has verified
// the capability token before this point.
func (h *Hub) Join(conn *websocket.Conn, room domain.RoomRef, deviceID string) {
	c := &client{
		hub:      h,
		conn:     conn,
		room:     room.String(),
		deviceID: deviceID,
		send:     make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// BroadcastMessage relays a persisted message to every subscriber of the
// room except the sending device. Implements service.Broadcaster.
func (h *Hub) BroadcastMessage(room domain.RoomRef, msg domain.Message, excludeDeviceID string) {
	req := broadcastReq{
		room:    room.String(),
		exclude: excludeDeviceID,
		payload: mustMarshal(Event{Type: EventMessageNew, Message: &msg}),
	}

	select {
	case h.broadcast <- req:
	case <-h.done:
	}
}

// SubscriberCount reports how many live connections a room currently has.
func (h *Hub) SubscriberCount(room domain.RoomRef) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room.String()])
}

// Close tears down every subscriber and stops the run loop.
func (h *Hub) Close() {
	close(h.shutdown)
	<-h.done
}

func mustMarshal(e Event) []byte {
	payload, err := json.Marshal(e)
	if err != nil {
		// Event is a plain struct over a plain message; this cannot fail
		// at runtime.
		panic(err)
	}
	return payload
}
