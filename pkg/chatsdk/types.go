package chatsdk

import "time"

// Room type strings accepted by the service.
const (
	RoomTypeGroup = "group"
	RoomTypeEvent = "event"
)

// RoomRef identifies the room a session is bound to: a group or an event.
type RoomRef struct {
	Type string `json:"room_type"`
	ID   string `json:"room_id"`
}

func (r RoomRef) String() string { return r.Type + "/" + r.ID }

// Message mirrors the server's persisted message record. A locally-sent
// message carries a temporary client id (and Pending=true) until the
// store-assigned id is known; Failed marks a send whose append was rejected
// so the UI can render it as unsent.
type Message struct {
	ID        string    `json:"id"`
	RoomType  string    `json:"room_type"`
	RoomID    string    `json:"room_id"`
	DeviceID  string    `json:"device_id"`
	Username  string    `json:"username"`
	UserColor string    `json:"user_color,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	Pending bool `json:"-"`
	Failed  bool `json:"-"`
}

// RoomGrant is a successful token mint: the capability token plus the
// display identity the device holds in the room.
type RoomGrant struct {
	Token        string `json:"token"`
	DisplayName  string `json:"display_name"`
	DisplayColor string `json:"display_color,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// mintRequest is the wire body for POST /v1/rooms/token.
type mintRequest struct {
	DeviceID string `json:"device_id"`
	RoomType string `json:"room_type"`
	RoomID   string `json:"room_id"`
}

// appendRequest is the wire body for POST /v1/rooms/{type}/{id}/messages.
type appendRequest struct {
	DeviceID string `json:"device_id"`
	Text     string `json:"text"`
}

// HealthResponse is the body of the /livez and /readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
}

// Live channel event types and envelope; must match the server's hub.
const (
	eventSubscribed = "room.subscribed"
	eventMessageNew = "message.new"
)

type wsEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
