package domain

import "time"

// MaxMessageBytes caps the text of a single message, measured after trimming.
const MaxMessageBytes = 4096

// Message is one chat message as persisted in the durable store. The id is
// assigned at persistence time; messages are never mutated afterwards.
// Deletion only happens by room deletion cascade, outside this service.
type Message struct {
	ID        string    `json:"id"`
	RoomType  RoomType  `json:"room_type"`
	RoomID    string    `json:"room_id"`
	DeviceID  string    `json:"device_id"`
	Username  string    `json:"username"`
	UserColor string    `json:"user_color,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) Room() RoomRef {
	return RoomRef{Type: m.RoomType, ID: m.RoomID}
}
