package domain

import "errors"

// RoomType identifies which kind of record a chat room is scoped to.
type RoomType string

const (
	RoomTypeGroup RoomType = "group"
	RoomTypeEvent RoomType = "event"
)

var ErrInvalidRoom = errors.New("domain: invalid room reference")

// ParseRoomType validates a wire-level room type string.
func ParseRoomType(s string) (RoomType, error) {
	switch RoomType(s) {
	case RoomTypeGroup:
		return RoomTypeGroup, nil
	case RoomTypeEvent:
		return RoomTypeEvent, nil
	default:
		return "", ErrInvalidRoom
	}
}

// RoomRef identifies the scope of a channel and of access checks. Immutable
// once a session is constructed around it.
type RoomRef struct {
	Type RoomType
	ID   string
}

func (r RoomRef) Validate() error {
	if _, err := ParseRoomType(string(r.Type)); err != nil {
		return err
	}
	if r.ID == "" {
		return ErrInvalidRoom
	}
	return nil
}

// String returns a stable "type/id" form, used as the hub's channel key.
func (r RoomRef) String() string {
	return string(r.Type) + "/" + r.ID
}
