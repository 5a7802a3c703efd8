package store

import (
	"context"
	"errors"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and testable.
//
// Group and event records themselves are owned by the CRUD side of the
// application; this service only reads the membership and event→group
// associations it needs for access checks, and owns the messages table.
type Store interface {
	Memberships() Memberships
	Events() Events
	Messages() Messages

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Memberships interface {
	// GetMembership returns the membership row for (groupID, deviceID).
	// Returns ErrNotFound when the device has no standing in the group.
	GetMembership(ctx context.Context, groupID, deviceID string) (domain.Membership, error)

	// CreateMembership inserts a membership row. The CRUD handlers that
	// normally own this table call the same statement; it lives here so
	// tests can seed members.
	CreateMembership(ctx context.Context, m domain.Membership) error

	// DeleteMembership removes a device from a group.
	DeleteMembership(ctx context.Context, groupID, deviceID string) error
}

type Events interface {
	// ResolveOwningGroup maps an event id to the id of the group that owns
	// it. Returns ErrNotFound for unknown events.
	ResolveOwningGroup(ctx context.Context, eventID string) (string, error)

	// CreateEvent records an event→group association.
	CreateEvent(ctx context.Context, eventID, groupID string) error
}

type Messages interface {
	// CreateMessage persists a message (id is provided by the service via
	// ULID).
	CreateMessage(ctx context.Context, m domain.Message) error

	// ListRecentMessages returns up to limit most recent messages for a
	// room, ordered oldest first.
	ListRecentMessages(ctx context.Context, room domain.RoomRef, limit int) ([]domain.Message, error)

	// DeleteRoomMessages removes all messages for a room (room deletion
	// cascade).
	DeleteRoomMessages(ctx context.Context, room domain.RoomRef) error
}
