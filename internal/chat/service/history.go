package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/store"
	"github.com/travbarajas/GroupEvent-sub002/pkg/idx"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

var (
	ErrEmptyMessage     = errors.New("empty_message")
	ErrMessageTooLong   = errors.New("message_too_long")
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// DefaultHistoryLimit is the snapshot size handed to a freshly opened
// session when the caller doesn't ask for a specific window.
const DefaultHistoryLimit = 50

// MaxHistoryLimit bounds what a client may request in one fetch.
const MaxHistoryLimit = 200

// Broadcaster relays a persisted message to the live subscribers of a room,
// excluding the sending device (the sender already has local knowledge of
// what it sent).
type Broadcaster interface {
	BroadcastMessage(room domain.RoomRef, msg domain.Message, excludeDeviceID string)
}

// HistoryService reads and appends durable room history. Append is the sole
// broadcast trigger: the live channel relays store-confirmed writes, it is
// never an independent source of truth.
type HistoryService struct {
	Store  store.Store
	Access *AccessService
	Relay  Broadcaster

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *HistoryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// FetchRecent returns up to limit persisted messages for the room, oldest
// first. Membership is re-validated here so the history endpoint cannot be
// used to bypass room access checks.
func (s *HistoryService) FetchRecent(
	ctx context.Context,
	deviceID string,
	room domain.RoomRef,
	limit int,
) ([]domain.Message, error) {
	if _, err := s.Access.HasAccess(ctx, deviceID, room); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	msgs, err := s.Store.Messages().ListRecentMessages(ctx, room, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// Append validates access and the message text, persists the message with a
// store-assigned id and server timestamp, then relays it to the room's other
// live subscribers. The persisted message is returned to the sender only;
// the broadcast deliberately skips the sender's own connection.
//
// Persist-then-relay is not atomic: if the relay fails after a successful
// write, the message exists in history and late subscribers pick it up on
// their next snapshot fetch, but currently connected peers miss the live
// event. That asymmetry is inherent to the design and surfaced in logs
// rather than hidden.
func (s *HistoryService) Append(
	ctx context.Context,
	deviceID string,
	room domain.RoomRef,
	text string,
) (domain.Message, error) {
	l := slogx.FromContext(ctx)

	membership, err := s.Access.HasAccess(ctx, deviceID, room)
	if err != nil {
		return domain.Message{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if len(text) > domain.MaxMessageBytes {
		return domain.Message{}, ErrMessageTooLong
	}

	msg := domain.Message{
		ID:        idx.New().String(),
		RoomType:  room.Type,
		RoomID:    room.ID,
		DeviceID:  deviceID,
		Username:  membership.DisplayName,
		UserColor: membership.DisplayColor,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}

	if err := s.Store.Messages().CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if s.Relay != nil {
		s.Relay.BroadcastMessage(room, msg, deviceID)
	} else {
		l.Warn("message persisted without relay, live subscribers will miss it",
			slog.String("message_id", msg.ID),
			slog.String("room", room.String()),
		)
	}

	return msg, nil
}
