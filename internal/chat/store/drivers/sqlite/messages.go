package sqlite

import (
	"context"
	"database/sql"
	"slices"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
)

type messagesRepo struct {
	db *sql.DB
}

func (r *messagesRepo) CreateMessage(ctx context.Context, m domain.Message) error {
	const query = `
		INSERT INTO messages (id, room_type, room_id, device_id, username, user_color, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		string(m.RoomType),
		m.RoomID,
		m.DeviceID,
		m.Username,
		m.UserColor,
		m.Text,
		m.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *messagesRepo) ListRecentMessages(
	ctx context.Context,
	room domain.RoomRef,
	limit int,
) ([]domain.Message, error) {
	// Newest-first with a limit, then reversed so callers always see the
	// window oldest-first. ULID ids break created_at ties in insert order.
	const query = `
		SELECT id, room_type, room_id, device_id, username, user_color, text, created_at
		FROM messages
		WHERE room_type = ? AND room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, string(room.Type), room.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var roomType string
		if err := rows.Scan(
			&m.ID,
			&roomType,
			&m.RoomID,
			&m.DeviceID,
			&m.Username,
			&m.UserColor,
			&m.Text,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.RoomType = domain.RoomType(roomType)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(out)
	return out, nil
}

func (r *messagesRepo) DeleteRoomMessages(ctx context.Context, room domain.RoomRef) error {
	const query = `DELETE FROM messages WHERE room_type = ? AND room_id = ?`

	_, err := r.db.ExecContext(ctx, query, string(room.Type), room.ID)
	return err
}
