package sqlite

import (
	"context"
	"database/sql"
)

type eventsRepo struct {
	db *sql.DB
}

func (r *eventsRepo) ResolveOwningGroup(ctx context.Context, eventID string) (string, error) {
	const query = `SELECT group_id FROM events WHERE id = ?`

	var groupID string
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&groupID); err != nil {
		return "", mapNotFound(err)
	}
	return groupID, nil
}

func (r *eventsRepo) CreateEvent(ctx context.Context, eventID, groupID string) error {
	const query = `INSERT INTO events (id, group_id) VALUES (?, ?)`

	_, err := r.db.ExecContext(ctx, query, eventID, groupID)
	return mapConstraint(err)
}
