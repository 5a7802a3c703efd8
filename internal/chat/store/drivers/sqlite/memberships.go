package sqlite

import (
	"context"
	"database/sql"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
)

type membershipsRepo struct {
	db *sql.DB
}

func (r *membershipsRepo) GetMembership(
	ctx context.Context,
	groupID, deviceID string,
) (domain.Membership, error) {
	const query = `
		SELECT group_id, device_id, display_name, display_color, created_at
		FROM group_members
		WHERE group_id = ? AND device_id = ?`

	var m domain.Membership
	err := r.db.QueryRowContext(ctx, query, groupID, deviceID).Scan(
		&m.GroupID,
		&m.DeviceID,
		&m.DisplayName,
		&m.DisplayColor,
		&m.CreatedAt,
	)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	return m, nil
}

func (r *membershipsRepo) CreateMembership(ctx context.Context, m domain.Membership) error {
	const query = `
		INSERT INTO group_members (group_id, device_id, display_name, display_color)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, m.GroupID, m.DeviceID, m.DisplayName, m.DisplayColor)
	return mapConstraint(err)
}

func (r *membershipsRepo) DeleteMembership(ctx context.Context, groupID, deviceID string) error {
	const query = `DELETE FROM group_members WHERE group_id = ? AND device_id = ?`

	_, err := r.db.ExecContext(ctx, query, groupID, deviceID)
	return err
}
