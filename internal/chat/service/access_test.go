package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/store/drivers/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedMember(t *testing.T, st *sqlite.Store, groupID, deviceID, name string) {
	t.Helper()
	require.NoError(t, st.Memberships().CreateMembership(context.Background(), domain.Membership{
		GroupID:     groupID,
		DeviceID:    deviceID,
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}))
}

func TestHasAccessGroupRoom(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedMember(t, st, "grp_1", "dev_a", "alice")

	svc := &AccessService{Store: st}

	t.Run("member is granted", func(t *testing.T) {
		m, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: domain.RoomTypeGroup, ID: "grp_1"})
		require.NoError(t, err)
		require.Equal(t, "alice", m.DisplayName)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_x", domain.RoomRef{Type: domain.RoomTypeGroup, ID: "grp_1"})
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown group is denied", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: domain.RoomTypeGroup, ID: "grp_missing"})
		require.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestHasAccessEventRoom(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedMember(t, st, "grp_1", "dev_a", "alice")
	require.NoError(t, st.Events().CreateEvent(ctx, "evt_1", "grp_1"))

	svc := &AccessService{Store: st}

	t.Run("event access resolves through owning group", func(t *testing.T) {
		m, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: domain.RoomTypeEvent, ID: "evt_1"})
		require.NoError(t, err)
		require.Equal(t, "alice", m.DisplayName)
	})

	t.Run("group member only, not event-specific", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_x", domain.RoomRef{Type: domain.RoomTypeEvent, ID: "evt_1"})
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown event is denied, not an error", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: domain.RoomTypeEvent, ID: "evt_missing"})
		require.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestHasAccessRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &AccessService{Store: st}

	t.Run("empty device id", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "", domain.RoomRef{Type: domain.RoomTypeGroup, ID: "grp_1"})
		require.ErrorIs(t, err, ErrInvalidRoom)
	})

	t.Run("empty room id", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: domain.RoomTypeGroup, ID: ""})
		require.ErrorIs(t, err, ErrInvalidRoom)
	})

	t.Run("bad room type", func(t *testing.T) {
		_, err := svc.HasAccess(ctx, "dev_a", domain.RoomRef{Type: "dm", ID: "grp_1"})
		require.ErrorIs(t, err, ErrInvalidRoom)
	})
}
