package chatsdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkMsg(id, deviceID, text string, at time.Time) Message {
	return Message{
		ID:        id,
		RoomType:  RoomTypeGroup,
		RoomID:    "grp_1",
		DeviceID:  deviceID,
		Username:  "tester",
		Text:      text,
		CreatedAt: at,
	}
}

func TestReconcilerSeedOnce(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")

	require.NoError(t, rec.Seed([]Message{
		mkMsg("m1", "dev_b", "one", base),
		mkMsg("m2", "dev_b", "two", base.Add(time.Second)),
	}))
	require.Len(t, rec.Current(), 2)

	err := rec.Seed([]Message{mkMsg("m9", "dev_b", "nine", base)})
	require.ErrorIs(t, err, ErrAlreadySeeded)
	require.Len(t, rec.Current(), 2, "rejected seed must not change the sequence")
}

func TestReconcilerNoSelfEcho(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")
	require.NoError(t, rec.Seed(nil))

	rec.OnLocalSend(mkMsg("local-1", "dev_a", "hello", base))
	require.Len(t, rec.Current(), 1)

	// The append settles and the hub fans out to other devices. Even if a
	// copy reaches this device, suppression keeps the sequence at one.
	rec.ResolveLocalSend("local-1", "m_final")
	rec.OnLiveMessage(mkMsg("m_other", "dev_a", "hello", base))

	got := rec.Current()
	require.Len(t, got, 1)
	require.Equal(t, "m_final", got[0].ID)
	require.False(t, got[0].Pending)
}

func TestReconcilerLiveReplayIdempotent(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")
	require.NoError(t, rec.Seed([]Message{mkMsg("m1", "dev_b", "one", base)}))

	// Reconnect snapshots replay already-seen ids through the live path.
	rec.OnLiveMessage(mkMsg("m1", "dev_b", "one", base))
	rec.OnLiveMessage(mkMsg("m2", "dev_b", "two", base.Add(time.Second)))
	rec.OnLiveMessage(mkMsg("m2", "dev_b", "two", base.Add(time.Second)))

	got := rec.Current()
	require.Len(t, got, 2)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, "m2", got[1].ID)
}

func TestReconcilerOrdersByCreatedAt(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")
	require.NoError(t, rec.Seed(nil))

	// Arrival order 3, 1, 2.
	rec.OnLiveMessage(mkMsg("m3", "dev_b", "three", base.Add(2*time.Second)))
	rec.OnLiveMessage(mkMsg("m1", "dev_b", "one", base))
	rec.OnLiveMessage(mkMsg("m2", "dev_b", "two", base.Add(time.Second)))

	got := rec.Current()
	require.Len(t, got, 3)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, "m2", got[1].ID)
	require.Equal(t, "m3", got[2].ID)
}

func TestReconcilerEqualTimestampsKeepArrivalOrder(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")
	require.NoError(t, rec.Seed(nil))

	rec.OnLiveMessage(mkMsg("ma", "dev_b", "a", at))
	rec.OnLiveMessage(mkMsg("mb", "dev_c", "b", at))
	rec.OnLiveMessage(mkMsg("mc", "dev_b", "c", at))

	got := rec.Current()
	require.Equal(t, []string{"ma", "mb", "mc"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReconcilerFailedSend(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")
	require.NoError(t, rec.Seed(nil))

	rec.OnLocalSend(mkMsg("local-1", "dev_a", "oops", base))
	rec.MarkFailed("local-1")

	got := rec.Current()
	require.Len(t, got, 1)
	require.True(t, got[0].Failed)
	require.False(t, got[0].Pending)

	rec.Remove("local-1")
	require.Empty(t, rec.Current())
}

func TestReconcilerSeedAfterAdmitRejected(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec := NewReconciler("dev_a")

	rec.OnLiveMessage(mkMsg("m1", "dev_b", "one", base))
	require.ErrorIs(t, rec.Seed(nil), ErrAlreadySeeded)
}
