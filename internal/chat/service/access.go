package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/store"
)

var (
	ErrAccessDenied = errors.New("access_denied")
	ErrInvalidRoom  = errors.New("invalid_room")
)

// AccessService resolves whether a device may join a room. There is no
// default-allow path: any lookup error or absent membership row denies.
type AccessService struct {
	Store store.Store
}

// HasAccess returns the membership the device holds in the room's owning
// group. Group rooms check the membership row directly; event rooms resolve
// the owning group first, then check membership there.
func (s *AccessService) HasAccess(
	ctx context.Context,
	deviceID string,
	room domain.RoomRef,
) (domain.Membership, error) {
	if deviceID == "" || room.Validate() != nil {
		return domain.Membership{}, ErrInvalidRoom
	}

	groupID := room.ID
	if room.Type == domain.RoomTypeEvent {
		owner, err := s.Store.Events().ResolveOwningGroup(ctx, room.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Membership{}, ErrAccessDenied
			}
			return domain.Membership{}, fmt.Errorf("resolve owning group: %w", err)
		}
		groupID = owner
	}

	membership, err := s.Store.Memberships().GetMembership(ctx, groupID, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Membership{}, ErrAccessDenied
		}
		return domain.Membership{}, fmt.Errorf("membership lookup: %w", err)
	}

	return membership, nil
}
