package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/pkg/captoken"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

var (
	// ErrIdentityMismatch and ErrRoomMismatch are internal verification
	// reasons, as are the captoken sentinels. Handlers must collapse all
	// of them into a uniform rejection before anything reaches the wire.
	ErrIdentityMismatch = errors.New("identity_mismatch")
	ErrRoomMismatch     = errors.New("room_mismatch")
)

// TokenService mints and verifies room-scoped capability tokens. Minting is
// stateless: membership is checked, the token is signed, nothing is stored.
// Expiry is the only invalidation path.
type TokenService struct {
	Codec  *captoken.Codec
	Access *AccessService
}

// Issue checks room access for the device and, if granted, mints a token
// bound to (device, room) with the fixed TTL. Returns ErrAccessDenied with
// no token when the device has no standing in the room.
func (s *TokenService) Issue(
	ctx context.Context,
	deviceID string,
	room domain.RoomRef,
) (domain.RoomGrant, error) {
	l := slogx.FromContext(ctx)

	membership, err := s.Access.HasAccess(ctx, deviceID, room)
	if err != nil {
		if !errors.Is(err, ErrAccessDenied) && !errors.Is(err, ErrInvalidRoom) {
			l.Error("token mint access check failed", "err", err, "room", room.String())
		}
		return domain.RoomGrant{}, err
	}

	token, err := s.Codec.Sign(captoken.Claims{
		DeviceID:     deviceID,
		RoomType:     string(room.Type),
		RoomID:       room.ID,
		DisplayName:  membership.DisplayName,
		DisplayColor: membership.DisplayColor,
	})
	if err != nil {
		return domain.RoomGrant{}, err
	}

	l.Info("capability token minted",
		slog.String("room", room.String()),
		slog.String("device_id", deviceID),
	)

	return domain.RoomGrant{
		Token:        token,
		DisplayName:  membership.DisplayName,
		DisplayColor: membership.DisplayColor,
		ExpiresIn:    s.Codec.Lifetime(),
	}, nil
}

// Verify checks a presented token against the caller's claimed device and
// room. Reasons are distinguished for diagnostics (expired, malformed,
// bad signature, identity or room mismatch) but callers that answer
// unauthenticated peers must not expose which one fired.
func (s *TokenService) Verify(
	ctx context.Context,
	raw, deviceID string,
	room domain.RoomRef,
) (captoken.Claims, error) {
	claims, err := s.Codec.Verify(raw)
	if err != nil {
		return captoken.Claims{}, err
	}

	if claims.DeviceID != deviceID {
		return captoken.Claims{}, ErrIdentityMismatch
	}
	if claims.RoomType != string(room.Type) || claims.RoomID != room.ID {
		return captoken.Claims{}, ErrRoomMismatch
	}

	return claims, nil
}
