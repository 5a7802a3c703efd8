package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/service"
	"github.com/travbarajas/GroupEvent-sub002/pkg/chatsdk"
	"github.com/travbarajas/GroupEvent-sub002/pkg/httpx"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

type TokenHandler struct {
	TokenService *service.TokenService
}

type mintTokenRequest struct {
	DeviceID string `json:"device_id"`
	RoomType string `json:"room_type"`
	RoomID   string `json:"room_id"`
}

// ServeHTTP mints a room-scoped capability token for a device. The response
// is uncacheable: every grant is minted fresh with a full TTL.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}
	if req.DeviceID == "" {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	roomType, err := domain.ParseRoomType(req.RoomType)
	if err != nil {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}
	room := domain.RoomRef{Type: roomType, ID: req.RoomID}
	if err := room.Validate(); err != nil {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	grant, err := h.TokenService.Issue(ctx, req.DeviceID, room)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccessDenied):
			writeAPIError(w, chatsdk.ErrAccessDenied)
		case errors.Is(err, service.ErrInvalidRoom):
			writeAPIError(w, chatsdk.ErrInvalidRequest)
		default:
			log.Error("failed to mint capability token", "err", err)
			writeAPIError(w, chatsdk.ErrServerError)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, chatsdk.RoomGrant{
		Token:        grant.Token,
		DisplayName:  grant.DisplayName,
		DisplayColor: grant.DisplayColor,
		ExpiresIn:    int(grant.ExpiresIn.Seconds()),
	})
}
