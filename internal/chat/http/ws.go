package http

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/hub"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/service"
	"github.com/travbarajas/GroupEvent-sub002/pkg/chatsdk"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

// WSHandler upgrades an authenticated request to a websocket and hands the
// connection to the hub. The capability token is the sole credential; no
// cookie or header auth applies here.
type WSHandler struct {
	TokenService *service.TokenService
	Hub          *hub.Hub

	// Upgrader is overridable for tests; the zero value is used otherwise.
	Upgrader websocket.Upgrader
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	room, ok := pathRoom(r)
	if !ok {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	query := r.URL.Query()
	deviceID := query.Get("device_id")
	token := query.Get("token")
	if deviceID == "" || token == "" {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	// Every verification failure collapses to the same 401. The precise
	// reason (expired, malformed, forged, wrong device, wrong room) is
	// for the logs only; an unauthenticated peer learns nothing from the
	// response about which check fired.
	if _, err := h.TokenService.Verify(ctx, token, deviceID, room); err != nil {
		log.Warn("live channel token rejected",
			"reason", err.Error(),
			"room", room.String(),
		)
		writeAPIError(w, chatsdk.ErrInvalidToken)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	h.Hub.Join(conn, room, deviceID)
}
