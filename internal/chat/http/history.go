package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/service"
	"github.com/travbarajas/GroupEvent-sub002/pkg/chatsdk"
	"github.com/travbarajas/GroupEvent-sub002/pkg/httpx"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

type HistoryHandler struct {
	HistoryService *service.HistoryService
}

type appendMessageRequest struct {
	DeviceID string `json:"device_id"`
	Text     string `json:"text"`
}

// HandleList returns the room's recent messages, oldest first.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	room, ok := pathRoom(r)
	if !ok {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeAPIError(w, chatsdk.ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	msgs, err := h.HistoryService.FetchRecent(ctx, deviceID, room, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccessDenied):
			writeAPIError(w, chatsdk.ErrAccessDenied)
		case errors.Is(err, service.ErrInvalidRoom):
			writeAPIError(w, chatsdk.ErrInvalidRequest)
		case errors.Is(err, service.ErrStoreUnavailable):
			log.Error("history fetch failed", "err", err, "room", room.String())
			writeAPIError(w, chatsdk.ErrStoreUnavailable)
		default:
			log.Error("history fetch failed", "err", err, "room", room.String())
			writeAPIError(w, chatsdk.ErrServerError)
		}
		return
	}

	// An empty room is a JSON array, never null.
	if msgs == nil {
		msgs = []domain.Message{}
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

// HandleAppend performs one durable write and relays it to the room's other
// live subscribers. The persisted message, with its store-assigned id and
// timestamp, goes back to the sender in the response body.
func (h *HistoryHandler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	room, ok := pathRoom(r)
	if !ok {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}
	if req.DeviceID == "" {
		writeAPIError(w, chatsdk.ErrInvalidRequest)
		return
	}

	msg, err := h.HistoryService.Append(ctx, req.DeviceID, room, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccessDenied):
			writeAPIError(w, chatsdk.ErrAccessDenied)
		case errors.Is(err, service.ErrInvalidRoom):
			writeAPIError(w, chatsdk.ErrInvalidRequest)
		case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
			writeAPIError(w, chatsdk.ErrMessageRejected)
		case errors.Is(err, service.ErrStoreUnavailable):
			log.Error("message append failed", "err", err, "room", room.String())
			writeAPIError(w, chatsdk.ErrStoreUnavailable)
		default:
			log.Error("message append failed", "err", err, "room", room.String())
			writeAPIError(w, chatsdk.ErrServerError)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, msg)
}
