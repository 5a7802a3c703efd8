package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/travbarajas/GroupEvent-sub002/internal/chat/domain"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/hub"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/service"
	"github.com/travbarajas/GroupEvent-sub002/internal/chat/store"
	"github.com/travbarajas/GroupEvent-sub002/pkg/chatsdk"
	"github.com/travbarajas/GroupEvent-sub002/pkg/httpx"
	"github.com/travbarajas/GroupEvent-sub002/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	hub   *hub.Hub

	TokenService   *service.TokenService
	HistoryService *service.HistoryService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	h *hub.Hub,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		hub:          h,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerRooms()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerRooms() {
	// POST /v1/rooms/token - strict rate limit by IP (minting answers
	// "is this device in this room", which makes it the probing surface).
	// The device id lives in the JSON body, so IP is the usable key here.
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/rooms/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	historyHandler := &HistoryHandler{HistoryService: r.HistoryService}

	// GET /messages - moderate rate limit (one snapshot per open plus
	// reconnects)
	r.Mux.Handle("GET /v1/rooms/{type}/{id}/messages",
		httpx.Chain(http.HandlerFunc(historyHandler.HandleList),
			httpx.RateLimitByDevice(httpx.ModerateLimit),
		),
	)

	// POST /messages - moderate rate limit (interactive send rate)
	r.Mux.Handle("POST /v1/rooms/{type}/{id}/messages",
		httpx.Chain(http.HandlerFunc(historyHandler.HandleAppend),
			httpx.RateLimitByDevice(httpx.ModerateLimit),
		),
	)

	// GET /ws - moderate rate limit (reconnect loops retry every few
	// seconds; the limit only bites runaway clients)
	wsHandler := &WSHandler{
		TokenService: r.TokenService,
		Hub:          r.hub,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The capability token is the credential; a browser Origin
			// header carries no trust either way.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	r.Mux.Handle("GET /v1/rooms/{type}/{id}/ws",
		httpx.Chain(wsHandler,
			httpx.RateLimitByDevice(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may
	// poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

// pathRoom parses the {type}/{id} room path segments. A bad room type or
// blank id is an invalid request, not an access denial.
func pathRoom(req *http.Request) (domain.RoomRef, bool) {
	roomType, err := domain.ParseRoomType(req.PathValue("type"))
	if err != nil {
		return domain.RoomRef{}, false
	}
	room := domain.RoomRef{Type: roomType, ID: req.PathValue("id")}
	if err := room.Validate(); err != nil {
		return domain.RoomRef{}, false
	}
	return room, true
}

// writeAPIError writes one of the shared wire errors.
func writeAPIError(w http.ResponseWriter, apiErr *chatsdk.APIError) {
	httpx.WriteJSON(w, apiErr.StatusCode, apiErr)
}
