package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/viveksharma1514/UniVerse/internal/api/middleware"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// ServeWS handles GET /ws: upgrades the connection and hands it to the
// hub. The token has already been verified by the auth middleware; the
// connection starts in the caller's personal room once the client
// announces itself.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.hub, conn, ident.ID, ident.Role, ident.Name)
	client.Start()
}

// checkOrigin allows same-origin requests and the configured frontend
// origins. An empty allowlist permits any origin; non-browser clients
// send no Origin header and are always allowed.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
