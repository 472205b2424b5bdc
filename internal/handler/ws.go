package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/realtime"
)

// WSHandler upgrades authenticated clients to a websocket and registers them
// with the hub so notifications can be pushed live.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *realtime.Hub, log *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is token-authenticated, not cookie-authenticated,
			// so cross-origin upgrades are safe to accept.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Connect upgrades the request and parks in a read loop until the client
// goes away. The server never expects client frames; the loop only detects
// disconnects.
func (h *WSHandler) Connect(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return nil
	}

	h.hub.Register(userID, conn)
	defer func() {
		h.hub.Unregister(userID, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
