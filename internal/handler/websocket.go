package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"group_chat/internal/middleware"
	"group_chat/internal/ws"
	"group_chat/pkg/logger"
)

type WebSocketHandler struct {
	manager  *ws.Manager
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(manager *ws.Manager, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		log: log,
	}
}

// HandleConnection поднимает websocket. Аутентификация идет позже, событием joinGroup.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "client_ip", c.ClientIP())
		return
	}

	connID := h.manager.Serve(conn)
	if connID != "" {
		h.log.Debug("WebSocket connection opened", "conn_id", connID, "client_ip", c.ClientIP())
	}
}
