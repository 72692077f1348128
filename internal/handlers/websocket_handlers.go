package handlers

import (
	"net/http"

	"chat-relay/internal/auth"
	"chat-relay/internal/models"
	ws "chat-relay/internal/websocket"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket upgrades the connection, assigns it a connection id and
// hands it to the hub. A valid guest token pre-announces the username; the
// user_join event on the socket remains the authoritative announcement.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var username string
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" && h.authService.Enabled() {
		name, err := h.authService.UsernameFromToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		username = name
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), h.hub, conn)
	h.hub.Register <- client

	if username != "" {
		room := r.URL.Query().Get("room")
		h.hub.Events <- ws.Inbound{
			ConnID: client.ID(),
			Event:  models.Event{Type: models.EventUserJoin, Username: username, Room: room},
		}
	}

	go client.WritePump()
	go client.ReadPump()
}
