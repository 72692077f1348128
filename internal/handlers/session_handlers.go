package handlers

import (
	"encoding/json"
	"net/http"

	"chat-relay/internal/auth"
	"chat-relay/pkg/logger"
)

type SessionHandlers struct {
	authService *auth.Service
}

func NewSessionHandlers(authService *auth.Service) *SessionHandlers {
	return &SessionHandlers{authService: authService}
}

type sessionRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// CreateSession handles POST /session, issuing a guest identity token.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.authService.Enabled() {
		http.Error(w, "guest tokens are not configured", http.StatusNotImplemented)
		return
	}

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.authService.IssueGuestToken(req.Username)
	if err != nil {
		logger.Error("Token issue error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Username: req.Username})
}
