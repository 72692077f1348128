package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/engine"
	"chat-relay/internal/models"
	"chat-relay/internal/store"
)

// ArchivePinger is the slice of the archive the health endpoint needs.
type ArchivePinger interface {
	Ping(ctx context.Context) error
}

// MessageHandlers serves the stateless read-only HTTP surface over the
// message log and session registry.
type MessageHandlers struct {
	log     *store.Log
	engine  *engine.Engine
	archive ArchivePinger
	cfg     *config.Config
	started time.Time
}

func NewMessageHandlers(log *store.Log, eng *engine.Engine, archive ArchivePinger, cfg *config.Config) *MessageHandlers {
	return &MessageHandlers{
		log:     log,
		engine:  eng,
		archive: archive,
		cfg:     cfg,
		started: time.Now(),
	}
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

type searchResponse struct {
	Messages []models.Message `json:"messages"`
}

// GetMessages handles GET /messages?room&skip&limit with the most recent
// page oldest-to-newest and a hasMore flag at the boundary.
func (h *MessageHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = engine.GeneralRoom
	}
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", h.cfg.Chat.PageSize)

	messages, hasMore := h.log.Page(room, skip, limit)
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: messages, HasMore: hasMore})
}

// SearchMessages handles GET /messages/search?room&query.
func (h *MessageHandlers) SearchMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = engine.GeneralRoom
	}
	query := r.URL.Query().Get("query")

	results := h.log.Search(room, query)
	if results == nil {
		results = []models.Message{}
	}

	writeJSON(w, http.StatusOK, searchResponse{Messages: results})
}

// GetUsers handles GET /users with every live session.
func (h *MessageHandlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Sessions())
}

// Health handles GET /health.
func (h *MessageHandlers) Health(w http.ResponseWriter, r *http.Request) {
	archiveStatus := "disabled"
	if h.archive != nil {
		archiveStatus = "connected"
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.archive.Ping(ctx); err != nil {
			archiveStatus = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"archive":   archiveStatus,
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
