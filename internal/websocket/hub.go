// Package websocket carries the transport side of the relay: the hub run
// loop that serializes inbound events through the engine and fans the
// resulting outbound events out to the right connections.
package websocket

import (
	"encoding/json"

	"chat-relay/internal/engine"
	"chat-relay/internal/models"
	"chat-relay/pkg/logger"
)

// Inbound pairs one decoded event with the connection it arrived on.
type Inbound struct {
	ConnID string
	Event  models.Event
}

// Hub is the broadcast dispatcher. A single run loop consumes registration,
// unregistration and inbound events, so every event is processed to
// completion (mutate, derive views, fan out) before the next one — the
// serialization boundary for all shared chat state.
type Hub struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	Events     chan Inbound
	shutdown   chan struct{}
	engine     *engine.Engine
}

func NewHub(eng *engine.Engine) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Events:     make(chan Inbound, 256),
		shutdown:   make(chan struct{}),
		engine:     eng,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			for _, client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.Register:
			h.clients[client.id] = client
			logger.Info("Connection registered: %s (total %d)", client.id, len(h.clients))
			h.route(h.engine.Connected(client.id))

		case client := <-h.Unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				logger.Info("Connection unregistered: %s (total %d)", client.id, len(h.clients))
				h.route(h.engine.Disconnect(client.id))
			}

		case in := <-h.Events:
			h.route(h.engine.Dispatch(in.ConnID, in.Event))
		}
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.shutdown <- struct{}{}:
	default:
	}
}

// route delivers each outbound event per its addressing mode. Sends are
// fire-and-forget: a missing target is silently dropped and a full client
// buffer evicts the slow consumer.
func (h *Hub) route(out []engine.Outbound) {
	for _, o := range out {
		data, err := json.Marshal(o.Event)
		if err != nil {
			logger.Error("Error marshaling %s event: %v", o.Event.Type, err)
			continue
		}

		switch o.Mode {
		case engine.ToConn:
			if client, ok := h.clients[o.ConnID]; ok {
				h.send(client, data)
			}
		case engine.ToRoom:
			for _, id := range h.engine.RoomConnections(o.Room) {
				if client, ok := h.clients[id]; ok {
					h.send(client, data)
				}
			}
		case engine.ToAll:
			for _, client := range h.clients {
				h.send(client, data)
			}
		}
	}
}

func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		logger.Error("Send buffer full for %s, evicting slow consumer", client.id)
		delete(h.clients, client.id)
		close(client.send)
		h.route(h.engine.Disconnect(client.id))
	}
}
