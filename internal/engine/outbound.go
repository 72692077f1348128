package engine

import "chat-relay/internal/models"

// Mode selects how the dispatcher addresses an outbound event.
type Mode int

const (
	// ToRoom targets every connection whose session is in Room.
	ToRoom Mode = iota
	// ToConn targets exactly one connection by id.
	ToConn
	// ToAll targets every connection. Used only for the room directory.
	ToAll
)

// Outbound is one routing instruction produced by a dispatch method. Keeping
// routing as data makes the engine testable without a live transport.
type Outbound struct {
	Mode   Mode
	Room   string
	ConnID string
	Event  models.Event
}

func toRoom(room string, evt models.Event) Outbound {
	return Outbound{Mode: ToRoom, Room: room, Event: evt}
}

func toConn(connID string, evt models.Event) Outbound {
	return Outbound{Mode: ToConn, ConnID: connID, Event: evt}
}

func toAll(evt models.Event) Outbound {
	return Outbound{Mode: ToAll, Event: evt}
}
