// Package engine is the session, room and message coordination core. It owns
// the session registry, room directory and typing sets behind a single mutex,
// and turns each inbound event into a list of outbound routing instructions
// for the dispatcher.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/store"
	"chat-relay/pkg/logger"
)

// GeneralRoom always exists and can never be left.
const GeneralRoom = "General"

const anonymousSender = "Anonymous"

// Archiver is the pluggable persistence collaborator. Appends are copied out
// best-effort; the in-memory log stays authoritative.
type Archiver interface {
	Save(ctx context.Context, msg models.Message) error
}

type Engine struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	rooms    []string
	// typing is tracked per room, keyed by connection id. It is mutated by
	// explicit typing events and cleared on send and disconnect, never
	// derived from sessions.
	typing   map[string]map[string]string
	log      *store.Log
	archiver Archiver
}

func New(log *store.Log, archiver Archiver) *Engine {
	return &Engine{
		sessions: make(map[string]*models.Session),
		rooms:    []string{GeneralRoom},
		typing:   make(map[string]map[string]string),
		log:      log,
		archiver: archiver,
	}
}

// Dispatch routes one inbound event to its handler. Unknown event types are
// dropped; no inbound event is ever fatal.
func (e *Engine) Dispatch(connID string, evt models.Event) []Outbound {
	switch evt.Type {
	case models.EventUserJoin:
		return e.Join(connID, evt.Username, evt.Room)
	case models.EventJoinRoom:
		return e.SwitchRoom(connID, evt.Room)
	case models.EventLeaveRoom:
		return e.LeaveRoom(connID, evt.Room, evt.Username)
	case models.EventCreateRoom:
		return e.CreateRoom(evt.Name)
	case models.EventSendMessage:
		return e.SendMessage(connID, evt.Text, evt.Attachment)
	case models.EventTyping:
		return e.Typing(connID, evt.IsTyping)
	case models.EventPrivateMessage:
		return e.PrivateMessage(connID, evt.To, evt.Text)
	case models.EventMessageRead:
		return e.MarkRead(evt.SenderID, evt.RecipientID)
	case models.EventMessageReaction:
		return e.React(connID, evt.MessageID, evt.Reaction, evt.UserID)
	default:
		logger.Debug("Dropping unknown event type %q from %s", evt.Type, connID)
		return nil
	}
}

// Connected is invoked by the dispatcher when a connection registers. The
// client receives the current room directory before anything else.
func (e *Engine) Connected(connID string) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []Outbound{toConn(connID, models.Event{
		Type:  models.EventRoomList,
		Rooms: e.roomListLocked(),
	})}
}

// Join creates or replaces the session for this connection. Idempotent per
// connection; emits the room's presence view and a join fact to the room.
func (e *Engine) Join(connID, username, room string) []Outbound {
	if room == "" {
		room = GeneralRoom
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions[connID] = &models.Session{ConnID: connID, Username: username, Room: room}
	logger.Info("%s joined the room: %s", username, room)

	return []Outbound{
		toRoom(room, e.userListLocked(room)),
		toRoom(room, models.Event{
			Type:     models.EventUserJoined,
			Username: username,
			UserID:   connID,
			Room:     room,
		}),
	}
}

// SwitchRoom silently moves the connection to newRoom. Presence is emitted
// for both the old and the new room, and the connection's typing entry in the
// old room is cleared.
func (e *Engine) SwitchRoom(connID, newRoom string) []Outbound {
	if newRoom == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[connID]
	if !ok {
		return nil
	}

	oldRoom := sess.Room
	sess.Room = newRoom

	out := []Outbound{toRoom(newRoom, e.userListLocked(newRoom))}
	if oldRoom != newRoom {
		out = append(out, toRoom(oldRoom, e.userListLocked(oldRoom)))
		if e.clearTypingLocked(oldRoom, connID) {
			out = append(out, toRoom(oldRoom, e.typingUsersLocked(oldRoom)))
		}
	}
	return out
}

// LeaveRoom handles an explicit leave action. Switching rooms is silent;
// only an explicit leave emits a left fact. General can never be left.
func (e *Engine) LeaveRoom(connID, room, username string) []Outbound {
	if room == "" || room == GeneralRoom {
		return nil
	}

	logger.Info("%s left the room: %s", username, room)
	return []Outbound{toRoom(room, models.Event{
		Type:     models.EventUserLeft,
		Username: username,
		UserID:   connID,
		Room:     room,
	})}
}

// Disconnect destroys the session and recomputes presence and typing views
// for all known rooms so stale entries cannot linger anywhere.
func (e *Engine) Disconnect(connID string) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sess, ok := e.sessions[connID]; ok {
		logger.Info("%s disconnected", sess.Username)
	}
	delete(e.sessions, connID)
	for _, entries := range e.typing {
		delete(entries, connID)
	}

	var out []Outbound
	for _, room := range e.rooms {
		out = append(out,
			toRoom(room, e.userListLocked(room)),
			toRoom(room, e.typingUsersLocked(room)),
		)
	}
	return out
}

// CreateRoom adds the room to the directory and broadcasts the updated
// directory to every connection. Duplicate and empty names are silent no-ops.
func (e *Engine) CreateRoom(name string) []Outbound {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.rooms {
		if r == name {
			return nil
		}
	}
	e.rooms = append(e.rooms, name)

	return []Outbound{toAll(models.Event{
		Type:  models.EventRoomList,
		Rooms: e.roomListLocked(),
	})}
}

// SendMessage appends to the log, broadcasts to the sender's room and acks
// the sender with the assigned id. A send also clears the sender's typing
// entry, the same as an explicit typing-stop.
func (e *Engine) SendMessage(connID, text string, attachment *models.Attachment) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	sender, room := anonymousSender, GeneralRoom
	if sess, ok := e.sessions[connID]; ok {
		sender, room = sess.Username, sess.Room
	}

	msg := e.appendLocked(models.Message{
		Sender:     sender,
		SenderID:   connID,
		Room:       room,
		Text:       text,
		Attachment: attachment,
	})

	out := []Outbound{
		toRoom(room, models.Event{Type: models.EventReceiveMessage, Message: &msg}),
		toConn(connID, models.Event{Type: models.EventMessageDelivered, ID: msg.ID}),
	}
	if e.clearTypingLocked(room, connID) {
		out = append(out, toRoom(room, e.typingUsersLocked(room)))
	}
	return out
}

// Typing mutates the per-room typing set and broadcasts the updated view to
// the room. No-op without a session.
func (e *Engine) Typing(connID string, isTyping bool) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[connID]
	if !ok {
		return nil
	}

	if isTyping {
		entries := e.typing[sess.Room]
		if entries == nil {
			entries = make(map[string]string)
			e.typing[sess.Room] = entries
		}
		entries[connID] = sess.Username
	} else {
		e.clearTypingLocked(sess.Room, connID)
	}

	return []Outbound{toRoom(sess.Room, e.typingUsersLocked(sess.Room))}
}

// PrivateMessage logs the message and delivers it to the recipient connection
// and back to the sender. Delivery is best-effort: a vanished recipient means
// the send is silently dropped by the dispatcher.
func (e *Engine) PrivateMessage(connID, to, text string) []Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()

	sender := anonymousSender
	if sess, ok := e.sessions[connID]; ok {
		sender = sess.Username
	}
	var recipient string
	if sess, ok := e.sessions[to]; ok {
		recipient = sess.Username
	}

	// Stored with no room so room pagination and search never expose it;
	// the log entry exists so read receipts can find it.
	msg := e.appendLocked(models.Message{
		Sender:      sender,
		SenderID:    connID,
		Text:        text,
		IsPrivate:   true,
		RecipientID: to,
		Recipient:   recipient,
	})

	evt := models.Event{Type: models.EventPrivateMessage, Message: &msg}
	return []Outbound{toConn(to, evt), toConn(connID, evt)}
}

// MarkRead flips the read flag on every unread private message from senderID
// to recipientID and notifies the sender with the newly read ids. Idempotent:
// a second call finds nothing and emits nothing.
func (e *Engine) MarkRead(senderID, recipientID string) []Outbound {
	readIDs := e.log.MutateAll(func(m *models.Message) bool {
		if m.IsPrivate && m.SenderID == senderID && m.RecipientID == recipientID && !m.Read {
			m.Read = true
			return true
		}
		return false
	})
	if len(readIDs) == 0 {
		return nil
	}

	return []Outbound{toConn(senderID, models.Event{
		Type:        models.EventMessageRead,
		SenderID:    senderID,
		RecipientID: recipientID,
		MessageIDs:  readIDs,
	})}
}

// React records the user's single live reaction on a message, overwriting any
// prior one, and re-broadcasts the full reaction map to the message's room.
// Unknown message ids are silent no-ops; any glyph string is accepted.
func (e *Engine) React(connID string, messageID int64, reaction, userID string) []Outbound {
	if userID == "" {
		userID = connID
	}

	var room string
	var reactions map[string]string
	_, ok := e.log.Mutate(messageID, func(m *models.Message) {
		if m.Reactions == nil {
			m.Reactions = make(map[string]string)
		}
		m.Reactions[userID] = reaction
		room = m.Room
		reactions = make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			reactions[k] = v
		}
	})
	if !ok || room == "" {
		return nil
	}

	return []Outbound{toRoom(room, models.Event{
		Type:      models.EventMessageReaction,
		MessageID: messageID,
		Reactions: reactions,
	})}
}

// Sessions returns a snapshot of every live session, ordered by username for
// stable output.
func (e *Engine) Sessions() []models.UserInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	users := make([]models.UserInfo, 0, len(e.sessions))
	for _, s := range e.sessions {
		users = append(users, models.UserInfo{ID: s.ConnID, Username: s.Username, Room: s.Room})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// RoomConnections resolves a room to the connection ids currently in it. The
// dispatcher uses this to fan out room-addressed events.
func (e *Engine) RoomConnections(room string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	for id, s := range e.sessions {
		if s.Room == room {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) Rooms() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roomListLocked()
}

func (e *Engine) appendLocked(msg models.Message) models.Message {
	stored := e.log.Append(msg)
	if e.archiver != nil {
		go func(m models.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archiver.Save(ctx, m); err != nil {
				logger.Error("Error archiving message %d: %v", m.ID, err)
			}
		}(stored)
	}
	return stored
}

// userListLocked derives the room's presence view from the session table.
// Presence is always a pure function of current sessions, never a cache.
func (e *Engine) userListLocked(room string) models.Event {
	users := make([]models.UserInfo, 0)
	for id, s := range e.sessions {
		if s.Room == room {
			users = append(users, models.UserInfo{ID: id, Username: s.Username, Room: room})
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return models.Event{Type: models.EventUserList, Room: room, Users: users}
}

func (e *Engine) typingUsersLocked(room string) models.Event {
	names := make([]string, 0)
	for _, name := range e.typing[room] {
		names = append(names, name)
	}
	sort.Strings(names)
	return models.Event{Type: models.EventTypingUsers, Room: room, TypingUsers: names}
}

func (e *Engine) clearTypingLocked(room, connID string) bool {
	entries, ok := e.typing[room]
	if !ok {
		return false
	}
	if _, present := entries[connID]; !present {
		return false
	}
	delete(entries, connID)
	return true
}

func (e *Engine) roomListLocked() []string {
	rooms := make([]string, len(e.rooms))
	copy(rooms, e.rooms)
	return rooms
}
