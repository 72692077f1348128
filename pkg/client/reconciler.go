// Package client is the Go SDK for the chat relay. The Reconciler merges the
// three message sources — paginated history, the live push stream and local
// optimistic sends — into one ordered, deduplicated, render-ready view, and
// reconciles presence snapshots and system notices on top of it.
package client

import (
	"fmt"
	"sync"
	"time"

	"chat-relay/internal/models"
)

// RenderedMessage is one entry of the render-ready sequence. Pending marks a
// local optimistic send awaiting its delivery acknowledgment; System marks a
// locally synthesized join/leave notice.
type RenderedMessage struct {
	models.Message
	Pending bool `json:"pending,omitempty"`
	System  bool `json:"system,omitempty"`
}

// PresenceEntry records one ever-seen user. Entries are never removed, only
// flipped offline, so "who has been seen" survives disconnects.
type PresenceEntry struct {
	ConnID string
	Online bool
}

// Notification is the single live cross-room notification. A newer
// qualifying message replaces it.
type Notification struct {
	Room   string
	Sender string
	Text   string
	ID     int64
}

type Reconciler struct {
	mu sync.Mutex

	selfID     string
	selfName   string
	activeRoom string

	paginated []RenderedMessage
	pending   []RenderedMessage
	search    []models.Message
	searching bool
	hasMore   bool

	presence map[string]PresenceEntry
	typing   []string
	rooms    []string

	// joinSeen keys (room, username) pairs whose join notice has already
	// been shown this client lifetime.
	joinSeen map[string]struct{}

	notification *Notification

	fetchInFlight bool

	// Temp ids for pending entries are negative so they can never collide
	// with a server-assigned id.
	nextTempID int64
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		presence:   make(map[string]PresenceEntry),
		rooms:      []string{"General"},
		joinSeen:   make(map[string]struct{}),
		activeRoom: "General",
		nextTempID: -1,
	}
}

func (r *Reconciler) SetIdentity(connID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfID = connID
	r.selfName = username
}

// SelfID returns the server-assigned connection id, once known.
func (r *Reconciler) SelfID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selfID
}

// SetActiveRoom switches the locally active room and clears a notification
// that pointed at it.
func (r *Reconciler) SetActiveRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeRoom = room
	if r.notification != nil && r.notification.Room == room {
		r.notification = nil
	}
}

func (r *Reconciler) ActiveRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeRoom
}

// Apply merges one pushed event into the local view.
func (r *Reconciler) Apply(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch evt.Type {
	case models.EventReceiveMessage, models.EventPrivateMessage:
		if evt.Message != nil {
			r.applyMessageLocked(*evt.Message)
		}

	case models.EventUserList:
		r.mergePresenceLocked(evt.Users)

	case models.EventUserJoined:
		// The join fact for our own announcement is how this client
		// learns its server-assigned connection id.
		if evt.Username == r.selfName && r.selfID == "" {
			r.selfID = evt.UserID
		}
		r.applyJoinNoticeLocked(evt.Username, evt.Room)

	case models.EventUserLeft:
		r.paginated = append(r.paginated, systemNotice(
			fmt.Sprintf("%s left the room: %s", evt.Username, evt.Room), evt.Room))

	case models.EventTypingUsers:
		r.typing = append([]string(nil), evt.TypingUsers...)

	case models.EventRoomList:
		r.rooms = append([]string(nil), evt.Rooms...)

	case models.EventMessageDelivered:
		r.dropPendingLocked(evt.ID)

	case models.EventMessageRead:
		for i := range r.paginated {
			m := &r.paginated[i].Message
			if m.IsPrivate && m.SenderID == evt.SenderID && m.RecipientID == evt.RecipientID && containsID(evt.MessageIDs, m.ID) {
				m.Read = true
			}
		}

	case models.EventMessageReaction:
		for i := range r.paginated {
			if r.paginated[i].ID == evt.MessageID {
				r.paginated[i].Reactions = evt.Reactions
			}
		}
	}
}

func (r *Reconciler) applyMessageLocked(msg models.Message) {
	r.paginated = append(r.paginated, RenderedMessage{Message: msg})

	// Cross-room notification gating: non-private, non-system, another
	// room, not sent by self. A room message that fails the gate means the
	// user is watching the stream, so the live notification is cleared.
	if msg.IsPrivate || msg.Room == "" {
		return
	}
	if msg.Room != r.activeRoom && msg.Sender != r.selfName {
		r.notification = &Notification{Room: msg.Room, Sender: msg.Sender, Text: msg.Text, ID: msg.ID}
	} else {
		r.notification = nil
	}
}

// applyJoinNoticeLocked renders a join notice at most once per (room, user)
// per client lifetime. Leave notices have no such suppression.
func (r *Reconciler) applyJoinNoticeLocked(username, room string) {
	if room == "" {
		room = "General"
	}
	key := room + "\x00" + username
	if _, seen := r.joinSeen[key]; seen {
		return
	}
	r.joinSeen[key] = struct{}{}
	r.paginated = append(r.paginated, systemNotice(
		fmt.Sprintf("%s joined the room: %s", username, room), room))
}

// mergePresenceLocked folds a presence snapshot in: listed users come (back)
// online, known-but-absent users flip offline, nobody is ever removed.
func (r *Reconciler) mergePresenceLocked(users []models.UserInfo) {
	online := make(map[string]bool, len(users))
	for _, u := range users {
		online[u.Username] = true
		r.presence[u.Username] = PresenceEntry{ConnID: u.ID, Online: true}
	}
	for name, entry := range r.presence {
		if !online[name] {
			entry.Online = false
			r.presence[name] = entry
		}
	}
}

// AddPending registers an optimistic send and returns its rendered form. The
// entry stays until a delivery acknowledgment arrives — indefinitely if none
// ever does.
func (r *Reconciler) AddPending(text string, attachment *models.Attachment) RenderedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := RenderedMessage{
		Message: models.Message{
			ID:         r.nextTempID,
			Sender:     r.selfName,
			SenderID:   r.selfID,
			Room:       r.activeRoom,
			Text:       text,
			Attachment: attachment,
			Timestamp:  time.Now(),
		},
		Pending: true,
	}
	r.nextTempID--
	r.pending = append(r.pending, msg)
	return msg
}

// dropPendingLocked clears the acknowledged entry. The ack carries the
// server-assigned id, which never matches a local temp id, so sends being
// serialized per connection the oldest pending entry is the acknowledged one.
func (r *Reconciler) dropPendingLocked(id int64) {
	for i := range r.pending {
		if r.pending[i].ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
	if len(r.pending) > 0 {
		r.pending = r.pending[1:]
	}
}

// PendingCount reports how many optimistic sends still await acknowledgment.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// ApplyHistory merges one fetched history page. Older pages are prepended;
// a non-append call replaces the confirmed sequence (room switch).
func (r *Reconciler) ApplyHistory(msgs []models.Message, hasMore, prepend bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page := make([]RenderedMessage, 0, len(msgs))
	for _, m := range msgs {
		page = append(page, RenderedMessage{Message: m})
	}

	if prepend {
		r.paginated = append(page, r.paginated...)
	} else {
		r.paginated = page
	}
	r.hasMore = hasMore
}

// BeginFetch marks a pagination fetch in flight. It returns false when one
// already is, suppressing re-entrant scroll-triggered fetches.
func (r *Reconciler) BeginFetch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchInFlight {
		return false
	}
	r.fetchInFlight = true
	return true
}

func (r *Reconciler) EndFetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchInFlight = false
}

func (r *Reconciler) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMore
}

// SetSearchResults replaces the rendered sequence with search results until
// ClearSearch is called.
func (r *Reconciler) SetSearchResults(msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.search = append([]models.Message(nil), msgs...)
	r.searching = true
}

func (r *Reconciler) ClearSearch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.search = nil
	r.searching = false
}

// Rendered returns the render-ready sequence: search results while search
// mode is active, otherwise confirmed history followed by pending sends.
func (r *Reconciler) Rendered() []RenderedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.searching {
		out := make([]RenderedMessage, 0, len(r.search))
		for _, m := range r.search {
			out = append(out, RenderedMessage{Message: m})
		}
		return out
	}

	out := make([]RenderedMessage, 0, len(r.paginated)+len(r.pending))
	out = append(out, r.paginated...)
	out = append(out, r.pending...)
	return out
}

func (r *Reconciler) Presence() map[string]PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]PresenceEntry, len(r.presence))
	for k, v := range r.presence {
		out[k] = v
	}
	return out
}

func (r *Reconciler) TypingUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.typing...)
}

func (r *Reconciler) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rooms...)
}

func (r *Reconciler) Notification() *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notification == nil {
		return nil
	}
	n := *r.notification
	return &n
}

func (r *Reconciler) DismissNotification() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notification = nil
}

func systemNotice(text, room string) RenderedMessage {
	return RenderedMessage{
		Message: models.Message{Text: text, Room: room, Timestamp: time.Now()},
		System:  true,
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
