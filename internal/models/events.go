package models

type EventType string

// Client-to-server event types.
const (
	EventUserJoin        EventType = "user_join"
	EventJoinRoom        EventType = "join_room"
	EventLeaveRoom       EventType = "leave_room"
	EventCreateRoom      EventType = "create_room"
	EventSendMessage     EventType = "send_message"
	EventTyping          EventType = "typing"
	EventPrivateMessage  EventType = "private_message"
	EventMessageRead     EventType = "message_read"
	EventMessageReaction EventType = "message_reaction"
)

// Server-to-client event types. EventPrivateMessage and EventMessageRead
// travel in both directions.
const (
	EventRoomList         EventType = "room_list"
	EventUserList         EventType = "user_list"
	EventUserJoined       EventType = "user_joined"
	EventUserLeft         EventType = "user_left"
	EventReceiveMessage   EventType = "receive_message"
	EventMessageDelivered EventType = "message_delivered"
	EventTypingUsers      EventType = "typing_users"
)

// Event is the wire envelope for the bidirectional channel. One flat struct
// with omitempty fields covers every event kind, matching the payload shapes
// of the reference protocol.
type Event struct {
	Type EventType `json:"type"`

	// Identity and room addressing.
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
	Name     string `json:"name,omitempty"`

	// Message sends.
	Text       string      `json:"message,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	To         string      `json:"to,omitempty"`

	// Typing indicator.
	IsTyping bool `json:"isTyping,omitempty"`

	// Reactions and read receipts.
	MessageID   int64   `json:"messageId,omitempty"`
	Reaction    string  `json:"reaction,omitempty"`
	UserID      string  `json:"userId,omitempty"`
	SenderID    string  `json:"senderId,omitempty"`
	RecipientID string  `json:"recipientId,omitempty"`
	MessageIDs  []int64 `json:"messageIds,omitempty"`

	// Server-pushed payloads.
	ID          int64             `json:"id,omitempty"`
	Message     *Message          `json:"messageData,omitempty"`
	Rooms       []string          `json:"rooms,omitempty"`
	Users       []UserInfo        `json:"users,omitempty"`
	TypingUsers []string          `json:"typingUsers,omitempty"`
	Reactions   map[string]string `json:"reactions,omitempty"`
}
