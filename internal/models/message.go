package models

import "time"

// Attachment is an opaque payload blob carried alongside a message. The
// server never inspects it; encoding is a client concern.
type Attachment struct {
	Data     string `json:"file"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

type Message struct {
	ID          int64             `json:"id"`
	Sender      string            `json:"sender"`
	SenderID    string            `json:"senderId"`
	Room        string            `json:"room,omitempty"`
	Text        string            `json:"message"`
	Attachment  *Attachment       `json:"attachment,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	IsPrivate   bool              `json:"isPrivate,omitempty"`
	RecipientID string            `json:"recipientId,omitempty"`
	Recipient   string            `json:"recipient,omitempty"`
	Read        bool              `json:"read,omitempty"`
	Reactions   map[string]string `json:"reactions,omitempty"`
}

// Session binds one live connection to one username and one current room.
type Session struct {
	ConnID   string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"room"`
}

// UserInfo is the presence-view entry broadcast in user_list payloads.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"room"`
}
