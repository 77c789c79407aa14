package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage, MessageVideo:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

func (s MessageStatus) Valid() bool {
	return s.rank() > 0
}

// Advances reports whether next is strictly further along sent→delivered→read.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

// Message is append-only. Seq is assigned by the store at insert time and grows
// monotonically within a conversation.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Seq            int64         `json:"seq"`
	SenderID       uuid.UUID     `json:"sender_id"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"message_type"`
	AttachmentURL  string        `json:"attachment_url,omitempty"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func NewMessage(conversationID, senderID uuid.UUID, content string, typ MessageType) *Message {
	now := time.Now().UTC()
	if typ == "" {
		typ = MessageText
	}
	return &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           typ,
		Status:         MessageSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MessageWithSender is the enriched read model: the message joined with its sender.
type MessageWithSender struct {
	Message
	Sender Profile `json:"sender"`
}
