package models

import (
	"time"

	"github.com/google/uuid"
)

// Message content types.
const (
	MessageText = "text"
	MessageFile = "file"
)

// Message is an immutable chat message. IDs are ULIDs so lexical order
// matches creation order within a conversation.
type Message struct {
	ID             string    `json:"id"` // ULID
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"` // populated for live payloads
	SenderRole     string    `json:"sender_role,omitempty"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}
