package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a chat thread between two or more participants. The
// participant set is fixed at creation; messages are only appended.
type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	Participants  []uuid.UUID `json:"participants"`
	IsGroup       bool        `json:"is_group"`
	Name          string      `json:"name,omitempty"` // group conversations only
	LastMessageID string      `json:"last_message_id,omitempty"`
	LastMessage   *Message    `json:"last_message,omitempty"` // populated for listings
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
