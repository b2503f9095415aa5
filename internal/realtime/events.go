package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// Server-to-client event names. These are the wire contract with the
// frontend and must not change without coordinating a client release.
const (
	EventNewNotification      = "new-notification"
	EventNotificationUpdated  = "notification-updated"
	EventAllNotificationsRead = "all-notifications-read"
	EventNotificationDeleted  = "notification-deleted"
	EventReceiveMessage       = "receive-message"
	EventTeachersUpdated      = "teachers-updated"
)

// Client-to-server event names.
const (
	eventAnnounce    = "announce"
	eventJoinChat    = "join-chat"
	eventLeaveChat   = "leave-chat"
	eventSendMessage = "send-message"
)

// Envelope is the JSON frame exchanged over the websocket in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PersonalRoom is the delivery channel for all of one user's connections.
func PersonalRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// ConversationRoom is the opt-in channel joined while a chat view is open.
func ConversationRoom(conversationID uuid.UUID) string {
	return "chat:" + conversationID.String()
}

// Broadcaster is the live-push boundary consumed by the notifier and the
// chat pipeline. Every method is best-effort: delivery to users with no
// live connection is a silent no-op.
type Broadcaster interface {
	// DeliverToUsers pushes an event to every live connection in each
	// target user's personal room.
	DeliverToUsers(userIDs []uuid.UUID, event string, payload any)

	// DeliverToConversation pushes to every connection in the conversation
	// room and to the personal room of every participant except
	// excludeUserID. A connection reachable through both channels receives
	// the event once.
	DeliverToConversation(conversationID uuid.UUID, participants []uuid.UUID, excludeUserID uuid.UUID, event string, payload any)

	// Broadcast pushes an event to every open connection.
	Broadcast(event string, payload any)

	// IsUserInRoom reports whether any of the user's connections currently
	// sit in the given room.
	IsUserInRoom(userID uuid.UUID, room string) bool
}

// MessageSender is implemented by the chat pipeline; the hub routes inbound
// send-message frames through it so the socket path and the REST path share
// one persistence/delivery flow.
type MessageSender interface {
	Send(ctx context.Context, conversationID, senderID uuid.UUID, content, msgType string) (*models.Message, error)
}
