package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// DataStore defines the interface for durable storage of notifications,
// conversations and messages, plus the identity/schedule reads the reminder
// engine needs. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Notification operations. Creates fill in ID and CreatedAt when unset.
	CreateNotification(ctx context.Context, n *models.Notification) error
	CreateNotifications(ctx context.Context, ns []*models.Notification) error
	ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) (bool, error)
	HasRecentNotification(ctx context.Context, recipientID uuid.UUID, typ string, entity models.RelatedEntity, since time.Time) (bool, error)

	// Conversation and message operations
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	SetLastMessage(ctx context.Context, conversationID uuid.UUID, messageID string) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, error)

	// Identity and schedule reads (owned by the CRUD layer, read-only here)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUserIDsByRole(ctx context.Context, role string) ([]uuid.UUID, error)
	ListUsersByRole(ctx context.Context, role string) ([]models.User, error)
	ListLowAttendanceStudents(ctx context.Context, threshold float64) ([]models.User, error)
	ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error)
	ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
}
