package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
	"github.com/viveksharma1514/UniVerse/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const notificationColumns = `id, recipient_id, sender_id, type, title, message,
	entity_type, entity_id, is_read, priority, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var entityType *string
	var entityID *uuid.UUID
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.SenderID,
		&n.Type,
		&n.Title,
		&n.Message,
		&entityType,
		&entityID,
		&n.IsRead,
		&n.Priority,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entityType != nil && entityID != nil {
		n.RelatedEntity = &models.RelatedEntity{Type: *entityType, ID: *entityID}
	}
	return n, nil
}

func notificationArgs(n *models.Notification) []any {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	var entityType *string
	var entityID *uuid.UUID
	if n.RelatedEntity != nil {
		entityType = &n.RelatedEntity.Type
		entityID = &n.RelatedEntity.ID
	}
	return []any{
		n.ID, n.RecipientID, n.SenderID, n.Type, n.Title, n.Message,
		entityType, entityID, n.IsRead, n.Priority, n.CreatedAt,
	}
}

// observeLatency records one durable-store operation duration.
func observeLatency(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CreateNotification persists a single notification record.
func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer observeLatency("create_notification", time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, notificationArgs(n)...)
	return err
}

// CreateNotifications persists a batch of records atomically. Either all
// rows are inserted or none.
func (s *PostgresStore) CreateNotifications(ctx context.Context, ns []*models.Notification) error {
	defer observeLatency("create_notifications", time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, n := range ns {
		batch.Queue(`
			INSERT INTO notifications (`+notificationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, notificationArgs(n)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListNotifications returns the recipient's notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error) {
	defer observeLatency("list_notifications", time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// CountUnread returns the recipient's unread notification count.
func (s *PostgresStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID).Scan(&count)
	return count, err
}

// MarkNotificationRead flips is_read on a single record, scoped to the
// recipient. Returns (nil, nil) if no such record exists.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING `+notificationColumns+`
	`, id, recipientID)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

// MarkAllNotificationsRead flips is_read on all of the recipient's unread
// records and returns how many were updated.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteNotification removes a record scoped to the recipient. A missing
// record is not an error; the bool reports whether a row was deleted.
func (s *PostgresStore) DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications WHERE id = $1 AND recipient_id = $2
	`, id, recipientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasRecentNotification reports whether a record with the same recipient,
// type and related entity was created at or after the given time.
func (s *PostgresStore) HasRecentNotification(ctx context.Context, recipientID uuid.UUID, typ string, entity models.RelatedEntity, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE recipient_id = $1 AND type = $2
			  AND entity_type = $3 AND entity_id = $4
			  AND created_at >= $5
		)
	`, recipientID, typ, entity.Type, entity.ID, since).Scan(&exists)
	return exists, err
}

// CreateConversation inserts a conversation and its participant rows in one
// transaction.
func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, is_group, name, last_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $5)
	`, c.ID, c.IsGroup, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	for _, p := range c.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
		`, c.ID, p)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetConversation retrieves a conversation with its participants.
// Returns (nil, nil) when not found.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, is_group, name, last_message_id, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.IsGroup, &c.Name, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p uuid.UUID
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, p)
	}
	return c, rows.Err()
}

// ListConversationsForUser returns the user's conversations sorted by most
// recent activity, with participants and the last message populated.
func (s *PostgresStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		if c.LastMessageID != "" {
			msg, err := s.getMessage(ctx, c.LastMessageID)
			if err != nil {
				return nil, err
			}
			c.LastMessage = msg
		}
		out = append(out, *c)
	}
	return out, nil
}

// CreateMessage persists a chat message.
func (s *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) error {
	defer observeLatency("create_message", time.Now())
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = models.MessageText
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ConversationID, m.SenderID, m.Content, m.Type, m.CreatedAt)
	return err
}

// SetLastMessage updates the conversation's last-message pointer and bumps
// its activity timestamp. Last writer wins.
func (s *PostgresStore) SetLastMessage(ctx context.Context, conversationID uuid.UUID, messageID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET last_message_id = $2, updated_at = NOW()
		WHERE id = $1
	`, conversationID, messageID)
	return err
}

// ListMessages returns one page of a conversation's messages, newest first.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, type, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) getMessage(ctx context.Context, id string) (*models.Message, error) {
	m := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, content, type, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// GetUser retrieves a user by ID. Returns (nil, nil) when not found.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.AttendancePercentage, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// ListUserIDsByRole returns the ids of all users holding a role.
func (s *PostgresStore) ListUserIDsByRole(ctx context.Context, role string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE role = $1`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListUsersByRole returns all users holding a role.
func (s *PostgresStore) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE role = $1 ORDER BY name
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListLowAttendanceStudents returns students below the attendance threshold.
func (s *PostgresStore) ListLowAttendanceStudents(ctx context.Context, threshold float64) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE role = 'student' AND attendance_percentage < $1
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]models.User, error) {
	var out []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.AttendancePercentage, &u.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListMeetingsBetween returns meetings starting within [from, to].
func (s *PostgresStore) ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, teacher_id, starts_at
		FROM meetings WHERE starts_at >= $1 AND starts_at <= $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.Title, &m.TeacherID, &m.StartsAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAssignmentsDueBetween returns assignments due within [from, to).
func (s *PostgresStore) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, teacher_id, due_at
		FROM assignments WHERE due_at >= $1 AND due_at < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.TeacherID, &a.DueAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
