package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// SQLiteStore handles SQLite database operations. Used in development when
// no DATABASE_URL is configured; implements the same DataStore interface as
// PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/universe.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/universe.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		attendance_percentage REAL NOT NULL DEFAULT 100,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		sender_id TEXT,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		priority TEXT NOT NULL DEFAULT 'medium',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created
		ON notifications(recipient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_dedup
		ON notifications(recipient_id, type, entity_type, entity_id, created_at);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		is_group INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		last_message_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		user_id TEXT NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user
		ON conversation_participants(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
		ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		starts_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		due_at DATETIME NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func sqliteNotificationArgs(n *models.Notification) []any {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	var entityType, entityID any
	if n.RelatedEntity != nil {
		entityType = n.RelatedEntity.Type
		entityID = n.RelatedEntity.ID.String()
	}
	return []any{
		n.ID.String(), n.RecipientID.String(), nullableID(n.SenderID),
		n.Type, n.Title, n.Message, entityType, entityID,
		n.IsRead, n.Priority, n.CreatedAt.UTC(),
	}
}

func scanSQLiteNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var id, recipient string
	var sender, entityType, entityID sql.NullString
	err := row.Scan(
		&id, &recipient, &sender, &n.Type, &n.Title, &n.Message,
		&entityType, &entityID, &n.IsRead, &n.Priority, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.ID = uuid.MustParse(id)
	n.RecipientID = uuid.MustParse(recipient)
	if sender.Valid {
		sid := uuid.MustParse(sender.String)
		n.SenderID = &sid
	}
	if entityType.Valid && entityID.Valid {
		n.RelatedEntity = &models.RelatedEntity{
			Type: entityType.String,
			ID:   uuid.MustParse(entityID.String),
		}
	}
	return n, nil
}

const sqliteNotificationInsert = `
	INSERT INTO notifications
		(id, recipient_id, sender_id, type, title, message,
		 entity_type, entity_id, is_read, priority, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateNotification persists a single notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, sqliteNotificationInsert, sqliteNotificationArgs(n)...)
	return err
}

// CreateNotifications persists a batch atomically.
func (s *SQLiteStore) CreateNotifications(ctx context.Context, ns []*models.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, n := range ns {
		if _, err := tx.ExecContext(ctx, sqliteNotificationInsert, sqliteNotificationArgs(n)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListNotifications returns the recipient's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, sender_id, type, title, message,
		       entity_type, entity_id, is_read, priority, created_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, recipientID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanSQLiteNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// CountUnread returns the recipient's unread notification count.
func (s *SQLiteStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = ? AND is_read = 0
	`, recipientID.String()).Scan(&count)
	return count, err
}

// MarkNotificationRead flips is_read on a single record, scoped to the
// recipient. Returns (nil, nil) if no such record exists.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1
		WHERE id = ? AND recipient_id = ?
	`, id.String(), recipientID.String())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_id, sender_id, type, title, message,
		       entity_type, entity_id, is_read, priority, created_at
		FROM notifications WHERE id = ?
	`, id.String())
	n, err := scanSQLiteNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

// MarkAllNotificationsRead flips is_read on all unread records.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1
		WHERE recipient_id = ? AND is_read = 0
	`, recipientID.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNotification removes a record scoped to the recipient.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id = ? AND recipient_id = ?
	`, id.String(), recipientID.String())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasRecentNotification reports whether a matching record was created at or
// after the given time.
func (s *SQLiteStore) HasRecentNotification(ctx context.Context, recipientID uuid.UUID, typ string, entity models.RelatedEntity, since time.Time) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = ? AND type = ?
		  AND entity_type = ? AND entity_id = ?
		  AND created_at >= ?
	`, recipientID.String(), typ, entity.Type, entity.ID.String(), since.UTC()).Scan(&count)
	return count > 0, err
}

// CreateConversation inserts a conversation and its participant rows.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, is_group, name, last_message_id, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
	`, c.ID.String(), c.IsGroup, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	for _, p := range c.Participants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES (?, ?)
		`, c.ID.String(), p.String())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetConversation retrieves a conversation with its participants.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, is_group, name, last_message_id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id.String()).Scan(&idStr, &c.IsGroup, &c.Name, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.ID = uuid.MustParse(idStr)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, uuid.MustParse(p))
	}
	return c, rows.Err()
}

// ListConversationsForUser returns the user's conversations sorted by most
// recent activity, with participants and the last message populated.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(id))
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
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = models.MessageText
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID.String(), m.SenderID.String(), m.Content, m.Type, m.CreatedAt.UTC())
	return err
}

// SetLastMessage updates the conversation's last-message pointer and bumps
// its activity timestamp.
func (s *SQLiteStore) SetLastMessage(ctx context.Context, conversationID uuid.UUID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = ?, updated_at = ?
		WHERE id = ?
	`, messageID, time.Now().UTC(), conversationID.String())
	return err
}

// ListMessages returns one page of a conversation's messages, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, type, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, conversationID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanSQLiteMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	var conv, sender string
	err := row.Scan(&m.ID, &conv, &sender, &m.Content, &m.Type, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ConversationID = uuid.MustParse(conv)
	m.SenderID = uuid.MustParse(sender)
	return m, nil
}

func (s *SQLiteStore) getMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, type, created_at
		FROM messages WHERE id = ?
	`, id)
	m, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanSQLiteUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var id string
	err := row.Scan(&id, &u.Name, &u.Email, &u.Role, &u.AttendancePercentage, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = uuid.MustParse(id)
	return u, nil
}

// GetUser retrieves a user by ID. Returns (nil, nil) when not found.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE id = ?
	`, id.String())
	u, err := scanSQLiteUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// ListUserIDsByRole returns the ids of all users holding a role.
func (s *SQLiteStore) ListUserIDsByRole(ctx context.Context, role string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE role = ?`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uuid.MustParse(id))
	}
	return out, rows.Err()
}

// ListUsersByRole returns all users holding a role.
func (s *SQLiteStore) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE role = ? ORDER BY name
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListLowAttendanceStudents returns students below the attendance threshold.
func (s *SQLiteStore) ListLowAttendanceStudents(ctx context.Context, threshold float64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role, attendance_percentage, created_at
		FROM users WHERE role = 'student' AND attendance_percentage < ?
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListMeetingsBetween returns meetings starting within [from, to].
func (s *SQLiteStore) ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, teacher_id, starts_at
		FROM meetings WHERE starts_at >= ? AND starts_at <= ?
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Meeting
	for rows.Next() {
		var m models.Meeting
		var id, teacher string
		if err := rows.Scan(&id, &m.Title, &teacher, &m.StartsAt); err != nil {
			return nil, err
		}
		m.ID = uuid.MustParse(id)
		m.TeacherID = uuid.MustParse(teacher)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAssignmentsDueBetween returns assignments due within [from, to).
func (s *SQLiteStore) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, teacher_id, due_at
		FROM assignments WHERE due_at >= ? AND due_at < ?
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		var id, teacher string
		if err := rows.Scan(&id, &a.Title, &teacher, &a.DueAt); err != nil {
			return nil, err
		}
		a.ID = uuid.MustParse(id)
		a.TeacherID = uuid.MustParse(teacher)
		out = append(out, a)
	}
	return out, rows.Err()
}
