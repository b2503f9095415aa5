package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recipient := uuid.New()
	sender := uuid.New()

	n := &models.Notification{
		RecipientID: recipient,
		SenderID:    &sender,
		Type:        models.TypeNewAssignment,
		Title:       "Problem set 3",
		Message:     "Due Friday",
		RelatedEntity: &models.RelatedEntity{
			Type: "assignment",
			ID:   uuid.New(),
		},
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if n.ID == uuid.Nil || n.CreatedAt.IsZero() {
		t.Fatal("create should assign id and created_at")
	}

	got, err := s.ListNotifications(ctx, recipient, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	if got[0].SenderID == nil || *got[0].SenderID != sender {
		t.Errorf("sender = %v, want %s", got[0].SenderID, sender)
	}
	if got[0].RelatedEntity == nil || got[0].RelatedEntity.Type != "assignment" {
		t.Errorf("related entity = %+v, want assignment ref", got[0].RelatedEntity)
	}

	count, err := s.CountUnread(ctx, recipient)
	if err != nil || count != 1 {
		t.Fatalf("CountUnread = (%d, %v), want (1, nil)", count, err)
	}

	updated, err := s.MarkNotificationRead(ctx, n.ID, recipient)
	if err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if updated == nil || !updated.IsRead {
		t.Fatal("record should come back with the read flag set")
	}

	// Scoped to the recipient: someone else's id must not match.
	if miss, err := s.MarkNotificationRead(ctx, n.ID, uuid.New()); err != nil || miss != nil {
		t.Fatalf("foreign recipient = (%v, %v), want (nil, nil)", miss, err)
	}

	deleted, err := s.DeleteNotification(ctx, n.ID, recipient)
	if err != nil || !deleted {
		t.Fatalf("DeleteNotification = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = s.DeleteNotification(ctx, n.ID, recipient)
	if err != nil || deleted {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestSQLiteCreateNotificationsIsAtomicBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []*models.Notification{
		{RecipientID: uuid.New(), Type: models.TypeNewAssignment, Title: "a", Message: ""},
		{RecipientID: uuid.New(), Type: models.TypeNewAssignment, Title: "b", Message: ""},
	}
	if err := s.CreateNotifications(ctx, batch); err != nil {
		t.Fatalf("CreateNotifications: %v", err)
	}
	for _, n := range batch {
		count, err := s.CountUnread(ctx, n.RecipientID)
		if err != nil || count != 1 {
			t.Fatalf("recipient %s unread = (%d, %v), want (1, nil)", n.RecipientID, count, err)
		}
	}
}

func TestSQLiteHasRecentNotification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recipient := uuid.New()
	entity := models.RelatedEntity{Type: "meeting", ID: uuid.New()}

	n := &models.Notification{
		RecipientID:   recipient,
		Type:          models.TypeMeetingReminder,
		Title:         "Meeting soon",
		Message:       "",
		RelatedEntity: &entity,
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	ok, err := s.HasRecentNotification(ctx, recipient, models.TypeMeetingReminder, entity, time.Now().Add(-time.Hour))
	if err != nil || !ok {
		t.Fatalf("within window = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = s.HasRecentNotification(ctx, recipient, models.TypeMeetingReminder, entity, time.Now().Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("future cutoff = (%v, %v), want (false, nil)", ok, err)
	}

	other := models.RelatedEntity{Type: "meeting", ID: uuid.New()}
	ok, err = s.HasRecentNotification(ctx, recipient, models.TypeMeetingReminder, other, time.Now().Add(-time.Hour))
	if err != nil || ok {
		t.Fatalf("different entity = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSQLiteConversationAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	conv := &models.Conversation{Participants: []uuid.UUID{alice, bob}}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got == nil || len(got.Participants) != 2 {
		t.Fatalf("conversation = %+v, want both participants", got)
	}

	if missing, err := s.GetConversation(ctx, uuid.New()); err != nil || missing != nil {
		t.Fatalf("missing conversation = (%v, %v), want (nil, nil)", missing, err)
	}

	var lastID string
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		m := &models.Message{
			ID:             ulid.Make().String(),
			ConversationID: conv.ID,
			SenderID:       alice,
			Content:        fmt.Sprintf("message %d", i),
			Type:           models.MessageText,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		lastID = m.ID
	}
	if err := s.SetLastMessage(ctx, conv.ID, lastID); err != nil {
		t.Fatalf("SetLastMessage: %v", err)
	}

	got, err = s.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.LastMessageID != lastID {
		t.Errorf("last message = %q, want %q", got.LastMessageID, lastID)
	}

	// Newest first.
	msgs, err := s.ListMessages(ctx, conv.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("page 1 has %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != lastID {
		t.Errorf("first of page 1 = %q, want the newest %q", msgs[0].ID, lastID)
	}
	page2, err := s.ListMessages(ctx, conv.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListMessages page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("page 2 has %d messages, want 1", len(page2))
	}

	convs, err := s.ListConversationsForUser(ctx, alice)
	if err != nil {
		t.Fatalf("ListConversationsForUser: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.ID != lastID {
		t.Errorf("listing last message = %+v, want %q populated", convs[0].LastMessage, lastID)
	}
}

func TestSQLiteScheduleAndRoleQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser := func(role string, attendance float64) uuid.UUID {
		id := uuid.New()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, name, role, attendance_percentage)
			VALUES (?, ?, ?, ?)
		`, id.String(), "user-"+id.String()[:8], role, attendance)
		if err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return id
	}

	student := seedUser(models.RoleStudent, 90)
	flagged := seedUser(models.RoleStudent, 60)
	teacher := seedUser(models.RoleTeacher, 100)

	ids, err := s.ListUserIDsByRole(ctx, models.RoleStudent)
	if err != nil {
		t.Fatalf("ListUserIDsByRole: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d students, want 2", len(ids))
	}

	teachers, err := s.ListUsersByRole(ctx, models.RoleTeacher)
	if err != nil {
		t.Fatalf("ListUsersByRole: %v", err)
	}
	if len(teachers) != 1 || teachers[0].ID != teacher {
		t.Fatalf("teachers = %+v, want exactly the seeded teacher", teachers)
	}

	low, err := s.ListLowAttendanceStudents(ctx, 75)
	if err != nil {
		t.Fatalf("ListLowAttendanceStudents: %v", err)
	}
	if len(low) != 1 || low[0].ID != flagged {
		t.Fatalf("low attendance = %+v, want only the flagged student", low)
	}
	_ = student

	now := time.Now().UTC()
	meetingID := uuid.New()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, teacher_id, starts_at) VALUES (?, ?, ?, ?)
	`, meetingID.String(), "Thesis review", teacher.String(), now.Add(20*time.Minute)); err != nil {
		t.Fatalf("seed meeting: %v", err)
	}

	meetings, err := s.ListMeetingsBetween(ctx, now.Add(5*time.Minute), now.Add(35*time.Minute))
	if err != nil {
		t.Fatalf("ListMeetingsBetween: %v", err)
	}
	if len(meetings) != 1 || meetings[0].ID != meetingID {
		t.Fatalf("meetings = %+v, want the seeded meeting", meetings)
	}
	if out, err := s.ListMeetingsBetween(ctx, now.Add(30*time.Minute), now.Add(35*time.Minute)); err != nil || len(out) != 0 {
		t.Fatalf("out-of-window meetings = (%v, %v), want none", out, err)
	}

	assignmentID := uuid.New()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, title, teacher_id, due_at) VALUES (?, ?, ?, ?)
	`, assignmentID.String(), "Problem set 3", teacher.String(), now.Add(26*time.Hour)); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	assignments, err := s.ListAssignmentsDueBetween(ctx, now.Add(24*time.Hour), now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("ListAssignmentsDueBetween: %v", err)
	}
	if len(assignments) != 1 || assignments[0].ID != assignmentID {
		t.Fatalf("assignments = %+v, want the seeded assignment", assignments)
	}
}
