package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/notify"
)

// fakeStore is an in-memory DataStore for sweep tests. The notification
// side is real enough for the notifier's duplicate suppression to work.
type fakeStore struct {
	notifications []*models.Notification
	meetings      []models.Meeting
	assignments   []models.Assignment
	students      []uuid.UUID
	lowAttendance []models.User

	meetingsErr error
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) CreateNotifications(ctx context.Context, ns []*models.Notification) error {
	for _, n := range ns {
		if err := f.CreateNotification(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Notification, error) {
	return nil, nil
}
func (f *fakeStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeStore) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	return nil, nil
}
func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeStore) DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeStore) HasRecentNotification(ctx context.Context, recipientID uuid.UUID, typ string, entity models.RelatedEntity, since time.Time) (bool, error) {
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && n.Type == typ &&
			n.RelatedEntity != nil && *n.RelatedEntity == entity &&
			!n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, c *models.Conversation) error { return nil }
func (f *fakeStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return nil, nil
}
func (f *fakeStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return nil, nil
}
func (f *fakeStore) CreateMessage(ctx context.Context, m *models.Message) error { return nil }
func (f *fakeStore) SetLastMessage(ctx context.Context, conversationID uuid.UUID, messageID string) error {
	return nil
}
func (f *fakeStore) ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, error) {
	return nil, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, nil
}
func (f *fakeStore) ListUserIDsByRole(ctx context.Context, role string) ([]uuid.UUID, error) {
	if role == models.RoleStudent {
		return f.students, nil
	}
	return nil, nil
}
func (f *fakeStore) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	return nil, nil
}
func (f *fakeStore) ListLowAttendanceStudents(ctx context.Context, threshold float64) ([]models.User, error) {
	return f.lowAttendance, nil
}
func (f *fakeStore) ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	if f.meetingsErr != nil {
		return nil, f.meetingsErr
	}
	var out []models.Meeting
	for _, m := range f.meetings {
		if !m.StartsAt.Before(from) && m.StartsAt.Before(to) {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStore) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.assignments {
		if !a.DueAt.Before(from) && a.DueAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) DeliverToUsers(userIDs []uuid.UUID, event string, payload any) {}
func (nopBroadcaster) DeliverToConversation(conversationID uuid.UUID, participants []uuid.UUID, excludeUserID uuid.UUID, event string, payload any) {
}
func (nopBroadcaster) Broadcast(event string, payload any)             {}
func (nopBroadcaster) IsUserInRoom(userID uuid.UUID, room string) bool { return false }

func newTestEngine(ds *fakeStore) *Engine {
	notifier := notify.NewService(ds, nil, nopBroadcaster{}, zerolog.Nop(), 24*time.Hour)
	return NewEngine(ds, notifier, zerolog.Nop(), Config{})
}

func countByType(ns []*models.Notification, typ string) int {
	var n int
	for _, entry := range ns {
		if entry.Type == typ {
			n++
		}
	}
	return n
}

func TestSweepRemindsStudentsAboutUpcomingMeetings(t *testing.T) {
	ds := &fakeStore{
		students: []uuid.UUID{uuid.New(), uuid.New()},
		meetings: []models.Meeting{
			{ID: uuid.New(), Title: "Thesis review", TeacherID: uuid.New(), StartsAt: time.Now().Add(20 * time.Minute)},
		},
	}
	e := newTestEngine(ds)

	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeMeetingReminder); got != len(ds.students) {
		t.Fatalf("created %d meeting reminders, want one per student (%d)", got, len(ds.students))
	}
}

func TestSweepIgnoresMeetingsOutsideWindow(t *testing.T) {
	ds := &fakeStore{
		students: []uuid.UUID{uuid.New()},
		meetings: []models.Meeting{
			{ID: uuid.New(), Title: "Too soon", TeacherID: uuid.New(), StartsAt: time.Now().Add(2 * time.Minute)},
			{ID: uuid.New(), Title: "Too far", TeacherID: uuid.New(), StartsAt: time.Now().Add(2 * time.Hour)},
		},
	}
	e := newTestEngine(ds)

	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeMeetingReminder); got != 0 {
		t.Fatalf("created %d meeting reminders, want 0 for out-of-window meetings", got)
	}
}

func TestOverlappingSweepsCreateOneReminder(t *testing.T) {
	student := uuid.New()
	ds := &fakeStore{
		students: []uuid.UUID{student},
		meetings: []models.Meeting{
			{ID: uuid.New(), Title: "Thesis review", TeacherID: uuid.New(), StartsAt: time.Now().Add(30 * time.Minute)},
		},
	}
	e := newTestEngine(ds)

	// A meeting 30 minutes out falls inside the window for two consecutive
	// 15-minute ticks; the duplicate-suppression window must absorb the
	// second pass.
	e.Sweep(context.Background())
	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeMeetingReminder); got != 1 {
		t.Fatalf("created %d meeting reminders across overlapping sweeps, want 1", got)
	}
}

func TestSweepRemindsAboutAssignmentsDueTomorrow(t *testing.T) {
	now := time.Now()
	tomorrowNoon := time.Date(now.Year(), now.Month(), now.Day()+1, 12, 0, 0, 0, now.Location())
	ds := &fakeStore{
		students: []uuid.UUID{uuid.New(), uuid.New()},
		assignments: []models.Assignment{
			{ID: uuid.New(), Title: "Problem set 3", TeacherID: uuid.New(), DueAt: tomorrowNoon},
			{ID: uuid.New(), Title: "Due next week", TeacherID: uuid.New(), DueAt: now.AddDate(0, 0, 7)},
		},
	}
	e := newTestEngine(ds)

	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeAssignmentReminder); got != len(ds.students) {
		t.Fatalf("created %d assignment reminders, want one per student (%d)", got, len(ds.students))
	}
}

func TestSweepAlertsLowAttendanceStudents(t *testing.T) {
	flagged := models.User{ID: uuid.New(), Name: "Sam", Role: models.RoleStudent, AttendancePercentage: 60}
	ds := &fakeStore{lowAttendance: []models.User{flagged}}
	e := newTestEngine(ds)

	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeAttendanceAlert); got != 1 {
		t.Fatalf("created %d attendance alerts, want 1", got)
	}
	n := ds.notifications[0]
	if n.RecipientID != flagged.ID {
		t.Errorf("recipient = %s, want %s", n.RecipientID, flagged.ID)
	}
	if n.SenderID != nil {
		t.Error("attendance alerts are system-generated and carry no sender")
	}
}

func TestFailedSubSweepDoesNotStopOthers(t *testing.T) {
	ds := &fakeStore{
		meetingsErr:   errors.New("meetings table unavailable"),
		students:      []uuid.UUID{uuid.New()},
		lowAttendance: []models.User{{ID: uuid.New()}},
	}
	e := newTestEngine(ds)

	e.Sweep(context.Background())

	if got := countByType(ds.notifications, models.TypeAttendanceAlert); got != 1 {
		t.Fatalf("attendance sweep should still run after the meetings sweep fails, got %d alerts", got)
	}
}
