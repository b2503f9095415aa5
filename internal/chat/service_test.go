package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
)

// fakeStore is an in-memory DataStore covering what the chat pipeline
// touches.
type fakeStore struct {
	conversations map[uuid.UUID]*models.Conversation
	messages      []*models.Message
	users         map[uuid.UUID]*models.User

	createMsgErr  error
	setLastErr    error
	lastMessageID map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		users:         make(map[uuid.UUID]*models.User),
		lastMessageID: make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return nil
}
func (f *fakeStore) CreateNotifications(ctx context.Context, ns []*models.Notification) error {
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
	return false, nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.conversations[c.ID] = c
	return nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return f.conversations[id], nil
}

func (f *fakeStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if f.createMsgErr != nil {
		return f.createMsgErr
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) SetLastMessage(ctx context.Context, conversationID uuid.UUID, messageID string) error {
	if f.setLastErr != nil {
		return f.setLastErr
	}
	f.lastMessageID[conversationID] = messageID
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]models.Message, error) {
	var all []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			all = append(all, *m)
		}
	}
	// Newest first, the contract the real stores implement.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := (page - 1) * limit
	if start >= len(all) {
		return nil, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}
func (f *fakeStore) ListUserIDsByRole(ctx context.Context, role string) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeStore) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	return nil, nil
}
func (f *fakeStore) ListLowAttendanceStudents(ctx context.Context, threshold float64) ([]models.User, error) {
	return nil, nil
}
func (f *fakeStore) ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	return nil, nil
}
func (f *fakeStore) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	return nil, nil
}

// recordedDelivery captures one conversation delivery for assertions.
type recordedDelivery struct {
	conversationID uuid.UUID
	participants   []uuid.UUID
	excludeUserID  uuid.UUID
	event          string
	payload        any
}

type fakeBroadcaster struct {
	deliveries []recordedDelivery
	inRoom     map[uuid.UUID]bool
}

func (f *fakeBroadcaster) DeliverToUsers(userIDs []uuid.UUID, event string, payload any) {}

func (f *fakeBroadcaster) DeliverToConversation(conversationID uuid.UUID, participants []uuid.UUID, excludeUserID uuid.UUID, event string, payload any) {
	f.deliveries = append(f.deliveries, recordedDelivery{
		conversationID: conversationID,
		participants:   participants,
		excludeUserID:  excludeUserID,
		event:          event,
		payload:        payload,
	})
}

func (f *fakeBroadcaster) Broadcast(event string, payload any) {}

func (f *fakeBroadcaster) IsUserInRoom(userID uuid.UUID, room string) bool {
	return f.inRoom[userID]
}

func seedConversation(f *fakeStore, participants ...uuid.UUID) *models.Conversation {
	conv := &models.Conversation{ID: uuid.New(), Participants: participants}
	f.conversations[conv.ID] = conv
	return conv
}

func TestSendPersistsUpdatesPointerAndDelivers(t *testing.T) {
	ds := newFakeStore()
	hub := &fakeBroadcaster{}
	svc := NewService(ds, hub, nil, zerolog.Nop())

	alice, bob := uuid.New(), uuid.New()
	ds.users[alice] = &models.User{ID: alice, Name: "Alice", Role: models.RoleStudent}
	conv := seedConversation(ds, alice, bob)

	msg, err := svc.Send(context.Background(), conv.ID, alice, "hello", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("message should get an id")
	}
	if msg.Type != models.MessageText {
		t.Errorf("type = %q, want default %q", msg.Type, models.MessageText)
	}
	if msg.SenderName != "Alice" {
		t.Errorf("sender name = %q, want populated display name", msg.SenderName)
	}

	if len(ds.messages) != 1 {
		t.Fatalf("store holds %d messages, want 1", len(ds.messages))
	}
	if got := ds.lastMessageID[conv.ID]; got != msg.ID {
		t.Errorf("last-message pointer = %q, want %q", got, msg.ID)
	}

	if len(hub.deliveries) != 1 {
		t.Fatalf("hub recorded %d deliveries, want 1", len(hub.deliveries))
	}
	d := hub.deliveries[0]
	if d.event != realtime.EventReceiveMessage {
		t.Errorf("event = %q, want %q", d.event, realtime.EventReceiveMessage)
	}
	if d.excludeUserID != alice {
		t.Errorf("excluded user = %s, want the sender %s", d.excludeUserID, alice)
	}
	if d.conversationID != conv.ID {
		t.Errorf("conversation = %s, want %s", d.conversationID, conv.ID)
	}
}

func TestSendValidation(t *testing.T) {
	ds := newFakeStore()
	svc := NewService(ds, &fakeBroadcaster{}, nil, zerolog.Nop())
	alice, bob, eve := uuid.New(), uuid.New(), uuid.New()
	conv := seedConversation(ds, alice, bob)

	if _, err := svc.Send(context.Background(), conv.ID, alice, "", ""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty content: err = %v, want ErrEmptyContent", err)
	}
	if _, err := svc.Send(context.Background(), uuid.New(), alice, "hi", ""); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("unknown conversation: err = %v, want ErrConversationNotFound", err)
	}
	if _, err := svc.Send(context.Background(), conv.ID, eve, "hi", ""); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider: err = %v, want ErrNotParticipant", err)
	}
	long := strings.Repeat("a", maxContentLength+1)
	if _, err := svc.Send(context.Background(), conv.ID, alice, long, ""); err == nil {
		t.Error("oversized content should be rejected")
	}
	if len(ds.messages) != 0 {
		t.Errorf("store holds %d messages, want 0 after rejected sends", len(ds.messages))
	}
}

func TestSendPersistFailureSuppressesDelivery(t *testing.T) {
	ds := newFakeStore()
	ds.createMsgErr = errors.New("db down")
	hub := &fakeBroadcaster{}
	svc := NewService(ds, hub, nil, zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	conv := seedConversation(ds, alice, bob)

	if _, err := svc.Send(context.Background(), conv.ID, alice, "hello", ""); err == nil {
		t.Fatal("expected error from failed persist")
	}
	if len(hub.deliveries) != 0 {
		t.Fatal("no delivery may happen without a durable message")
	}
}

func TestSendSurvivesPointerUpdateFailure(t *testing.T) {
	ds := newFakeStore()
	ds.setLastErr = errors.New("pointer update failed")
	hub := &fakeBroadcaster{}
	svc := NewService(ds, hub, nil, zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	conv := seedConversation(ds, alice, bob)

	msg, err := svc.Send(context.Background(), conv.ID, alice, "hello", "")
	if err != nil {
		t.Fatalf("Send should tolerate a failed pointer update, got %v", err)
	}
	if msg == nil || len(hub.deliveries) != 1 {
		t.Fatal("message should still be persisted and delivered")
	}
}

func TestHistoryReturnsCreationOrder(t *testing.T) {
	ds := newFakeStore()
	svc := NewService(ds, &fakeBroadcaster{}, nil, zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	conv := seedConversation(ds, alice, bob)

	first, err := svc.Send(context.Background(), conv.ID, alice, "first", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	second, err := svc.Send(context.Background(), conv.ID, bob, "second", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := svc.History(context.Background(), conv.ID, alice, 1, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != first.ID || msgs[1].ID != second.ID {
		t.Errorf("order = [%s, %s], want oldest first [%s, %s]",
			msgs[0].ID, msgs[1].ID, first.ID, second.ID)
	}
}

func TestHistoryRequiresParticipation(t *testing.T) {
	ds := newFakeStore()
	svc := NewService(ds, &fakeBroadcaster{}, nil, zerolog.Nop())
	alice, bob, eve := uuid.New(), uuid.New(), uuid.New()
	conv := seedConversation(ds, alice, bob)

	if _, err := svc.History(context.Background(), conv.ID, eve, 1, 50); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider history: err = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.History(context.Background(), uuid.New(), alice, 1, 50); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("unknown conversation: err = %v, want ErrConversationNotFound", err)
	}
}

func TestCreateConversationCollapsesDuplicates(t *testing.T) {
	ds := newFakeStore()
	svc := NewService(ds, &fakeBroadcaster{}, nil, zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()

	conv, err := svc.CreateConversation(context.Background(), alice, []uuid.UUID{bob, bob, alice, uuid.Nil}, false, "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if len(conv.Participants) != 2 {
		t.Errorf("participants = %v, want the two distinct users", conv.Participants)
	}
	if !conv.HasParticipant(alice) || !conv.HasParticipant(bob) {
		t.Error("both users should be participants")
	}
}

func TestCreateConversationRejectsSoloThreads(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeBroadcaster{}, nil, zerolog.Nop())
	alice := uuid.New()

	if _, err := svc.CreateConversation(context.Background(), alice, []uuid.UUID{alice}, false, ""); !errors.Is(err, ErrTooFewParticipants) {
		t.Errorf("err = %v, want ErrTooFewParticipants", err)
	}
}
