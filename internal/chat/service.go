package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/notify"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrNotParticipant       = errors.New("chat: sender is not a participant")
	ErrEmptyContent         = errors.New("chat: content is required")
	ErrTooFewParticipants   = errors.New("chat: a conversation needs at least two participants")
)

const maxContentLength = 4096

// Service is the chat delivery pipeline: persist the message, bump the
// conversation's last-message pointer, then relay to the other
// participants. The durable log is the ordering authority; live pushes are
// best-effort.
type Service struct {
	store    store.DataStore
	hub      realtime.Broadcaster
	notifier *notify.Service
	log      zerolog.Logger
}

// NewService creates a chat pipeline. notifier may be nil to disable the
// cross-channel new-message alerts.
func NewService(ds store.DataStore, hub realtime.Broadcaster, notifier *notify.Service, log zerolog.Logger) *Service {
	return &Service{
		store:    ds,
		hub:      hub,
		notifier: notifier,
		log:      log.With().Str("component", "chat").Logger(),
	}
}

// Send persists an outgoing message and relays it to the conversation room
// plus every other participant's personal room. Both the websocket path and
// the REST path go through here.
func (s *Service) Send(ctx context.Context, conversationID, senderID uuid.UUID, content, msgType string) (*models.Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > maxContentLength {
		return nil, fmt.Errorf("chat: content too long (max %d bytes)", maxContentLength)
	}
	if msgType == "" {
		msgType = models.MessageText
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesSent.Inc()

	// Last writer wins; concurrent sends to one conversation are rare and
	// the pointer only ever moves to a newer message in practice.
	if err := s.store.SetLastMessage(ctx, conversationID, msg.ID); err != nil {
		s.log.Error().Err(err).Stringer("conversation", conversationID).Msg("update last-message pointer")
	}

	populated := *msg
	if sender, err := s.store.GetUser(ctx, senderID); err == nil && sender != nil {
		populated.SenderName = sender.Name
		populated.SenderRole = sender.Role
	}

	s.hub.DeliverToConversation(conversationID, conv.Participants, senderID, realtime.EventReceiveMessage, populated)
	s.alertIdleParticipants(ctx, conv, populated)

	return &populated, nil
}

// alertIdleParticipants raises a new_message notification for participants
// who do not have the conversation open in any live session, so the alert
// still reaches them through their personal room and the durable record.
func (s *Service) alertIdleParticipants(ctx context.Context, conv *models.Conversation, msg models.Message) {
	if s.notifier == nil {
		return
	}
	room := realtime.ConversationRoom(conv.ID)
	for _, p := range conv.Participants {
		if p == msg.SenderID || s.hub.IsUserInRoom(p, room) {
			continue
		}
		if _, err := s.notifier.NewChatMessage(ctx, msg, msg.SenderName, p); err != nil {
			s.log.Warn().Err(err).Stringer("recipient", p).Msg("new-message alert failed")
		}
	}
}

// History returns one page of a conversation's messages, oldest first
// within the page. Internally the query runs newest-first and the page is
// reversed before returning; callers must not rely on server-side
// newest-first ordering.
func (s *Service) History(ctx context.Context, conversationID, requesterID uuid.UUID, page, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	msgs, err := s.store.ListMessages(ctx, conversationID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Reverse newest-first into creation order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	s.populateSenders(ctx, msgs)
	return msgs, nil
}

// CreateConversation starts a direct or group conversation. The creator is
// always a participant; duplicates are collapsed. The participant set is
// immutable after creation.
func (s *Service) CreateConversation(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID, isGroup bool, name string) (*models.Conversation, error) {
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	participants := []uuid.UUID{creatorID}
	for _, p := range participantIDs {
		if p == uuid.Nil {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		participants = append(participants, p)
	}
	if len(participants) < 2 {
		return nil, ErrTooFewParticipants
	}

	conv := &models.Conversation{
		Participants: participants,
		IsGroup:      isGroup,
		Name:         name,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("persist conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first,
// with last messages populated for listing.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	convs, err := s.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// populateSenders fills in display fields on a message slice, one store
// read per distinct sender.
func (s *Service) populateSenders(ctx context.Context, msgs []models.Message) {
	memo := make(map[uuid.UUID]*models.User)
	for i := range msgs {
		u, ok := memo[msgs[i].SenderID]
		if !ok {
			var err error
			u, err = s.store.GetUser(ctx, msgs[i].SenderID)
			if err != nil {
				continue
			}
			memo[msgs[i].SenderID] = u
		}
		if u != nil {
			msgs[i].SenderName = u.Name
			msgs[i].SenderRole = u.Role
		}
	}
}
