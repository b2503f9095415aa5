package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

// Validation errors, rejected before any persistence attempt.
var (
	ErrNoRecipients = errors.New("notify: recipient list is empty")
	ErrNoRecipient  = errors.New("notify: recipient id is required")
	ErrEmptyTitle   = errors.New("notify: title is required")
)

// Input describes one notification to create. Priority defaults to medium.
type Input struct {
	RecipientID   uuid.UUID
	SenderID      *uuid.UUID // nil for system-generated
	Type          string
	Title         string
	Message       string
	RelatedEntity *models.RelatedEntity
	Priority      string
}

// SenderView is the denormalized sender block embedded in live payloads and
// listings. The persisted record stores only the sender id.
type SenderView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// View is a notification with the sender resolved for display.
type View struct {
	models.Notification
	Sender *SenderView `json:"sender,omitempty"`
}

// Service is the event notifier: it turns domain events into persisted
// per-recipient records plus best-effort live pushes. Persistence always
// precedes delivery; a client never observes a live notification without a
// durable backing record.
type Service struct {
	store       store.DataStore
	cache       *store.RedisStore // optional, may be nil
	hub         realtime.Broadcaster
	log         zerolog.Logger
	dedupWindow time.Duration
}

// NewService creates a notifier. cache may be nil when Redis is not
// configured.
func NewService(ds store.DataStore, cache *store.RedisStore, hub realtime.Broadcaster, log zerolog.Logger, dedupWindow time.Duration) *Service {
	return &Service{
		store:       ds,
		cache:       cache,
		hub:         hub,
		log:         log.With().Str("component", "notify").Logger(),
		dedupWindow: dedupWindow,
	}
}

// Notify persists one notification and pushes it to the recipient's
// personal room. For reminder-class types a record created for the same
// (recipient, type, related entity) within the dedup window suppresses the
// new one; suppression is a successful no-op returning (nil, nil).
func (s *Service) Notify(ctx context.Context, in Input) (*models.Notification, error) {
	if in.RecipientID == uuid.Nil {
		return nil, ErrNoRecipient
	}
	if in.Title == "" {
		return nil, ErrEmptyTitle
	}

	if models.ReminderType(in.Type) && in.RelatedEntity != nil {
		exists, err := s.store.HasRecentNotification(ctx, in.RecipientID, in.Type, *in.RelatedEntity, time.Now().Add(-s.dedupWindow))
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}
		if exists {
			metrics.RemindersSuppressed.WithLabelValues(in.Type).Inc()
			s.log.Debug().
				Stringer("recipient", in.RecipientID).
				Str("type", in.Type).
				Msg("duplicate reminder suppressed")
			return nil, nil
		}
	}

	n := recordFromInput(in)
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()

	s.invalidateUnread(ctx, n.RecipientID)
	s.deliver(ctx, []uuid.UUID{n.RecipientID}, *n)

	return n, nil
}

// NotifyMany fans one event template out to many recipients: one record per
// recipient, inserted atomically as a batch, then delivered individually.
// If the batch insert fails, no deliveries occur; once it succeeds, a
// failed push is logged and the rest proceed. Reminder-class recipients
// already covered within the dedup window are filtered out first.
func (s *Service) NotifyMany(ctx context.Context, recipientIDs []uuid.UUID, tmpl Input) ([]*models.Notification, error) {
	if len(recipientIDs) == 0 {
		return nil, ErrNoRecipients
	}
	if tmpl.Title == "" {
		return nil, ErrEmptyTitle
	}

	dedup := models.ReminderType(tmpl.Type) && tmpl.RelatedEntity != nil
	records := make([]*models.Notification, 0, len(recipientIDs))
	seen := make(map[uuid.UUID]struct{}, len(recipientIDs))
	for _, rid := range recipientIDs {
		if rid == uuid.Nil {
			continue
		}
		// Callers may resolve recipients from several sources; one
		// record per distinct recipient regardless.
		if _, ok := seen[rid]; ok {
			continue
		}
		seen[rid] = struct{}{}
		if dedup {
			exists, err := s.store.HasRecentNotification(ctx, rid, tmpl.Type, *tmpl.RelatedEntity, time.Now().Add(-s.dedupWindow))
			if err != nil {
				return nil, fmt.Errorf("dedup lookup: %w", err)
			}
			if exists {
				metrics.RemindersSuppressed.WithLabelValues(tmpl.Type).Inc()
				continue
			}
		}
		in := tmpl
		in.RecipientID = rid
		records = append(records, recordFromInput(in))
	}
	if len(records) == 0 {
		return nil, nil
	}

	if err := s.store.CreateNotifications(ctx, records); err != nil {
		return nil, fmt.Errorf("persist notifications: %w", err)
	}
	for _, n := range records {
		metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
		s.invalidateUnread(ctx, n.RecipientID)
		s.deliver(ctx, []uuid.UUID{n.RecipientID}, *n)
	}
	return records, nil
}

// MarkRead flips the read flag on one record and tells the recipient's
// other live sessions to converge. Returns (nil, nil) when the record does
// not exist (already deleted is not an error).
func (s *Service) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, recipientID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if n == nil {
		return nil, nil
	}

	s.invalidateUnread(ctx, recipientID)
	s.deliverEvent(ctx, recipientID, realtime.EventNotificationUpdated, *n)
	return n, nil
}

// MarkAllRead flips every unread record for the recipient and broadcasts a
// single convergence event.
func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	count, err := s.store.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}

	s.invalidateUnread(ctx, recipientID)
	s.deliverEvent(ctx, recipientID, realtime.EventAllNotificationsRead, map[string]int64{"count": count})
	return count, nil
}

// Delete removes one record scoped to the recipient. A missing record is a
// silent success with found=false.
func (s *Service) Delete(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	found, err := s.store.DeleteNotification(ctx, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	if !found {
		return false, nil
	}

	s.invalidateUnread(ctx, recipientID)
	s.deliverEvent(ctx, recipientID, realtime.EventNotificationDeleted, map[string]uuid.UUID{"id": id})
	return true, nil
}

// List returns the recipient's notifications, newest first capped at limit,
// with sender display fields resolved.
func (s *Service) List(ctx context.Context, recipientID uuid.UUID, limit int) ([]View, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	ns, err := s.store.ListNotifications(ctx, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	senders := make(map[uuid.UUID]*SenderView)
	out := make([]View, 0, len(ns))
	for _, n := range ns {
		out = append(out, View{Notification: n, Sender: s.resolveSender(ctx, senders, n.SenderID)})
	}
	return out, nil
}

// UnreadCount returns the recipient's unread count, served from the cache
// when fresh.
func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.GetUnreadCount(ctx, recipientID); ok {
			return count, nil
		}
	}
	count, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	if s.cache != nil {
		s.cache.SetUnreadCount(ctx, recipientID, count)
	}
	return count, nil
}

func recordFromInput(in Input) *models.Notification {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	return &models.Notification{
		RecipientID:   in.RecipientID,
		SenderID:      in.SenderID,
		Type:          in.Type,
		Title:         in.Title,
		Message:       in.Message,
		RelatedEntity: in.RelatedEntity,
		Priority:      priority,
	}
}

// deliver pushes a freshly created record to the recipients' personal
// rooms, sender display resolved for immediate rendering.
func (s *Service) deliver(ctx context.Context, recipients []uuid.UUID, n models.Notification) {
	view := View{Notification: n, Sender: s.resolveSender(ctx, nil, n.SenderID)}
	s.hub.DeliverToUsers(recipients, realtime.EventNewNotification, view)
}

func (s *Service) deliverEvent(ctx context.Context, recipientID uuid.UUID, event string, payload any) {
	s.hub.DeliverToUsers([]uuid.UUID{recipientID}, event, payload)
}

// resolveSender fetches sender display fields, best-effort: a lookup error
// leaves the sender block empty rather than failing the operation.
func (s *Service) resolveSender(ctx context.Context, memo map[uuid.UUID]*SenderView, senderID *uuid.UUID) *SenderView {
	if senderID == nil {
		return nil
	}
	if memo != nil {
		if v, ok := memo[*senderID]; ok {
			return v
		}
	}
	var view *SenderView
	u, err := s.store.GetUser(ctx, *senderID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("sender", *senderID).Msg("resolve sender failed")
	} else if u != nil {
		view = &SenderView{ID: u.ID, Name: u.Name, Role: u.Role}
	}
	if memo != nil {
		memo[*senderID] = view
	}
	return view
}

func (s *Service) invalidateUnread(ctx context.Context, recipientID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateUnreadCount(ctx, recipientID)
	}
}
