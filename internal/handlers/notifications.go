package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/api/middleware"
	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/notify"
)

// CreateNotificationRequest represents the fan-out create request body.
// Recipients may name users directly, a role, or both.
type CreateNotificationRequest struct {
	RecipientIDs  []uuid.UUID           `json:"recipient_ids,omitempty"`
	RecipientRole string                `json:"recipient_role,omitempty"`
	Type          string                `json:"type"`
	Title         string                `json:"title"`
	Message       string                `json:"message,omitempty"`
	Priority      string                `json:"priority,omitempty"`
	RelatedEntity *models.RelatedEntity `json:"related_entity,omitempty"`
}

// NotificationListResponse represents the notification list response.
type NotificationListResponse struct {
	Notifications []notify.View `json:"notifications"`
	UnreadCount   int64         `json:"unread_count"`
}

// ListNotifications handles GET /api/notifications for the authenticated user.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := queryInt(r, "limit", 50)
	views, err := h.notifier.List(r.Context(), ident.ID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch notifications")
		return
	}

	unread, err := h.notifier.UnreadCount(r.Context(), ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch unread count")
		return
	}

	h.JSON(w, http.StatusOK, NotificationListResponse{
		Notifications: views,
		UnreadCount:   unread,
	})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	count, err := h.notifier.UnreadCount(r.Context(), ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch unread count")
		return
	}

	h.JSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

// MarkNotificationRead handles PATCH /api/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID format")
		return
	}

	n, err := h.notifier.MarkRead(r.Context(), id, ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	if n == nil {
		h.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	h.JSON(w, http.StatusOK, n)
}

// MarkAllNotificationsRead handles PATCH /api/notifications/mark-all-read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	count, err := h.notifier.MarkAllRead(r.Context(), ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}

	h.JSON(w, http.StatusOK, map[string]int64{"updated": count})
}

// DeleteNotification handles DELETE /api/notifications/{id}.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID format")
		return
	}

	deleted, err := h.notifier.Delete(r.Context(), id, ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateNotification handles POST /api/notifications. Restricted to
// teachers and admins by the router; fans one notification out to the
// resolved recipient set.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Title = sanitizeText(req.Title, 200)
	req.Message = sanitizeText(req.Message, 2000)
	if req.Type == "" {
		h.Error(w, http.StatusBadRequest, "type is required")
		return
	}

	recipients := req.RecipientIDs
	if req.RecipientRole != "" {
		ids, err := h.store.ListUserIDsByRole(r.Context(), req.RecipientRole)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to resolve recipients")
			return
		}
		recipients = append(recipients, ids...)
	}

	senderID := ident.ID
	created, err := h.notifier.NotifyMany(r.Context(), recipients, notify.Input{
		SenderID:      &senderID,
		Type:          req.Type,
		Title:         req.Title,
		Message:       req.Message,
		Priority:      req.Priority,
		RelatedEntity: req.RelatedEntity,
	})
	if err != nil {
		switch {
		case errors.Is(err, notify.ErrNoRecipients):
			h.Error(w, http.StatusBadRequest, "no recipients resolved")
		case errors.Is(err, notify.ErrEmptyTitle):
			h.Error(w, http.StatusBadRequest, "title is required")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to create notifications")
		}
		return
	}

	h.JSON(w, http.StatusCreated, map[string]int{"created": len(created)})
}
