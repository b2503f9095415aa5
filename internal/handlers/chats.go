package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/api/middleware"
	"github.com/viveksharma1514/UniVerse/internal/chat"
	"github.com/viveksharma1514/UniVerse/internal/models"
)

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	IsGroup        bool        `json:"is_group"`
	Name           string      `json:"name,omitempty"`
}

// SendMessageRequest represents the REST message send request body.
type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// MessageListResponse represents a page of conversation history in
// chronological order.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
}

// ListConversations handles GET /api/chats for the authenticated user.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convs, err := h.chats.ListForUser(r.Context(), ident.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// CreateConversation handles POST /api/chats.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := h.chats.CreateConversation(r.Context(), ident.ID, req.ParticipantIDs, req.IsGroup, sanitizeText(req.Name, 100))
	if err != nil {
		if errors.Is(err, chat.ErrTooFewParticipants) {
			h.Error(w, http.StatusBadRequest, "a conversation needs at least two participants")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	h.JSON(w, http.StatusCreated, conv)
}

// ListMessages handles GET /api/chats/{id}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	msgs, err := h.chats.History(r.Context(), convID, ident.ID, page, limit)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrConversationNotFound):
			h.Error(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, chat.ErrNotParticipant):
			h.Error(w, http.StatusForbidden, "not a participant")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		}
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: msgs, Page: page})
}

// SendMessage handles POST /api/chats/{id}/messages. The REST path runs
// the same delivery pipeline as the websocket send-message frame.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.chats.Send(r.Context(), convID, ident.ID, req.Content, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrConversationNotFound):
			h.Error(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, chat.ErrNotParticipant):
			h.Error(w, http.StatusForbidden, "not a participant")
		case errors.Is(err, chat.ErrEmptyContent):
			h.Error(w, http.StatusBadRequest, "content is required")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}
