package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// TeacherStatus represents one teacher with their live presence flag.
type TeacherStatus struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Online bool      `json:"online"`
}

// OnlineTeachers handles GET /api/teachers/online. Presence comes from
// the live connection registry, so the answer reflects open websocket
// connections rather than a heartbeat table.
func (h *Handler) OnlineTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.store.ListUsersByRole(r.Context(), models.RoleTeacher)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch teachers")
		return
	}

	online := make(map[uuid.UUID]struct{})
	for _, id := range h.hub.Registry().OnlineTeachers() {
		online[id] = struct{}{}
	}

	statuses := make([]TeacherStatus, len(teachers))
	for i, t := range teachers {
		_, isOnline := online[t.ID]
		statuses[i] = TeacherStatus{ID: t.ID, Name: t.Name, Online: isOnline}
	}

	h.JSON(w, http.StatusOK, map[string]any{"teachers": statuses})
}
