package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeNewAssignment      = "new_assignment"
	TypeSubmissionReceived = "submission_received"
	TypeAssignmentGraded   = "assignment_graded"
	TypeMeetingScheduled   = "meeting_scheduled"
	TypeMeetingReminder    = "meeting_reminder"
	TypeAssignmentReminder = "assignment_reminder"
	TypeAttendanceAlert    = "attendance_alert"
	TypeNewMessage         = "new_message"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ReminderType reports whether a notification type is subject to the
// duplicate-suppression window before creation.
func ReminderType(typ string) bool {
	switch typ {
	case TypeMeetingReminder, TypeAssignmentReminder, TypeAttendanceAlert:
		return true
	}
	return false
}

// RelatedEntity points a notification at the domain object it is about.
// Used for de-duplication and client-side deep linking.
type RelatedEntity struct {
	Type string    `json:"entity_type"` // "assignment", "meeting", "chat", ...
	ID   uuid.UUID `json:"entity_id"`
}

// Notification is a persisted per-recipient record. Fan-out to N recipients
// creates N independent rows.
type Notification struct {
	ID            uuid.UUID      `json:"id"`
	RecipientID   uuid.UUID      `json:"recipient_id"`
	SenderID      *uuid.UUID     `json:"sender_id,omitempty"` // nil for system-generated
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	RelatedEntity *RelatedEntity `json:"related_entity,omitempty"`
	IsRead        bool           `json:"is_read"`
	Priority      string         `json:"priority"`
	CreatedAt     time.Time      `json:"created_at"`
}
