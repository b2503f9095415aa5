package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// Typed composers for the portal's domain events. They only shape titles,
// messages and related entities; creation and delivery go through Notify /
// NotifyMany.

// NewAssignmentPosted alerts every student about a freshly posted
// assignment.
func (s *Service) NewAssignmentPosted(ctx context.Context, a models.Assignment, teacher models.User, studentIDs []uuid.UUID) ([]*models.Notification, error) {
	return s.NotifyMany(ctx, studentIDs, Input{
		SenderID: &teacher.ID,
		Type:     models.TypeNewAssignment,
		Title:    "New Assignment Posted",
		Message:  fmt.Sprintf("%s posted a new assignment: %s", teacher.Name, a.Title),
		RelatedEntity: &models.RelatedEntity{
			Type: "assignment",
			ID:   a.ID,
		},
		Priority: models.PriorityHigh,
	})
}

// SubmissionReceived tells the assignment owner a student submitted.
func (s *Service) SubmissionReceived(ctx context.Context, a models.Assignment, student models.User, submissionID uuid.UUID) (*models.Notification, error) {
	return s.Notify(ctx, Input{
		RecipientID: a.TeacherID,
		SenderID:    &student.ID,
		Type:        models.TypeSubmissionReceived,
		Title:       "Assignment Submitted",
		Message:     fmt.Sprintf("%s submitted assignment: %s", student.Name, a.Title),
		RelatedEntity: &models.RelatedEntity{
			Type: "submission",
			ID:   submissionID,
		},
	})
}

// AssignmentGraded tells a student their work was graded.
func (s *Service) AssignmentGraded(ctx context.Context, a models.Assignment, teacher models.User, studentID uuid.UUID, grade string) (*models.Notification, error) {
	return s.Notify(ctx, Input{
		RecipientID: studentID,
		SenderID:    &teacher.ID,
		Type:        models.TypeAssignmentGraded,
		Title:       "Assignment Graded",
		Message:     fmt.Sprintf("%s graded your assignment: %s - Grade: %s", teacher.Name, a.Title, grade),
		RelatedEntity: &models.RelatedEntity{
			Type: "assignment",
			ID:   a.ID,
		},
	})
}

// MeetingScheduled alerts the given recipients about a new meeting.
func (s *Service) MeetingScheduled(ctx context.Context, m models.Meeting, recipientIDs []uuid.UUID) ([]*models.Notification, error) {
	return s.NotifyMany(ctx, recipientIDs, Input{
		SenderID: &m.TeacherID,
		Type:     models.TypeMeetingScheduled,
		Title:    fmt.Sprintf("Meeting Scheduled: %s", m.Title),
		Message:  fmt.Sprintf("A meeting %q is scheduled for %s.", m.Title, m.StartsAt.Format("Jan 2 15:04")),
		RelatedEntity: &models.RelatedEntity{
			Type: "meeting",
			ID:   m.ID,
		},
	})
}

// NewChatMessage alerts a participant about a message they have not seen
// live because no session of theirs has the conversation open.
func (s *Service) NewChatMessage(ctx context.Context, msg models.Message, senderName string, recipientID uuid.UUID) (*models.Notification, error) {
	preview := msg.Content
	if runes := []rune(preview); len(runes) > 50 {
		preview = string(runes[:50]) + "..."
	}
	return s.Notify(ctx, Input{
		RecipientID: recipientID,
		SenderID:    &msg.SenderID,
		Type:        models.TypeNewMessage,
		Title:       "New Message",
		Message:     fmt.Sprintf("New message from %s: %s", senderName, preview),
		RelatedEntity: &models.RelatedEntity{
			Type: "chat",
			ID:   msg.ConversationID,
		},
	})
}
