package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting is an upcoming online meeting, owned by the scheduling CRUD layer.
// The reminder engine only reads it.
type Meeting struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	TeacherID uuid.UUID `json:"teacher_id"`
	StartsAt  time.Time `json:"starts_at"`
}

// Assignment is a posted assignment, owned by the assignment CRUD layer.
type Assignment struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	TeacherID uuid.UUID `json:"teacher_id"`
	DueAt     time.Time `json:"due_at"`
}
