package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognized by the portal.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is an external identity referenced by the core. The core reads
// id/role/name for routing and display and never mutates it.
type User struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email,omitempty"`
	Role                 string    `json:"role"`
	AttendancePercentage float64   `json:"attendance_percentage,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// IsTeacher reports whether the user holds the teacher role.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}
