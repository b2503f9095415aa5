package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

// Registry tracks which users currently hold at least one live connection.
// It owns two maps: connection id to user id, and user id to the set of the
// user's connection ids. All mutation goes through its methods under one
// mutex so the invariant "a user is present iff their connection count is
// above zero" is observed atomically.
//
// The registry holds no durable state and is rebuilt empty on restart.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]uuid.UUID            // connection id -> owning user (uuid.Nil until announced)
	users    map[uuid.UUID]map[string]struct{} // user -> live connection ids
	teachers map[uuid.UUID]struct{}          // online teacher aggregate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]uuid.UUID),
		users:    make(map[uuid.UUID]map[string]struct{}),
		teachers: make(map[uuid.UUID]struct{}),
	}
}

// Register creates an unattached connection entry. Idempotent per id.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = uuid.Nil
	}
}

// Announce attaches a connection to a user. Returns true when the
// online-teacher aggregate changed, meaning a broadcast of the new snapshot
// is due. Announcing an unknown connection or an empty user id is a no-op.
func (r *Registry) Announce(connID string, userID uuid.UUID, role string) (teachersChanged bool) {
	if userID == uuid.Nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.conns[connID]
	if !ok || owner != uuid.Nil {
		return false
	}
	r.conns[connID] = userID

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}

	if role == models.RoleTeacher {
		if _, online := r.teachers[userID]; !online {
			r.teachers[userID] = struct{}{}
			return true
		}
	}
	return false
}

// Disconnect removes a connection. Returns the owning user (uuid.Nil if the
// connection never announced) and whether the online-teacher aggregate
// changed because this was the user's last connection.
func (r *Registry) Disconnect(connID string) (userID uuid.UUID, teachersChanged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[connID]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.conns, connID)
	if userID == uuid.Nil {
		return uuid.Nil, false
	}

	set := r.users[userID]
	delete(set, connID)
	if len(set) > 0 {
		return userID, false
	}
	delete(r.users, userID)

	if _, online := r.teachers[userID]; online {
		delete(r.teachers, userID)
		return userID, true
	}
	return userID, false
}

// IsOnline reports whether the user holds at least one announced connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineTeachers returns a snapshot of the online-teacher aggregate.
// Consumers treat broadcasts of this set as full replacements, never deltas.
func (r *Registry) OnlineTeachers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(r.teachers))
	for id := range r.teachers {
		out = append(out, id)
	}
	return out
}

// ConnectionCount returns the number of registered connections, announced
// or not.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
