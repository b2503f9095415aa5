package realtime

import (
	"testing"

	"github.com/google/uuid"

	"github.com/viveksharma1514/UniVerse/internal/models"
)

func TestRegistryAnnounceAndDisconnect(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()

	r.Register("conn-1")
	if r.IsOnline(userID) {
		t.Fatal("user should be offline before announce")
	}

	if changed := r.Announce("conn-1", userID, models.RoleStudent); changed {
		t.Error("student announce should not change the teacher set")
	}
	if !r.IsOnline(userID) {
		t.Fatal("user should be online after announce")
	}

	gotUser, changed := r.Disconnect("conn-1")
	if gotUser != userID {
		t.Errorf("Disconnect returned user %s, want %s", gotUser, userID)
	}
	if changed {
		t.Error("student disconnect should not change the teacher set")
	}
	if r.IsOnline(userID) {
		t.Error("user should be offline after last disconnect")
	}
}

func TestRegistryTeacherPresenceFlipsOncePerUser(t *testing.T) {
	r := NewRegistry()
	teacherID := uuid.New()

	r.Register("conn-1")
	r.Register("conn-2")

	if changed := r.Announce("conn-1", teacherID, models.RoleTeacher); !changed {
		t.Fatal("first teacher connection should change the teacher set")
	}
	if changed := r.Announce("conn-2", teacherID, models.RoleTeacher); changed {
		t.Fatal("second connection of the same teacher should not change the teacher set")
	}

	teachers := r.OnlineTeachers()
	if len(teachers) != 1 || teachers[0] != teacherID {
		t.Fatalf("OnlineTeachers = %v, want exactly [%s]", teachers, teacherID)
	}

	if _, changed := r.Disconnect("conn-1"); changed {
		t.Fatal("teacher still holds a connection, set should be unchanged")
	}
	if !r.IsOnline(teacherID) {
		t.Fatal("teacher should remain online with one connection left")
	}
	if _, changed := r.Disconnect("conn-2"); !changed {
		t.Fatal("last teacher connection dropping should change the teacher set")
	}
	if len(r.OnlineTeachers()) != 0 {
		t.Error("teacher set should be empty after last disconnect")
	}
}

func TestRegistryAnnounceUnknownConnection(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()

	if changed := r.Announce("never-registered", userID, models.RoleTeacher); changed {
		t.Error("announcing an unregistered connection should be a no-op")
	}
	if r.IsOnline(userID) {
		t.Error("no-op announce should not mark the user online")
	}
}

func TestRegistryAnnounceIsIdempotentPerConnection(t *testing.T) {
	r := NewRegistry()
	first := uuid.New()
	second := uuid.New()

	r.Register("conn-1")
	r.Announce("conn-1", first, models.RoleStudent)

	// A connection belongs to whoever announced first.
	if changed := r.Announce("conn-1", second, models.RoleTeacher); changed {
		t.Error("re-announce on an owned connection should be a no-op")
	}
	if r.IsOnline(second) {
		t.Error("second user should not be online via a stolen connection")
	}
	if !r.IsOnline(first) {
		t.Error("first user should still be online")
	}
}

func TestRegistryDisconnectUnannouncedConnection(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")

	userID, changed := r.Disconnect("conn-1")
	if userID != uuid.Nil || changed {
		t.Errorf("Disconnect of unannounced conn = (%s, %v), want (Nil, false)", userID, changed)
	}
	if r.ConnectionCount() != 0 {
		t.Error("connection should be removed even when unannounced")
	}
}
