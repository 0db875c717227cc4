package auth

import (
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("hunter3", hash) {
		t.Error("wrong password accepted")
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(time.Hour)

	id, err := store.Create(42)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	userID, ok := store.Get(id)
	if !ok || userID != 42 {
		t.Fatalf("Get = (%d, %v), want (42, true)", userID, ok)
	}

	store.Delete(id)
	if _, ok := store.Get(id); ok {
		t.Error("deleted session still resolves")
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(10 * time.Millisecond)

	id, err := store.Create(1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get(id); ok {
		t.Error("expired session still resolves")
	}

	store.Cleanup()
	store.mu.RLock()
	n := len(store.sessions)
	store.mu.RUnlock()
	if n != 0 {
		t.Errorf("cleanup left %d sessions", n)
	}
}

func TestSessionStoreDeleteByUserID(t *testing.T) {
	store := NewSessionStore(time.Hour)
	a, _ := store.Create(1)
	b, _ := store.Create(1)
	c, _ := store.Create(2)

	store.DeleteByUserID(1)

	if _, ok := store.Get(a); ok {
		t.Error("session a survived")
	}
	if _, ok := store.Get(b); ok {
		t.Error("session b survived")
	}
	if _, ok := store.Get(c); !ok {
		t.Error("unrelated session was removed")
	}
}
