package router

import (
	"sync"
	"testing"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/task"
)

// testClock stands in for time.Now so idle windows are exact.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func clockedStore() (*InMemorySessionStore, *testClock) {
	store := NewInMemorySessionStore()
	clock := &testClock{now: time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	return store, clock
}

func dmKey(chatID string) SessionKey {
	return SessionKey{Channel: "channel.telegram", ChatID: chatID}
}

func TestInMemoryStore_FirstContactMintsSession(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	key := dmKey("900123")

	sess, created := store.GetOrCreate(key)
	if !created || sess == nil {
		t.Fatalf("first contact = (%v, %v), want a fresh session", sess, created)
	}
	if len(sess.ID) != 32 {
		t.Errorf("session ID %q is not 32 hex chars", sess.ID)
	}
	if sess.Key != key {
		t.Errorf("session key = %+v, want %+v", sess.Key, key)
	}
	if !sess.CreatedAt.Equal(sess.LastActiveAt) {
		t.Error("fresh session should start with CreatedAt == LastActiveAt")
	}

	again, created := store.GetOrCreate(key)
	if created {
		t.Fatal("second contact minted a new session")
	}
	if again.ID != sess.ID {
		t.Errorf("second contact returned session %q, want %q", again.ID, sess.ID)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestInMemoryStore_GetWithoutCreate(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	if got := store.Get(dmKey("900123")); got != nil {
		t.Fatalf("Get on unknown chat = %v, want nil", got)
	}

	store.GetOrCreate(dmKey("900123"))
	if store.Get(dmKey("900123")) == nil {
		t.Fatal("Get lost an existing session")
	}
}

func TestInMemoryStore_TouchMovesIdleClock(t *testing.T) {
	t.Parallel()

	store, clock := clockedStore()
	key := dmKey("900123")
	sess, _ := store.GetOrCreate(key)
	born := sess.LastActiveAt

	clock.Advance(5 * time.Minute)
	store.Touch(key)

	if got := store.Get(key).LastActiveAt; !got.Equal(born.Add(5 * time.Minute)) {
		t.Errorf("LastActiveAt = %v, want %v", got, born.Add(5*time.Minute))
	}

	// Touching a chat that never talked is a quiet no-op.
	store.Touch(dmKey("555000"))
	if store.Len() != 1 {
		t.Errorf("Touch invented a session, Len = %d", store.Len())
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	key := dmKey("900123")
	store.GetOrCreate(key)

	store.Delete(key)
	if store.Len() != 0 || store.Get(key) != nil {
		t.Error("Delete left the session behind")
	}
	store.Delete(key) // idempotent
}

func TestInMemoryStore_PruneDropsOnlyIdleChats(t *testing.T) {
	t.Parallel()

	store, clock := clockedStore()
	idle := dmKey("900123")
	busy := dmKey("-1001234567890")

	store.GetOrCreate(idle)
	clock.Advance(10 * time.Minute)
	store.GetOrCreate(busy)
	clock.Advance(time.Minute)

	// idle is 11 minutes quiet, busy only 1.
	if got := store.Prune(5 * time.Minute); got != 1 {
		t.Errorf("Prune dropped %d sessions, want 1", got)
	}
	if store.Get(idle) != nil {
		t.Error("idle chat survived the prune")
	}
	if store.Get(busy) == nil {
		t.Error("busy chat was pruned")
	}

	if got := store.Prune(time.Hour); got != 0 {
		t.Errorf("second Prune dropped %d, want 0", got)
	}
}

func TestInMemoryStore_SessionCap(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	store.SetMaxSessions(2)

	if _, created := store.GetOrCreate(dmKey("1")); !created {
		t.Fatal("first chat blocked below the cap")
	}
	if _, created := store.GetOrCreate(dmKey("2")); !created {
		t.Fatal("second chat blocked below the cap")
	}

	if sess, created := store.GetOrCreate(dmKey("3")); sess != nil || created {
		t.Errorf("chat over the cap got (%v, %v), want (nil, false)", sess, created)
	}

	// Chats that already have a session are unaffected.
	if sess, created := store.GetOrCreate(dmKey("1")); sess == nil || created {
		t.Error("existing chat was refused at the cap")
	}
}

func TestInMemoryStore_ModeOverrideSticksToSession(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	key := dmKey("900123")

	sess, _ := store.GetOrCreate(key)
	if sess.ExecMode != "" {
		t.Errorf("fresh session has mode %q, want empty (inherit the default)", sess.ExecMode)
	}

	// /mode cloud writes straight onto the stored session.
	sess.ExecMode = task.ModeCloud
	if store.Get(key).ExecMode != task.ModeCloud {
		t.Error("mode override did not persist")
	}
}

func TestInMemoryStore_ActiveKeysSnapshot(t *testing.T) {
	t.Parallel()

	store, _ := clockedStore()
	a, b := dmKey("900123"), dmKey("-100555")
	store.GetOrCreate(a)
	store.GetOrCreate(b)

	keys := store.ActiveKeys()
	if len(keys) != 2 {
		t.Fatalf("snapshot has %d keys, want 2", len(keys))
	}
	for _, k := range []SessionKey{a, b} {
		if _, ok := keys[k]; !ok {
			t.Errorf("snapshot missing %+v", k)
		}
	}

	// The snapshot is a copy; mutating it cannot reach the store.
	delete(keys, a)
	if store.Len() != 2 {
		t.Errorf("Len = %d after mutating the snapshot, want 2", store.Len())
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store, clock := clockedStore()
	chats := []SessionKey{dmKey("1"), dmKey("2"), dmKey("3")}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		key := chats[i%len(chats)]
		wg.Add(4)
		go func() {
			defer wg.Done()
			store.GetOrCreate(key)
		}()
		go func() {
			defer wg.Done()
			store.Touch(key)
		}()
		go func() {
			defer wg.Done()
			store.Get(key)
		}()
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			store.Len()
		}()
	}
	wg.Wait()

	if store.Len() > len(chats) {
		t.Errorf("Len = %d, want at most %d distinct chats", store.Len(), len(chats))
	}
}
