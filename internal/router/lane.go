package router

import "sync"

// LaneLock serializes work per chat. Two commands from the same chat run
// strictly in arrival order, so "/mode cloud" followed by "/task" sees the
// new mode, while unrelated chats never wait on each other.
//
// A small table mutex guards the lane map; the actual blocking happens on
// a per-chat mutex outside it, so a chat mid-task cannot stall lookups for
// everyone else.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[SessionKey]*chatLane
}

// chatLane is the serialization point for one chat. holders counts the
// goroutines between pin and unpin for this key; parked marks a lane the
// pruner wants gone as soon as holders reaches zero.
type chatLane struct {
	mu      sync.Mutex
	holders int
	parked  bool
}

// NewLaneLock returns an empty lock table.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[SessionKey]*chatLane)}
}

// Acquire blocks until the chat's lane is free and takes it. Every Acquire
// must be paired with a Release for the same key.
func (l *LaneLock) Acquire(key SessionKey) {
	ln := l.pin(key)
	// Block outside the table mutex so other chats keep moving.
	ln.mu.Lock()
}

// Release frees the chat's lane for the next queued command. Calling it
// without a matching Acquire is a no-op.
func (l *LaneLock) Release(key SessionKey) {
	if ln := l.unpin(key); ln != nil {
		ln.mu.Unlock()
	}
}

// pin looks up or creates the chat's lane and counts the caller in.
func (l *LaneLock) pin(key SessionKey) *chatLane {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.lanes[key]
	if !ok {
		ln = &chatLane{}
		l.lanes[key] = ln
	}
	ln.holders++
	ln.parked = false
	return ln
}

// unpin counts the caller out and drops the lane once it is parked and
// nobody is left inside it. The returned lane stays valid for the caller
// even after removal from the table.
func (l *LaneLock) unpin(key SessionKey) *chatLane {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.lanes[key]
	if !ok {
		return nil
	}
	ln.holders--
	if ln.holders == 0 && ln.parked {
		delete(l.lanes, key)
	}
	return ln
}

// Cleanup parks every lane whose chat no longer has a live session and
// removes the ones nobody holds. Without it the table would keep an entry
// for every chat that ever talked to the daemon.
func (l *LaneLock) Cleanup(active map[SessionKey]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ln := range l.lanes {
		if _, live := active[key]; live {
			ln.parked = false
			continue
		}
		ln.parked = true
		if ln.holders == 0 {
			delete(l.lanes, key)
		}
	}
}
