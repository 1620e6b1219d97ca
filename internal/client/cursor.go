package client

import (
	"sync"
	"time"

	"CollabBoard/internal/state"
)

type cursorEntry struct {
	cursor state.Cursor
	seen   time.Time
}

// CursorTracker keeps the last known pointer of every peer and forgets it
// once the peer has been silent for longer than the TTL.
type CursorTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cursorEntry
}

func NewCursorTracker(ttl time.Duration) *CursorTracker {
	return &CursorTracker{ttl: ttl, now: time.Now, entries: make(map[string]cursorEntry)}
}

// Update records a relayed cursor.
func (t *CursorTracker) Update(c state.Cursor) {
	if c.UserID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[c.UserID] = cursorEntry{cursor: c, seen: t.now()}
}

// Active returns the cursors seen within the TTL and drops the rest.
func (t *CursorTracker) Active() map[string]state.Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make(map[string]state.Cursor, len(t.entries))
	for id, e := range t.entries {
		if now.Sub(e.seen) > t.ttl {
			delete(t.entries, id)
			continue
		}
		out[id] = e.cursor
	}
	return out
}

// Retain forgets the cursors of peers not in present.
func (t *CursorTracker) Retain(present map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.entries {
		if _, ok := present[id]; !ok {
			delete(t.entries, id)
		}
	}
}
