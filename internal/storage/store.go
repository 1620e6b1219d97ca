// Package storage persists the operation log of each room.
//
// A store keeps one ordered list of log entries per room. Rooms reload it
// on creation; the next sequence number is derived from the entries.
package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"CollabBoard/internal/state"
)

// ErrNotFound is returned by Load for a room that was never saved.
var ErrNotFound = errors.New("room not found")

// Store is the durable home of room logs. Save receives the whole log;
// implementations may persist only what is new.
type Store interface {
	Load(ctx context.Context, roomID string) ([]state.LogEntry, error)
	Save(ctx context.Context, roomID string, entries []state.LogEntry) error
	Close() error
}

// MemoryStore keeps logs for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]state.LogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]state.LogEntry)}
}

func (m *MemoryStore) Load(_ context.Context, roomID string) ([]state.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]state.LogEntry(nil), entries...), nil
}

func (m *MemoryStore) Save(_ context.Context, roomID string, entries []state.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[roomID] = append([]state.LogEntry(nil), entries...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
