package room

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CollabBoard/internal/logging"
	"CollabBoard/internal/state"
	"CollabBoard/internal/storage"
)

const (
	DefaultRoom  = "main"
	maxRoomIDLen = 64
)

// NormalizeRoomID trims id, caps it at 64 characters and maps an empty id
// to the default room.
func NormalizeRoomID(id string) string {
	id = strings.TrimSpace(id)
	if r := []rune(id); len(r) > maxRoomIDLen {
		id = string(r[:maxRoomIDLen])
	}
	if id == "" {
		return DefaultRoom
	}
	return id
}

// PickColor returns the first palette colour no current user holds, or
// fallback once all are taken.
func PickColor(palette []string, fallback string, users map[string]state.UserInfo) string {
	used := make(map[string]struct{}, len(users))
	for _, u := range users {
		used[u.Color] = struct{}{}
	}
	for _, c := range palette {
		if _, ok := used[c]; !ok {
			return c
		}
	}
	return fallback
}

type slot struct {
	ready chan struct{}
	auth  *Authority
	err   error
}

// Registry is the arena of live rooms keyed by normalised id. Rooms are
// created on first use from their stored history and live until Close.
// Creating one room never blocks calls on another.
type Registry struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]*slot
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limits.MaxPoints == 0 {
		opts.Limits = state.DefaultLimits()
	}
	return &Registry{opts: opts, logger: opts.Logger.Named("registry"), rooms: make(map[string]*slot)}
}

// Get returns the authority of a room, creating it on first use.
func (r *Registry) Get(ctx context.Context, roomID string) (*Authority, error) {
	id := NormalizeRoomID(roomID)

	r.mu.Lock()
	s, ok := r.rooms[id]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		r.rooms[id] = s
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-s.ready:
			return s.auth, s.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.auth, s.err = r.create(ctx, id)
	if s.err != nil {
		// Let a later call retry.
		r.mu.Lock()
		delete(r.rooms, id)
		r.mu.Unlock()
	}
	close(s.ready)
	return s.auth, s.err
}

func (r *Registry) create(ctx context.Context, id string) (*Authority, error) {
	var history []state.LogEntry
	if r.opts.Store != nil {
		var err error
		history, err = r.opts.Store.Load(ctx, id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Error("loading room failed", logging.Room(id), zap.Error(err))
			return nil, errors.Wrapf(err, "opening room %s", id)
		}
	}
	r.logger.Info("room created", logging.Room(id), zap.Int("entries", len(history)))
	return NewAuthority(id, history, r.opts), nil
}

// Lookup returns a live room without creating it.
func (r *Registry) Lookup(roomID string) (*Authority, bool) {
	r.mu.Lock()
	s, ok := r.rooms[NormalizeRoomID(roomID)]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-s.ready:
		return s.auth, s.err == nil
	default:
		return nil, false
	}
}

// History returns the log of a room without bringing it to life: a live
// room answers from its authority, any other room is read from the store.
// A room with no history yields storage.ErrNotFound.
func (r *Registry) History(ctx context.Context, roomID string) ([]state.LogEntry, error) {
	id := NormalizeRoomID(roomID)
	if a, ok := r.Lookup(id); ok {
		entries, _, err := a.Snapshot(ctx)
		if err == nil || !errors.Is(err, ErrClosed) {
			return entries, err
		}
	}
	if r.opts.Store == nil {
		return nil, storage.ErrNotFound
	}
	entries, err := r.opts.Store.Load(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading room %s", id)
	}
	return entries, nil
}

// Rooms lists the ids of live rooms.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every room.
func (r *Registry) Close() {
	r.mu.Lock()
	slots := make([]*slot, 0, len(r.rooms))
	for _, s := range r.rooms {
		slots = append(slots, s)
	}
	r.rooms = make(map[string]*slot)
	r.mu.Unlock()

	for _, s := range slots {
		<-s.ready
		if s.auth != nil {
			s.auth.Close()
		}
	}
}
