// Package room runs one authority per room: the only writer of the room's
// operation log and roster.
package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CollabBoard/internal/logging"
	"CollabBoard/internal/state"
	"CollabBoard/internal/storage"
)

var (
	// ErrClosed is returned by calls on an authority that has stopped.
	ErrClosed = errors.New("room closed")
	// ErrDuplicateStroke is returned when a final stroke id is already in
	// the log.
	ErrDuplicateStroke = errors.New("stroke already committed")
)

const persistTimeout = 5 * time.Second

// Outbox delivers authority events to participants.
type Outbox interface {
	// SendTo delivers to one participant.
	SendTo(userID string, m state.Message)
	// Broadcast delivers to every participant in the room except the given
	// id. An empty except reaches everyone.
	Broadcast(roomID string, m state.Message, except string)
}

// Options configure every authority of a registry.
type Options struct {
	Limits   state.Limits
	Palette  []string
	Fallback string
	Store    storage.Store
	Out      Outbox
	Logger   *zap.Logger
}

// Authority serialises every mutation of one room on a single goroutine.
// Calls are queued in arrival order and each runs to completion before the
// next starts.
type Authority struct {
	id     string
	opts   Options
	logger *zap.Logger

	// owned by the run loop
	log   *state.OperationLog
	users map[string]state.UserInfo
	order []string

	cmds      chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewAuthority starts the authority of room id over a restored history.
func NewAuthority(id string, history []state.LogEntry, opts Options) *Authority {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Authority{
		id:      id,
		opts:    opts,
		logger:  opts.Logger.Named("room").With(logging.Room(id)),
		log:     state.RestoreLog(history),
		users:   make(map[string]state.UserInfo),
		cmds:    make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

// ID is the normalised room id.
func (a *Authority) ID() string { return a.id }

func (a *Authority) run() {
	defer close(a.stopped)
	for {
		select {
		case fn := <-a.cmds:
			fn()
		case <-a.done:
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it.
func (a *Authority) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case a.cmds <- wrapped:
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Join registers a participant, sends it the full state and broadcasts the
// new roster. Joining again with the same id keeps the assigned colour.
func (a *Authority) Join(ctx context.Context, userID, name string) (state.FullState, error) {
	var fs state.FullState
	err := a.do(ctx, func() {
		if name == "" {
			name = fmt.Sprintf("User%d", rand.IntN(1000))
		}
		u, known := a.users[userID]
		if !known {
			u = state.UserInfo{ID: userID, Color: PickColor(a.opts.Palette, a.opts.Fallback, a.users)}
			a.order = append(a.order, userID)
		}
		u.Name = name
		a.users[userID] = u

		fs = state.FullState{
			SelfID:     userID,
			SelfColor:  u.Color,
			Users:      a.roster(),
			Operations: a.log.Entries(),
		}
		a.opts.Out.SendTo(userID, state.Message{Type: state.EventFullState, Data: fs})
		a.broadcastRoster()
		a.logger.Info("join", logging.User(userID), zap.String("name", name), zap.Int("users", len(a.users)))
	})
	return fs, err
}

// CommitFinalStroke validates s, appends it as authored by the committing
// participant, persists the log and broadcasts the entry to everyone in the
// room, the author included.
func (a *Authority) CommitFinalStroke(ctx context.Context, by string, s state.Stroke) (state.LogEntry, error) {
	var (
		entry  state.LogEntry
		reject error
	)
	err := a.do(ctx, func() {
		clean, err := state.Sanitize(s, a.opts.Limits)
		if err != nil {
			reject = err
			a.logger.Warn("final stroke dropped", logging.User(by), zap.String("stroke", s.ID), zap.Error(err))
			return
		}
		if a.log.HasStroke(clean.ID) {
			reject = ErrDuplicateStroke
			a.logger.Debug("final stroke redelivered", logging.User(by), zap.String("stroke", clean.ID))
			return
		}
		clean.AuthorID = by
		entry = a.log.AppendStroke(clean)
		a.publish(entry)
		a.logger.Debug("stroke committed", logging.Seq(entry.Seq), zap.String("stroke", clean.ID), zap.Int("points", len(clean.Points)))
	})
	if err != nil {
		return state.LogEntry{}, err
	}
	return entry, reject
}

// RequestUndo hides the newest visible stroke, whoever drew it. It reports
// false when nothing is visible.
func (a *Authority) RequestUndo(ctx context.Context, by string) (state.LogEntry, bool, error) {
	return a.toggle(ctx, by, state.KindUndo)
}

// RequestRedo restores the stroke of the newest undo that no later redo
// has answered. It reports false when there is nothing to redo.
func (a *Authority) RequestRedo(ctx context.Context, by string) (state.LogEntry, bool, error) {
	return a.toggle(ctx, by, state.KindRedo)
}

func (a *Authority) toggle(ctx context.Context, by string, kind state.Kind) (state.LogEntry, bool, error) {
	var (
		entry state.LogEntry
		ok    bool
	)
	err := a.do(ctx, func() {
		var target string
		if kind == state.KindUndo {
			target, ok = a.log.UndoTarget()
		} else {
			target, ok = a.log.RedoTarget()
		}
		if !ok {
			a.logger.Debug("nothing to "+string(kind), logging.User(by))
			return
		}
		if kind == state.KindUndo {
			entry = a.log.AppendUndo(target, by)
		} else {
			entry = a.log.AppendRedo(target, by)
		}
		a.publish(entry)
		a.logger.Info(string(kind), logging.User(by), logging.Seq(entry.Seq), zap.String("ref", target))
	})
	return entry, ok, err
}

// Leave removes a participant and broadcasts the roster. The log is left
// untouched.
func (a *Authority) Leave(ctx context.Context, userID string) error {
	return a.do(ctx, func() {
		if _, ok := a.users[userID]; !ok {
			return
		}
		delete(a.users, userID)
		for i, id := range a.order {
			if id == userID {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
		a.broadcastRoster()
		a.logger.Info("leave", logging.User(userID), zap.Int("users", len(a.users)))
	})
}

// Snapshot returns the current log and roster.
func (a *Authority) Snapshot(ctx context.Context) ([]state.LogEntry, []state.UserInfo, error) {
	var (
		entries []state.LogEntry
		users   []state.UserInfo
	)
	err := a.do(ctx, func() {
		entries = a.log.Entries()
		users = a.roster()
	})
	return entries, users, err
}

// Close stops the room goroutine. Queued calls that have not started
// return ErrClosed.
func (a *Authority) Close() {
	a.closeOnce.Do(func() { close(a.done) })
	<-a.stopped
}

// publish persists the log and then broadcasts e. A failed save is logged
// and does not hold back the broadcast.
func (a *Authority) publish(e state.LogEntry) {
	if a.opts.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := a.opts.Store.Save(ctx, a.id, a.log.Entries()); err != nil {
			a.logger.Warn("persist failed", logging.Seq(e.Seq), zap.Error(err))
		}
		cancel()
	}
	a.opts.Out.Broadcast(a.id, state.Message{Type: state.EventOpNew, Data: e}, "")
}

func (a *Authority) broadcastRoster() {
	a.opts.Out.Broadcast(a.id, state.Message{Type: state.EventUserList, Data: a.roster()}, "")
}

func (a *Authority) roster() []state.UserInfo {
	users := make([]state.UserInfo, 0, len(a.order))
	for _, id := range a.order {
		users = append(users, a.users[id])
	}
	return users
}
