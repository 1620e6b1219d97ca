package net

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"CollabBoard/internal/logging"
	"CollabBoard/internal/room"
	"CollabBoard/internal/state"
)

const callTimeout = 5 * time.Second

type handlerFunc func(p *Peer, env Envelope)

// Hub is the host side of the transport. It tracks which room each peer is
// in, relays live traffic between peers and forwards mutations to the room
// authorities. It implements room.Outbox.
type Hub struct {
	limits   state.Limits
	logger   *zap.Logger
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc

	ctx    context.Context
	cancel context.CancelFunc
	rooms  *room.Registry

	mu      sync.RWMutex
	peers   map[string]*Peer
	members map[string]map[string]*Peer
}

// NewHub creates a hub. Attach a registry before serving.
func NewHub(limits state.Limits, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		limits: limits,
		logger: logger.Named("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		peers:   make(map[string]*Peer),
		members: make(map[string]map[string]*Peer),
	}
	h.handlers = map[string]handlerFunc{
		state.EventJoin:    h.handleJoin,
		state.EventPartial: h.handlePartial,
		state.EventFinal:   h.handleFinal,
		state.EventUndo:    h.handleUndo,
		state.EventRedo:    h.handleRedo,
		state.EventCursor:  h.handleCursor,
		state.EventPing:    h.handlePing,
	}
	return h
}

// Attach sets the rooms served by the hub.
func (h *Hub) Attach(rooms *room.Registry) { h.rooms = rooms }

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	p := newPeer(uuid.NewString(), conn, h.logger)
	h.mu.Lock()
	h.peers[p.ID] = p
	h.mu.Unlock()
	h.logger.Info("connected", zap.String("peer", p.ID), zap.String("remote", r.RemoteAddr))

	go p.writePump()
	p.readPump(func(frame []byte) { h.dispatch(p, frame) })

	p.close()
	h.disconnect(p)
}

func (h *Hub) dispatch(p *Peer, frame []byte) {
	env, err := Decode(frame)
	if err != nil {
		p.logger.Debug("bad frame", zap.Error(err))
		return
	}
	handle, ok := h.handlers[env.Type]
	if !ok {
		p.logger.Debug("unknown event", zap.String("type", env.Type))
		return
	}
	handle(p, env)
}

func (h *Hub) disconnect(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID)
	rid := h.leaveLocked(p)
	h.mu.Unlock()
	h.logger.Info("disconnected", zap.String("peer", p.ID))
	if rid == "" {
		return
	}
	if a, ok := h.rooms.Lookup(rid); ok {
		h.call(func(ctx context.Context) error { return a.Leave(ctx, p.ID) })
	}
}

// leaveLocked removes p from its room and returns the room it was in.
func (h *Hub) leaveLocked(p *Peer) string {
	rid := p.room
	if rid == "" {
		return ""
	}
	delete(h.members[rid], p.ID)
	if len(h.members[rid]) == 0 {
		delete(h.members, rid)
	}
	p.room = ""
	return rid
}

func (h *Hub) roomOf(p *Peer) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return p.room
}

// authority returns the room the peer joined, if any.
func (h *Hub) authority(p *Peer) (*room.Authority, bool) {
	rid := h.roomOf(p)
	if rid == "" {
		return nil, false
	}
	return h.rooms.Lookup(rid)
}

func (h *Hub) call(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(h.ctx, callTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, room.ErrClosed) {
		h.logger.Debug("room call failed", zap.Error(err))
	}
}

func (h *Hub) handleJoin(p *Peer, env Envelope) {
	var req state.JoinRequest
	if err := env.DecodeInto(&req); err != nil {
		p.logger.Debug("bad join", zap.Error(err))
		return
	}
	rid := room.NormalizeRoomID(req.RoomID)
	ctx, cancel := context.WithTimeout(h.ctx, callTimeout)
	defer cancel()
	a, err := h.rooms.Get(ctx, rid)
	if err != nil {
		h.logger.Error("join failed", logging.Room(rid), zap.Error(err))
		return
	}

	h.mu.Lock()
	prev := ""
	if p.room != rid {
		prev = h.leaveLocked(p)
		if h.members[rid] == nil {
			h.members[rid] = make(map[string]*Peer)
		}
		h.members[rid][p.ID] = p
		p.room = rid
	}
	h.mu.Unlock()

	if prev != "" {
		if old, ok := h.rooms.Lookup(prev); ok {
			h.call(func(ctx context.Context) error { return old.Leave(ctx, p.ID) })
		}
	}
	h.call(func(ctx context.Context) error {
		_, err := a.Join(ctx, p.ID, req.UserName)
		return err
	})
}

// handlePartial relays a live stroke to the rest of the room. It is
// clamped like a final stroke but never reaches the authority.
func (h *Hub) handlePartial(p *Peer, env Envelope) {
	rid := h.roomOf(p)
	if rid == "" {
		return
	}
	s, err := DecodeStroke(env.Data)
	if err == nil {
		s, err = state.Sanitize(s, h.limits)
	}
	if err != nil {
		p.logger.Debug("partial dropped", zap.Error(err))
		return
	}
	s.AuthorID = p.ID
	s.Complete = false
	h.Broadcast(rid, state.Message{Type: state.EventPartial, Data: state.StrokeMessage{Stroke: s}}, p.ID)
}

func (h *Hub) handleFinal(p *Peer, env Envelope) {
	a, ok := h.authority(p)
	if !ok {
		return
	}
	s, err := DecodeStroke(env.Data)
	if err != nil {
		p.logger.Warn("final dropped", zap.Error(err))
		return
	}
	h.call(func(ctx context.Context) error {
		_, err := a.CommitFinalStroke(ctx, p.ID, s)
		return err
	})
}

func (h *Hub) handleUndo(p *Peer, _ Envelope) {
	if a, ok := h.authority(p); ok {
		h.call(func(ctx context.Context) error {
			_, _, err := a.RequestUndo(ctx, p.ID)
			return err
		})
	}
}

func (h *Hub) handleRedo(p *Peer, _ Envelope) {
	if a, ok := h.authority(p); ok {
		h.call(func(ctx context.Context) error {
			_, _, err := a.RequestRedo(ctx, p.ID)
			return err
		})
	}
}

func (h *Hub) handleCursor(p *Peer, env Envelope) {
	rid := h.roomOf(p)
	if rid == "" {
		return
	}
	var c state.Cursor
	if err := env.DecodeInto(&c); err != nil || !finite(c.X) || !finite(c.Y) {
		return
	}
	c.UserID = p.ID
	h.Broadcast(rid, state.Message{Type: state.EventCursor, Data: c}, p.ID)
}

func (h *Hub) handlePing(p *Peer, _ Envelope) {
	h.SendTo(p.ID, state.Message{Type: state.EventPong})
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// SendTo delivers m to one peer.
func (h *Hub) SendTo(peerID string, m state.Message) {
	frame, err := Encode(m)
	if err != nil {
		h.logger.Error("encode failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	p := h.peers[peerID]
	h.mu.RUnlock()
	if p != nil {
		p.enqueue(frame)
	}
}

// Broadcast delivers m to every peer in a room except one. The frame is
// encoded once.
func (h *Hub) Broadcast(roomID string, m state.Message, except string) {
	frame, err := Encode(m)
	if err != nil {
		h.logger.Error("encode failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, p := range h.members[roomID] {
		if id != except {
			p.enqueue(frame)
		}
	}
}

// Peers counts connected peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close disconnects every peer and cancels pending room calls.
func (h *Hub) Close() {
	h.cancel()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.peers {
		p.close()
	}
}
