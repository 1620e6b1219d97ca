// Package reconcile merges the committed operation log of a room with the
// live partial strokes of its participants into one rendered picture.
package reconcile

import (
	"image"
	"sync"

	"go.uber.org/zap"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/state"
)

// buffer is the provisional copy of a stroke that has not been committed
// yet. Points are kept in the frame they arrived in.
type buffer struct {
	stroke state.Stroke
}

func (b *buffer) last() (state.Point, bool) {
	if n := len(b.stroke.Points); n > 0 {
		return b.stroke.Points[n-1], true
	}
	return state.Point{}, false
}

// Engine is one viewer's reconciliation state. Every method is safe for
// concurrent use.
type Engine struct {
	mu      sync.Mutex
	surface canvas.Surface
	logger  *zap.Logger

	log       []state.LogEntry
	lastSeq   uint64
	committed map[string]struct{}

	provisional map[string]*buffer
	order       []string
}

// NewEngine creates an engine drawing on surf.
func NewEngine(surf canvas.Surface, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		surface:     surf,
		logger:      logger,
		committed:   make(map[string]struct{}),
		provisional: make(map[string]*buffer),
	}
}

// ApplyPartial merges a live update of someone else's stroke. The first
// update for an id is copied and drawn; later ones only contribute points
// whose timestamp is strictly newer than the last buffered point, and only
// the segments those points add are drawn. It returns the number of points
// accepted.
func (e *Engine) ApplyPartial(s state.Stroke) int {
	if s.ID == "" {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, done := e.committed[s.ID]; done {
		e.logger.Debug("partial after commit dropped", zap.String("stroke", s.ID))
		return 0
	}
	buf, ok := e.provisional[s.ID]
	if !ok {
		style := s
		style.Points = nil
		buf = &buffer{stroke: style}
		e.provisional[s.ID] = buf
		e.order = append(e.order, s.ID)
	}

	if len(buf.stroke.Points) == 0 {
		seen := make(map[state.Point]struct{}, len(s.Points))
		for _, p := range s.Points {
			if _, dup := seen[p]; dup || !p.Valid() {
				continue
			}
			if last, ok := buf.last(); ok && p.T < last.T {
				continue
			}
			seen[p] = struct{}{}
			buf.stroke.Points = append(buf.stroke.Points, p)
		}
		canvas.DrawStroke(e.surface, buf.stroke)
		return len(buf.stroke.Points)
	}

	added := 0
	for _, p := range s.Points {
		last, _ := buf.last()
		if !p.Valid() || p.T <= last.T {
			continue
		}
		buf.stroke.Points = append(buf.stroke.Points, p)
		canvas.DrawStep(e.surface, buf.stroke, &last, p)
		added++
	}
	return added
}

// DrawLocal paints one step of the local author's own stroke and keeps it
// in a provisional buffer so rebuilds repaint it until the commit arrives.
// It matches the state.Assembler OnDraw hook.
func (e *Engine) DrawLocal(s state.Stroke, from *state.Point, to state.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf, ok := e.provisional[s.ID]
	if !ok {
		style := s
		style.Points = nil
		buf = &buffer{stroke: style}
		e.provisional[s.ID] = buf
		e.order = append(e.order, s.ID)
	}
	buf.stroke.Points = append(buf.stroke.Points, to)
	canvas.DrawStep(e.surface, buf.stroke, from, to)
}

// ApplyCommitted applies one op.new entry. A redelivered entry (seq not
// newer than the last applied one) is ignored. It reports whether the entry
// was applied.
func (e *Engine) ApplyCommitted(entry state.LogEntry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry.Seq <= e.lastSeq {
		e.logger.Debug("duplicate op dropped", zap.Uint64("seq", entry.Seq))
		return false
	}
	e.log = append(e.log, entry)
	e.lastSeq = entry.Seq

	switch entry.Kind {
	case state.KindStroke:
		if entry.Stroke == nil {
			return true
		}
		id := entry.Stroke.ID
		e.committed[id] = struct{}{}
		if e.dropBuffer(id) {
			// Provisional pixels may differ from the authoritative stroke;
			// only a full redraw leaves no trace of them.
			e.rebuildLocked()
			return true
		}
		canvas.DrawStroke(e.surface, *entry.Stroke)
	case state.KindUndo, state.KindRedo:
		e.rebuildLocked()
	}
	return true
}

// Rebuild replaces the known log, e.g. with the history received on join,
// and redraws everything.
func (e *Engine) Rebuild(entries []state.LogEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log = append([]state.LogEntry(nil), entries...)
	e.lastSeq = 0
	e.committed = make(map[string]struct{})
	for _, entry := range e.log {
		e.lastSeq = max(e.lastSeq, entry.Seq)
		if entry.Kind == state.KindStroke && entry.Stroke != nil {
			e.committed[entry.Stroke.ID] = struct{}{}
			e.dropBuffer(entry.Stroke.ID)
		}
	}
	e.rebuildLocked()
}

// Redraw repaints from the current log.
func (e *Engine) Redraw() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuildLocked()
}

// Resize switches to a new surface, typically after the canvas changed
// size, and redraws onto it.
func (e *Engine) Resize(surf canvas.Surface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = surf
	e.rebuildLocked()
}

// DiscardAuthors drops the provisional strokes of every author not in
// present. Their commits can no longer arrive.
func (e *Engine) DiscardAuthors(present map[string]struct{}) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for _, id := range append([]string(nil), e.order...) {
		if _, ok := present[e.provisional[id].stroke.AuthorID]; !ok {
			e.dropBuffer(id)
			dropped++
		}
	}
	if dropped > 0 {
		e.rebuildLocked()
	}
	return dropped
}

// ActiveSet is the visible stroke ids of the current log.
func (e *Engine) ActiveSet() map[string]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.ActiveSet(e.log)
}

// Log returns a copy of the committed entries seen so far.
func (e *Engine) Log() []state.LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]state.LogEntry(nil), e.log...)
}

// Provisional returns the buffered points of a live stroke.
func (e *Engine) Provisional(id string) ([]state.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, ok := e.provisional[id]
	if !ok {
		return nil, false
	}
	return append([]state.Point(nil), buf.stroke.Points...), true
}

// Frame copies the rendered picture when the surface is backed by an image.
func (e *Engine) Frame() (*image.RGBA, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.surface.(interface{ Image() *image.RGBA })
	if !ok {
		return nil, false
	}
	src := r.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out, true
}

func (e *Engine) rebuildLocked() {
	e.surface.Clear()
	for _, s := range state.ActiveStrokes(e.log) {
		canvas.DrawStroke(e.surface, s)
	}
	for _, id := range e.order {
		canvas.DrawStroke(e.surface, e.provisional[id].stroke)
	}
}

func (e *Engine) dropBuffer(id string) bool {
	if _, ok := e.provisional[id]; !ok {
		return false
	}
	delete(e.provisional, id)
	for i, o := range e.order {
		if o == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}
