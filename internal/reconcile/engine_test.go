package reconcile

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/state"
)

// recorder counts primitive calls instead of painting.
type recorder struct {
	mu       sync.Mutex
	size     canvas.Size
	clears   int
	dots     int
	segments [][2]state.Point
}

func newRecorder() *recorder { return &recorder{size: canvas.Size{Width: 100, Height: 100}} }

func (r *recorder) Size() canvas.Size { return r.size }
func (r *recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	r.dots = 0
	r.segments = nil
}
func (r *recorder) Dot(canvas.Style, state.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dots++
}
func (r *recorder) Segment(_ canvas.Style, a, b state.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, [2]state.Point{a, b})
}
func (r *recorder) Label(canvas.Style, state.Point, string) {}
func (r *recorder) Stamp(state.Point, image.Image)         {}

func partial(id, author string, pts ...state.Point) state.Stroke {
	return state.Stroke{ID: id, AuthorID: author, Tool: state.ToolBrush, Color: "#e11d48", Width: 4, Points: pts}
}

func committed(seq uint64, s state.Stroke) state.LogEntry {
	s.Complete = true
	return state.LogEntry{Seq: seq, Kind: state.KindStroke, Stroke: &s}
}

func TestPartialMergeIsIdempotent(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	update := partial("s1", "u2", state.Abs(1, 1, 10), state.Abs(5, 5, 20), state.Abs(9, 9, 30))

	assert.Equal(t, 3, e.ApplyPartial(update))
	assert.Len(t, rec.segments, 2)

	assert.Equal(t, 0, e.ApplyPartial(update), "same payload adds nothing")
	assert.Len(t, rec.segments, 2, "no segment is drawn twice")

	pts, ok := e.Provisional("s1")
	require.True(t, ok)
	assert.Len(t, pts, 3)
}

func TestPartialDropsOutOfOrderPoints(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	e.ApplyPartial(partial("s1", "u2", state.Abs(1, 1, 10), state.Abs(2, 2, 20)))

	added := e.ApplyPartial(partial("s1", "u2", state.Abs(3, 3, 15), state.Abs(4, 4, 40), state.Abs(5, 5, 35), state.Abs(6, 6, 50)))
	assert.Equal(t, 2, added)

	pts, _ := e.Provisional("s1")
	var ts []int64
	for _, p := range pts {
		ts = append(ts, p.T)
	}
	assert.Equal(t, []int64{10, 20, 40, 50}, ts)
	require.Len(t, rec.segments, 3)
	assert.Equal(t, state.Abs(2, 2, 20), rec.segments[1][0], "only the new segment is drawn")
	assert.Equal(t, state.Abs(4, 4, 40), rec.segments[1][1])
}

func TestFirstPartialDeduplicatesRepeats(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	p := state.Abs(1, 1, 10)
	assert.Equal(t, 1, e.ApplyPartial(partial("s1", "u2", p, p, p)))
	assert.Equal(t, 1, rec.dots, "a single point renders as a dot")
}

func TestFirstPartialDeduplicatesNonAdjacentRepeats(t *testing.T) {
	e := NewEngine(newRecorder(), nil)
	a, b := state.Abs(1, 1, 10), state.Abs(6, 6, 10)
	assert.Equal(t, 2, e.ApplyPartial(partial("s1", "u2", a, b, a, b)))
	pts, ok := e.Provisional("s1")
	require.True(t, ok)
	assert.Equal(t, []state.Point{a, b}, pts)
}

func TestPartialFrameIsConverted(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	e.ApplyPartial(partial("s1", "u2", state.Frac(0.1, 0.2, 1), state.Frac(0.5, 0.5, 2)))
	require.Len(t, rec.segments, 1)
	assert.Equal(t, state.Abs(10, 20, 1), rec.segments[0][0])
	assert.Equal(t, state.Abs(50, 50, 2), rec.segments[0][1])
}

func TestFinalSupersedesPartial(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	e.ApplyPartial(partial("s1", "u2", state.Abs(1, 1, 10), state.Abs(5, 5, 20), state.Abs(9, 9, 30)))

	final := partial("s1", "u2", state.Abs(1, 1, 10), state.Abs(5, 5, 20))
	require.True(t, e.ApplyCommitted(committed(1, final)))

	_, ok := e.Provisional("s1")
	assert.False(t, ok, "no provisional buffer remains")
	assert.Equal(t, 1, rec.clears)
	assert.Len(t, rec.segments, 1, "picture equals the final stroke alone")

	assert.Equal(t, 0, e.ApplyPartial(final), "late partial for a committed id is ignored")
	_, ok = e.Provisional("s1")
	assert.False(t, ok)
}

func TestCommittedWithoutPartialDrawsIncrementally(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	require.True(t, e.ApplyCommitted(committed(1, partial("a", "u1", state.Abs(1, 1, 1), state.Abs(2, 2, 2)))))
	assert.Equal(t, 0, rec.clears)
	assert.Len(t, rec.segments, 1)

	assert.False(t, e.ApplyCommitted(committed(1, partial("a", "u1", state.Abs(1, 1, 1)))), "redelivered seq")
	assert.Len(t, e.Log(), 1)
}

func TestUndoTriggersRebuild(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	e.ApplyCommitted(committed(1, partial("a", "u1", state.Abs(1, 1, 1), state.Abs(2, 2, 2))))
	e.ApplyCommitted(committed(2, partial("b", "u2", state.Abs(3, 3, 1), state.Abs(4, 4, 2))))
	e.ApplyPartial(partial("c", "u3", state.Abs(7, 7, 1), state.Abs(8, 8, 2)))

	e.ApplyCommitted(state.LogEntry{Seq: 3, Kind: state.KindUndo, RefID: "b", By: "u1"})
	assert.Equal(t, 1, rec.clears)
	assert.Len(t, rec.segments, 2, "stroke a plus the live partial c")
	assert.Equal(t, state.Abs(7, 7, 1), rec.segments[1][0], "partials are painted on top")
	assert.Len(t, e.ActiveSet(), 1)

	e.ApplyCommitted(state.LogEntry{Seq: 4, Kind: state.KindRedo, RefID: "b", By: "u1"})
	assert.Equal(t, 2, rec.clears)
	assert.Len(t, rec.segments, 3)
}

func TestDiscardAuthors(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	e.ApplyPartial(partial("s1", "gone", state.Abs(1, 1, 1)))
	e.ApplyPartial(partial("s2", "here", state.Abs(2, 2, 1)))

	assert.Equal(t, 1, e.DiscardAuthors(map[string]struct{}{"here": {}}))
	_, ok := e.Provisional("s1")
	assert.False(t, ok)
	_, ok = e.Provisional("s2")
	assert.True(t, ok)
}

func TestDrawLocalSurvivesRebuild(t *testing.T) {
	rec := newRecorder()
	e := NewEngine(rec, nil)
	a := state.NewAssembler("me", nil, state.DefaultMinMotion, 100)
	a.OnDraw = e.DrawLocal

	s := a.Begin(state.ToolBrush, "#000", 3, 10, 10)
	a.Extend(20, 20)
	assert.Equal(t, 1, rec.dots)
	assert.Len(t, rec.segments, 1)

	e.Redraw()
	assert.Len(t, rec.segments, 1, "in-progress stroke is repainted")

	final, ok := a.Finalize()
	require.True(t, ok)
	e.ApplyCommitted(committed(1, final))
	_, ok = e.Provisional(s.ID)
	assert.False(t, ok)
	assert.Len(t, rec.segments, 1)
}

func TestConcurrentPartialsFromDistinctAuthors(t *testing.T) {
	e := NewEngine(canvas.NewRaster(64, 64), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for ts := int64(1); ts <= 20; ts++ {
				e.ApplyPartial(partial(id, id, state.Abs(float64(ts), float64(i*5), ts)))
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		pts, ok := e.Provisional(string(rune('a' + i)))
		require.True(t, ok)
		assert.Len(t, pts, 20)
	}
}
