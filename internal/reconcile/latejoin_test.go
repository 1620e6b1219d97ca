package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/state"
)

// history builds a room log through the same OperationLog the authority uses.
func history(t *testing.T) []state.LogEntry {
	t.Helper()
	l := state.NewOperationLog()
	l.AppendStroke(state.Stroke{ID: "a", AuthorID: "u1", Tool: state.ToolBrush, Color: "#e11d48", Width: 6,
		Points: []state.Point{state.Frac(0.1, 0.1, 1), state.Frac(0.8, 0.2, 2), state.Frac(0.5, 0.6, 3)}})
	l.AppendStroke(state.Stroke{ID: "b", AuthorID: "u2", Tool: state.ToolBrush, Color: "#0ea5e9", Width: 10,
		Points: []state.Point{state.Abs(10, 60, 1), state.Abs(70, 60, 2)}})
	l.AppendStroke(state.Stroke{ID: "c", AuthorID: "u1", Tool: state.ToolEraser, Width: 8,
		Points: []state.Point{state.Abs(40, 0, 1), state.Abs(40, 80, 2)}})
	target, ok := l.UndoTarget()
	require.True(t, ok)
	l.AppendUndo(target, "u2")
	l.AppendStroke(state.Stroke{ID: "d", AuthorID: "u2", Tool: state.ToolBrush, Color: "#10b981", Width: 2,
		Points: []state.Point{state.Frac(0.5, 0.5, 1)}})
	target, ok = l.RedoTarget()
	require.True(t, ok)
	l.AppendRedo(target, "u1")
	l.AppendStroke(state.Stroke{ID: "e", AuthorID: "u3", Tool: state.ToolBrush, Color: "#7c3aed", Width: 4,
		Points: []state.Point{state.Abs(5, 5, 1), state.Abs(75, 75, 2)}})
	return l.Entries()
}

func TestLateJoinMatchesIncrementalViewer(t *testing.T) {
	entries := history(t)

	early := canvas.NewRaster(80, 80)
	incremental := NewEngine(early, nil)
	for _, e := range entries {
		require.True(t, incremental.ApplyCommitted(e))
	}

	late := canvas.NewRaster(80, 80)
	joiner := NewEngine(late, nil)
	joiner.Rebuild(entries)

	assert.Equal(t, incremental.ActiveSet(), joiner.ActiveSet())
	assert.Equal(t, early.Image().Pix, late.Image().Pix, "identical raster")
}

func TestRebuildIsIdempotent(t *testing.T) {
	entries := history(t)
	r := canvas.NewRaster(80, 80)
	e := NewEngine(r, nil)

	e.Rebuild(entries)
	first := append([]byte(nil), r.Image().Pix...)
	firstSet := e.ActiveSet()

	e.Rebuild(entries)
	assert.Equal(t, first, r.Image().Pix)
	assert.Equal(t, firstSet, e.ActiveSet())
}

func TestRebuildAfterLogReplayDropsCommittedPartials(t *testing.T) {
	e := NewEngine(canvas.NewRaster(80, 80), nil)
	e.ApplyPartial(state.Stroke{ID: "a", AuthorID: "u1", Tool: state.ToolBrush, Width: 6, Points: []state.Point{state.Abs(1, 1, 1)}})
	e.ApplyPartial(state.Stroke{ID: "zz", AuthorID: "u9", Tool: state.ToolBrush, Width: 6, Points: []state.Point{state.Abs(1, 1, 1)}})

	e.Rebuild(history(t))
	_, ok := e.Provisional("a")
	assert.False(t, ok)
	_, ok = e.Provisional("zz")
	assert.True(t, ok, "uncommitted partials survive a rebuild")
}
