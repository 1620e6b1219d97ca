package canvas

import "CollabBoard/internal/state"

// Size is a canvas size in local pixels.
type Size struct {
	Width, Height int
}

// ToLocal converts p into this canvas' absolute frame. Fractional points are
// scaled by the canvas size; absolute points pass through unchanged.
func (sz Size) ToLocal(p state.Point) state.Point {
	if p.Frame == state.FrameFractional {
		return state.Abs(p.X*float64(max(sz.Width, 1)), p.Y*float64(max(sz.Height, 1)), p.T)
	}
	return p
}

// ToShared converts a local absolute point into the fractional frame sent
// over the wire, so peers with other canvas sizes see the same geometry.
func (sz Size) ToShared(p state.Point) state.Point {
	if p.Frame == state.FrameFractional {
		return p
	}
	return state.Frac(p.X/float64(max(sz.Width, 1)), p.Y/float64(max(sz.Height, 1)), p.T)
}

// LocalPoints maps every point of a stroke into the local frame.
func (sz Size) LocalPoints(points []state.Point) []state.Point {
	out := make([]state.Point, len(points))
	for i, p := range points {
		out[i] = sz.ToLocal(p)
	}
	return out
}

// SharedStroke returns a copy of s with every point in the fractional frame.
func (sz Size) SharedStroke(s state.Stroke) state.Stroke {
	s = s.Clone()
	for i, p := range s.Points {
		s.Points[i] = sz.ToShared(p)
	}
	return s
}
