package state

import (
	"math"

	"github.com/pkg/errors"
)

// ErrMalformedStroke is returned for strokes without an id or without any
// usable point.
var ErrMalformedStroke = errors.New("malformed stroke")

// Limits bounds what a stroke may carry once it crosses the authority.
type Limits struct {
	MaxWidth     float64
	DefaultWidth float64
	MaxPoints    int
}

func DefaultLimits() Limits {
	return Limits{MaxWidth: 60, DefaultWidth: 4, MaxPoints: 2000}
}

// Sanitize validates s and corrects out-of-range values instead of
// rejecting them: widths are clamped to (0, MaxWidth], invalid widths fall
// back to DefaultWidth, unknown tools become brush strokes and excess points
// are truncated. The result never aliases s.Points.
func Sanitize(s Stroke, lim Limits) (Stroke, error) {
	if s.ID == "" || len(s.Points) == 0 {
		return Stroke{}, ErrMalformedStroke
	}
	points := make([]Point, 0, min(len(s.Points), lim.MaxPoints))
	for _, p := range s.Points {
		if len(points) == lim.MaxPoints {
			break
		}
		if p.Valid() {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return Stroke{}, ErrMalformedStroke
	}
	s.Points = points
	s.Width = clampWidth(s.Width, lim)
	if !s.Tool.Known() {
		s.Tool = ToolBrush
	}
	return s, nil
}

func clampWidth(w float64, lim Limits) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return lim.DefaultWidth
	}
	return math.Min(w, lim.MaxWidth)
}
