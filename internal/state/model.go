package state

import (
	"encoding/json"
	"math"
)

// Frame tags the coordinate space a Point was expressed in.
type Frame uint8

const (
	// FrameAbsolute points are device pixels of the sender's canvas.
	FrameAbsolute Frame = iota
	// FrameFractional points are 0..1 fractions of canvas width and height.
	FrameFractional
	frameInvalid
)

// Point is one sampled pointer position. T is a millisecond timestamp.
type Point struct {
	X, Y  float64
	T     int64
	Frame Frame
}

// Abs builds an absolute-frame point.
func Abs(x, y float64, t int64) Point { return Point{X: x, Y: y, T: t, Frame: FrameAbsolute} }

// Frac builds a fractional-frame point.
func Frac(x, y float64, t int64) Point { return Point{X: x, Y: y, T: t, Frame: FrameFractional} }

// Valid reports whether the point decoded into a known frame with finite coordinates.
func (p Point) Valid() bool {
	if p.Frame != FrameAbsolute && p.Frame != FrameFractional {
		return false
	}
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Same reports an exact coordinate and timestamp repeat.
func (p Point) Same(o Point) bool {
	return p.X == o.X && p.Y == o.Y && p.T == o.T && p.Frame == o.Frame
}

type wirePoint struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	XPct *float64 `json:"xPct,omitempty"`
	YPct *float64 `json:"yPct,omitempty"`
	T    int64    `json:"t"`
}

// MarshalJSON writes {x,y,t} for absolute points and {xPct,yPct,t} for fractional ones.
func (p Point) MarshalJSON() ([]byte, error) {
	x, y := p.X, p.Y
	w := wirePoint{T: p.T}
	if p.Frame == FrameFractional {
		w.XPct, w.YPct = &x, &y
	} else {
		w.X, w.Y = &x, &y
	}
	return json.Marshal(w)
}

// UnmarshalJSON resolves the frame once. A point carrying neither pair is
// kept but marked invalid so that sanitising can drop it.
func (p *Point) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.XPct != nil && w.YPct != nil:
		*p = Frac(*w.XPct, *w.YPct, w.T)
	case w.X != nil && w.Y != nil:
		*p = Abs(*w.X, *w.Y, w.T)
	default:
		*p = Point{T: w.T, Frame: frameInvalid}
	}
	return nil
}

// Tool is the drawing tool a stroke was made with.
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
	ToolText   Tool = "text"
	ToolImage  Tool = "image"
)

// Known reports whether t is one of the supported tools.
func (t Tool) Known() bool {
	switch t {
	case ToolBrush, ToolEraser, ToolText, ToolImage:
		return true
	}
	return false
}

// Stroke is one pen-down to pen-up gesture. It is partial while Complete is
// false and immutable once it has been committed to an OperationLog.
type Stroke struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"userId"`
	Tool     Tool    `json:"tool"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Text     string  `json:"text,omitempty"`
	ImageSrc string  `json:"imageSrc,omitempty"`
	Points   []Point `json:"points"`
	Complete bool    `json:"complete"`
}

// Clone returns a copy that shares no point storage with s.
func (s Stroke) Clone() Stroke {
	if s.Points != nil {
		s.Points = append([]Point(nil), s.Points...)
	}
	return s
}

// Kind discriminates log entries.
type Kind string

const (
	KindStroke Kind = "stroke"
	KindUndo   Kind = "undo"
	KindRedo   Kind = "redo"
)

// LogEntry is one committed operation. Stroke is set for KindStroke;
// RefID and By are set for KindUndo and KindRedo. The JSON names match the
// room files written by earlier versions of the board.
type LogEntry struct {
	Seq    uint64  `json:"seq"`
	Kind   Kind    `json:"type"`
	Stroke *Stroke `json:"op,omitempty"`
	RefID  string  `json:"refId,omitempty"`
	By     string  `json:"by,omitempty"`
}

// StrokeID returns the id of the stroke an entry adds or toggles.
func (e LogEntry) StrokeID() string {
	if e.Kind == KindStroke {
		if e.Stroke == nil {
			return ""
		}
		return e.Stroke.ID
	}
	return e.RefID
}

// UserInfo is a roster entry.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
