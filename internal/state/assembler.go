package state

// DefaultMinMotion is the smallest pointer movement, in pixels, that adds a
// point to a stroke.
const DefaultMinMotion = 2.0

// Assembler turns local pointer samples into strokes. It tracks the one
// gesture in progress; every value it returns is a snapshot the caller may
// keep or send.
type Assembler struct {
	AuthorID string

	// OnDraw is called for every accepted point with the previous point, or
	// nil for the first one, so the local view can paint just the new
	// segment. s carries the stroke's style; its Points are left empty.
	OnDraw func(s Stroke, from *Point, to Point)

	clock     *Clock
	minMotion float64
	stream    *PointStream
	current   *Stroke
}

// NewAssembler creates an assembler. minMotion is in pixels; maxPoints
// bounds a single gesture.
func NewAssembler(authorID string, clock *Clock, minMotion float64, maxPoints int) *Assembler {
	if clock == nil {
		clock = NewClock()
	}
	return &Assembler{
		AuthorID:  authorID,
		clock:     clock,
		minMotion: minMotion * minMotion,
		stream:    NewPointStream(maxPoints),
	}
}

// Begin starts a new partial stroke with a fresh id and a single point. Any
// unfinished gesture is abandoned; callers commit it first. opts set the
// remaining style, such as the text of a text stroke, before the first
// point is drawn.
func (a *Assembler) Begin(tool Tool, color string, width float64, x, y float64, opts ...func(*Stroke)) Stroke {
	a.stream.Reset()
	p := Abs(x, y, a.clock.Tick())
	a.stream.Push(p)
	a.current = &Stroke{
		ID:       NewStrokeID(),
		AuthorID: a.AuthorID,
		Tool:     tool,
		Color:    color,
		Width:    width,
	}
	for _, opt := range opts {
		opt(a.current)
	}
	a.draw(nil, p)
	return a.snapshot()
}

// Extend appends a sample unless it lies within the minimum-motion radius
// of the last accepted point or the gesture is already at its point limit.
func (a *Assembler) Extend(x, y float64) (Stroke, bool) {
	if a.current == nil {
		return Stroke{}, false
	}
	last, _ := a.stream.Last()
	dx, dy := x-last.X, y-last.Y
	if dx*dx+dy*dy < a.minMotion || a.stream.Full() {
		return a.snapshot(), false
	}
	p := Abs(x, y, a.clock.Tick())
	if !a.stream.Push(p) {
		return a.snapshot(), false
	}
	a.draw(&last, p)
	return a.snapshot(), true
}

// Current returns the gesture in progress.
func (a *Assembler) Current() (Stroke, bool) {
	if a.current == nil {
		return Stroke{}, false
	}
	return a.snapshot(), true
}

// Finalize completes the gesture. It returns false when there is nothing to
// submit.
func (a *Assembler) Finalize() (Stroke, bool) {
	if a.current == nil {
		return Stroke{}, false
	}
	s := a.snapshot()
	a.current = nil
	a.stream.Reset()
	if len(s.Points) == 0 {
		return Stroke{}, false
	}
	s.Complete = true
	return s, true
}

func (a *Assembler) snapshot() Stroke {
	s := *a.current
	s.Points = a.stream.Points()
	return s
}

func (a *Assembler) draw(from *Point, to Point) {
	if a.OnDraw != nil {
		a.OnDraw(*a.current, from, to)
	}
}
