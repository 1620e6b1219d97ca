package state

// PointStream is the bounded, time-ordered buffer of samples for the stroke
// currently being drawn.
type PointStream struct {
	points []Point
	limit  int
}

// NewPointStream creates a stream that holds at most limit points.
func NewPointStream(limit int) *PointStream {
	if limit <= 0 {
		limit = DefaultLimits().MaxPoints
	}
	return &PointStream{limit: limit}
}

// Push appends p. It refuses the point when the stream is full or when p is
// older than the last accepted sample.
func (s *PointStream) Push(p Point) bool {
	if len(s.points) >= s.limit {
		return false
	}
	if n := len(s.points); n > 0 && p.T < s.points[n-1].T {
		return false
	}
	s.points = append(s.points, p)
	return true
}

// Last returns the newest accepted point.
func (s *PointStream) Last() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

func (s *PointStream) Len() int { return len(s.points) }

func (s *PointStream) Full() bool { return len(s.points) >= s.limit }

// Points returns a copy of the buffered samples.
func (s *PointStream) Points() []Point {
	return append([]Point(nil), s.points...)
}

// Reset empties the stream for the next gesture.
func (s *PointStream) Reset() {
	s.points = s.points[:0]
}
