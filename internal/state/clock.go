package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewStrokeID returns a room-unique stroke id.
func NewStrokeID() string {
	return "op_" + uuid.NewString()
}

// Clock hands out strictly increasing millisecond timestamps for sampled
// points. Two samples taken within the same millisecond still get distinct
// stamps, which the reconciliation engine relies on to tell new points from
// redelivered ones.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock creates a wall-clock backed Clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Tick returns the next timestamp.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UnixMilli()
	if t <= c.last {
		t = c.last + 1
	}
	c.last = t
	return t
}

// Update moves the clock forward to at least ts.
func (c *Clock) Update(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.last {
		c.last = ts
	}
}
