package testutil

import (
	"fmt"
	"sync"
	"time"

	"havit-go/internal/catalog"
)

// RunEpoch is the first time a DefaultRunClock reports.
var RunEpoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// RunStep is how far a DefaultRunClock moves on every reading.
const RunStep = 1500 * time.Millisecond

// RunClock moves forward by a fixed step each time it is read. A run reads
// the clock once when it starts and once when it finishes, so its elapsed
// time is exactly one step.
type RunClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

var _ catalog.Clock = (*RunClock)(nil)

// NewRunClock creates a RunClock starting at start.
func NewRunClock(start time.Time, step time.Duration) *RunClock {
	return &RunClock{now: start, step: step}
}

// DefaultRunClock starts at RunEpoch and steps by RunStep.
func DefaultRunClock() *RunClock {
	return NewRunClock(RunEpoch, RunStep)
}

func (c *RunClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance leaves a gap of d before the next reading, e.g. between runs.
func (c *RunClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialRunIDs hands out "run-1", "run-2", ... so tests can name runs
// before they happen.
type SequentialRunIDs struct {
	mu   sync.Mutex
	next int
}

var _ catalog.IDGenerator = (*SequentialRunIDs)(nil)

func (g *SequentialRunIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("run-%d", g.next)
}
