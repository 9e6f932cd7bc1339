package viewport

import (
	"sync"
	"time"
)

// frameInterval approximates one animation frame at 60 Hz.
const frameInterval = time.Second / 60

// WheelEvent is a pending wheel zoom request.
type WheelEvent struct {
	DeltaY  float64
	ScreenX float64
	ScreenY float64
}

// FrameGate rate-limits wheel input to one applied event per animation
// frame. Events arriving within the same frame coalesce: only the latest
// request survives, superseded intermediates are discarded. Safe for use
// from the event loop and a flush goroutine concurrently; apply callbacks
// run outside the lock.
type FrameGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pending  *WheelEvent
	now      func() time.Time
}

// NewFrameGate creates a gate with the standard 60 Hz frame interval.
func NewFrameGate() *FrameGate {
	return &FrameGate{interval: frameInterval, now: time.Now}
}

// Submit offers a wheel event. If a full frame has elapsed since the last
// applied event it is applied immediately; otherwise it replaces any
// pending event and waits for Flush.
func (g *FrameGate) Submit(ev WheelEvent, apply func(WheelEvent)) {
	g.mu.Lock()
	t := g.now()
	if t.Sub(g.last) >= g.interval {
		g.last = t
		g.pending = nil
		g.mu.Unlock()
		apply(ev)
		return
	}
	g.pending = &ev
	g.mu.Unlock()
}

// Flush applies the pending event if the frame interval has elapsed.
// Call once per frame tick.
func (g *FrameGate) Flush(apply func(WheelEvent)) {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return
	}
	t := g.now()
	if t.Sub(g.last) < g.interval {
		g.mu.Unlock()
		return
	}
	ev := *g.pending
	g.pending = nil
	g.last = t
	g.mu.Unlock()
	apply(ev)
}

// Pending reports whether a coalesced event is waiting.
func (g *FrameGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}
