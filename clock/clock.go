package clock

import (
	"sync"
	"time"
)

// TickFunc runs one simulation pass. dt is the elapsed time in nominal ticks:
// always 1 for a fixed-interval clock, the measured ratio for a frame clock.
type TickFunc func(dt float64)

// Clock drives a TickFunc from a single goroutine. At most one driver is
// active at a time, and once Stop returns no further tick begins.
type Clock struct {
	mu      sync.Mutex
	gen     uint64
	running bool
	stop    chan struct{}
	done    chan struct{}
	ticks   uint64
	now     func() time.Time
}

func New() *Clock {
	return &Clock{now: time.Now}
}

// Start begins fixed-interval ticking. It returns false and changes nothing
// when the clock is already running.
func (c *Clock) Start(fn TickFunc, interval time.Duration) bool {
	return c.start(fn, interval, false)
}

// StartFrames begins frame-driven ticking: the callback receives the time
// since the previous frame divided by interval.
func (c *Clock) StartFrames(fn TickFunc, interval time.Duration) bool {
	return c.start(fn, interval, true)
}

func (c *Clock) start(fn TickFunc, interval time.Duration, frames bool) bool {
	if fn == nil || interval <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.gen++
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.gen, fn, interval, frames, c.stop, c.done)
	return true
}

func (c *Clock) run(gen uint64, fn TickFunc, interval time.Duration, frames bool, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := c.now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			dt := 1.0
			if frames {
				now := c.now()
				dt = float64(now.Sub(last)) / float64(interval)
				last = now
			}
			// 在锁内检查代数，Stop之后不会再触发
			c.mu.Lock()
			if c.gen != gen || !c.running {
				c.mu.Unlock()
				return
			}
			c.ticks++
			fn(dt)
			c.mu.Unlock()
		}
	}
}

// Stop halts the driver. Stop must not be called from inside the TickFunc.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.gen++
	stop, done := c.stop, c.done
	close(stop)
	c.mu.Unlock()
	<-done
}

// Running reports whether a driver is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Ticks returns the number of ticks fired since creation.
func (c *Clock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}
