package lipsync

import (
	"sync"
	"time"
)

// DefaultTickRate is the host frame rate assumed when none is configured.
const DefaultTickRate = 60

// Clock turns a time.Ticker into a stream of frame deltas, the way a host
// frame loop reports the time since the previous frame.
type Clock struct {
	ticker *time.Ticker
	ticks  chan time.Duration
	stop   chan struct{}
	once   sync.Once
}

// NewClock starts a clock firing rate times per second. Call Stop when done.
func NewClock(rate int) *Clock {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	c := &Clock{
		ticker: time.NewTicker(time.Second / time.Duration(rate)),
		ticks:  make(chan time.Duration),
		stop:   make(chan struct{}),
	}
	go c.loop(time.Now())
	return c
}

// Ticks returns the delta channel. It is closed after Stop.
func (c *Clock) Ticks() <-chan time.Duration {
	return c.ticks
}

// Stop halts the clock. It is safe to call more than once.
func (c *Clock) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.stop)
	})
}

func (c *Clock) loop(last time.Time) {
	defer close(c.ticks)
	for {
		select {
		case <-c.stop:
			return
		case now := <-c.ticker.C:
			delta := now.Sub(last)
			last = now
			select {
			case c.ticks <- delta:
			case <-c.stop:
				return
			}
		}
	}
}
