// Package replay maps wall-clock time onto simulated session time.
package replay

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	ErrClockHalted    = errors.New("clock halted")
	ErrClockStarted   = errors.New("clock already started")
	ErrBackwardSeek   = errors.New("backward seek requires a paused clock")
	ErrInvalidSpeed   = errors.New("speed multiplier must be finite and not negative")
	ErrClockNotActive = errors.New("clock not started")
)

// WallClock is the source of real elapsed time. Engines never read the
// system clock directly; tests hand in a ManualWall.
type WallClock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualWall is a WallClock that only moves when told to.
type ManualWall struct {
	mu sync.Mutex
	t  time.Time
}

func NewManualWall(t time.Time) *ManualWall {
	return &ManualWall{t: t}
}

func (m *ManualWall) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *ManualWall) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

// Clock computes virtual time as
//
//	virtual = anchor + (wall - wallAnchor) * speed
//
// and re-anchors on every pause, resume, seek and speed change so earlier
// segments are never recomputed with a new speed.
//
// A Clock is owned by one session and is not safe for concurrent use.
type Clock struct {
	wall WallClock

	anchor     time.Time
	wallAnchor time.Time
	speed      float64

	started bool
	running bool
	halted  bool
}

// NewClock returns a stopped clock sitting at start.
func NewClock(wall WallClock, start time.Time, speed float64) (*Clock, error) {
	if !ValidSpeed(speed) {
		return nil, ErrInvalidSpeed
	}
	if wall == nil {
		wall = SystemClock{}
	}
	return &Clock{wall: wall, anchor: start, speed: speed}, nil
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	if !c.running || c.speed == 0 {
		return c.anchor
	}
	elapsed := c.wall.Now().Sub(c.wallAnchor)
	if elapsed <= 0 {
		return c.anchor
	}
	return c.anchor.Add(scale(elapsed, c.speed))
}

// ValidSpeed reports whether speed is a usable multiplier.
func ValidSpeed(speed float64) bool {
	return speed >= 0 && !math.IsInf(speed, 1)
}

// scale multiplies d by speed, saturating at the largest Duration.
func scale(d time.Duration, speed float64) time.Duration {
	f := float64(d) * speed
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(f)
}

func (c *Clock) Speed() float64 { return c.speed }

// Start binds the clock to its anchor and begins advancing.
func (c *Clock) Start() error {
	if c.halted {
		return ErrClockHalted
	}
	if c.started {
		return ErrClockStarted
	}
	c.started = true
	c.running = true
	c.wallAnchor = c.wall.Now()
	return nil
}

// Pause freezes virtual time.
func (c *Clock) Pause() error {
	if err := c.active(); err != nil {
		return err
	}
	c.rebase()
	c.running = false
	return nil
}

// Resume unfreezes virtual time from where it was paused.
func (c *Clock) Resume() error {
	if err := c.active(); err != nil {
		return err
	}
	c.rebase()
	c.running = true
	return nil
}

// Halt stops the clock for good.
func (c *Clock) Halt() {
	if c.halted {
		return
	}
	c.rebase()
	c.running = false
	c.halted = true
}

// SetSpeed changes the multiplier from now on. Zero freezes virtual time
// without pausing the clock.
func (c *Clock) SetSpeed(speed float64) error {
	if !ValidSpeed(speed) {
		return ErrInvalidSpeed
	}
	if c.halted {
		return ErrClockHalted
	}
	c.rebase()
	c.speed = speed
	return nil
}

// Seek jumps virtual time to ts. Moving backward is only allowed while
// paused; the caller must then realign any tick cursor before trading.
// It reports whether the jump went backward.
func (c *Clock) Seek(ts time.Time) (bool, error) {
	if c.halted {
		return false, ErrClockHalted
	}
	now := c.Now()
	backward := ts.Before(now)
	if backward && c.running {
		return false, fmt.Errorf("%w: at %s, requested %s", ErrBackwardSeek,
			now.Format(time.RFC3339Nano), ts.Format(time.RFC3339Nano))
	}
	c.anchor = ts
	c.wallAnchor = c.wall.Now()
	return backward, nil
}

func (c *Clock) active() error {
	if c.halted {
		return ErrClockHalted
	}
	if !c.started {
		return ErrClockNotActive
	}
	return nil
}

func (c *Clock) rebase() {
	c.anchor = c.Now()
	c.wallAnchor = c.wall.Now()
}
