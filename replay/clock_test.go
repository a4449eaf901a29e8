package replay

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wallStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	simStart  = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
)

func newClock(t *testing.T, speed float64) (*Clock, *ManualWall) {
	t.Helper()
	w := NewManualWall(wallStart)
	c, err := NewClock(w, simStart, speed)
	require.NoError(t, err)
	return c, w
}

func TestClockBeforeStartIsFrozen(t *testing.T) {
	c, w := newClock(t, 10)
	w.Advance(time.Minute)
	assert.Equal(t, simStart, c.Now())
}

func TestClockScalesElapsedTime(t *testing.T) {
	c, w := newClock(t, 60)
	require.NoError(t, c.Start())

	w.Advance(2 * time.Second)
	assert.Equal(t, simStart.Add(2*time.Minute), c.Now())

	require.True(t, errors.Is(c.Start(), ErrClockStarted))
}

func TestClockPauseResume(t *testing.T) {
	c, w := newClock(t, 2)
	require.NoError(t, c.Start())

	w.Advance(time.Second)
	require.NoError(t, c.Pause())
	paused := c.Now()
	assert.Equal(t, simStart.Add(2*time.Second), paused)

	w.Advance(time.Hour)
	assert.Equal(t, paused, c.Now())

	require.NoError(t, c.Resume())
	w.Advance(time.Second)
	assert.Equal(t, paused.Add(2*time.Second), c.Now())
}

func TestClockSpeedChangeKeepsEarlierSegment(t *testing.T) {
	c, w := newClock(t, 1)
	require.NoError(t, c.Start())

	w.Advance(10 * time.Second)
	require.NoError(t, c.SetSpeed(100))
	assert.Equal(t, simStart.Add(10*time.Second), c.Now())

	w.Advance(time.Second)
	assert.Equal(t, simStart.Add(110*time.Second), c.Now())

	require.NoError(t, c.SetSpeed(0))
	frozen := c.Now()
	w.Advance(time.Minute)
	assert.Equal(t, frozen, c.Now())

	assert.True(t, errors.Is(c.SetSpeed(-1), ErrInvalidSpeed))
}

func TestClockIsMonotonicWhileRunning(t *testing.T) {
	c, w := newClock(t, 3.5)
	require.NoError(t, c.Start())

	prev := c.Now()
	for i := 0; i < 100; i++ {
		w.Advance(time.Duration(i%7) * time.Millisecond)
		if i%10 == 0 {
			require.NoError(t, c.SetSpeed(float64(i%4)))
		}
		now := c.Now()
		assert.False(t, now.Before(prev))
		prev = now
	}
}

func TestClockSeek(t *testing.T) {
	c, w := newClock(t, 1)
	require.NoError(t, c.Start())
	w.Advance(time.Minute)

	backward, err := c.Seek(simStart.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, backward)
	assert.Equal(t, simStart.Add(time.Hour), c.Now())

	_, err = c.Seek(simStart)
	assert.True(t, errors.Is(err, ErrBackwardSeek))

	require.NoError(t, c.Pause())
	backward, err = c.Seek(simStart)
	require.NoError(t, err)
	assert.True(t, backward)
	assert.Equal(t, simStart, c.Now())

	require.NoError(t, c.Resume())
	w.Advance(time.Second)
	assert.Equal(t, simStart.Add(time.Second), c.Now())
}

func TestClockHalt(t *testing.T) {
	c, w := newClock(t, 1)
	require.NoError(t, c.Start())
	w.Advance(time.Second)

	c.Halt()
	at := c.Now()
	w.Advance(time.Hour)
	assert.Equal(t, at, c.Now())

	assert.True(t, errors.Is(c.Resume(), ErrClockHalted))
	assert.True(t, errors.Is(c.SetSpeed(2), ErrClockHalted))
	_, err := c.Seek(at)
	assert.True(t, errors.Is(err, ErrClockHalted))
}

func TestClockRequiresStart(t *testing.T) {
	c, _ := newClock(t, 1)
	assert.True(t, errors.Is(c.Pause(), ErrClockNotActive))

	_, err := NewClock(nil, simStart, -1)
	assert.True(t, errors.Is(err, ErrInvalidSpeed))
}

func TestClockRejectsNonFiniteSpeed(t *testing.T) {
	for _, speed := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewClock(nil, simStart, speed)
		assert.True(t, errors.Is(err, ErrInvalidSpeed), "NewClock(%v)", speed)

		c, _ := newClock(t, 1)
		require.NoError(t, c.Start())
		assert.True(t, errors.Is(c.SetSpeed(speed), ErrInvalidSpeed), "SetSpeed(%v)", speed)
		assert.Equal(t, 1.0, c.Speed())
	}
}

func TestClockSaturatesAtHugeSpeed(t *testing.T) {
	c, w := newClock(t, 1e6)
	require.NoError(t, c.Start())

	prev := c.Now()
	for i := 0; i < 10; i++ {
		w.Advance(time.Hour)
		now := c.Now()
		require.False(t, now.Before(prev), "step %d: %s before %s", i, now, prev)
		prev = now
	}
	assert.Equal(t, simStart.Add(math.MaxInt64), prev)
}
