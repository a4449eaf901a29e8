// Package data holds the recorded tick history sessions replay against.
//
// A Source is built once from uploaded files and then only read. Sessions
// share it without locking and each keeps its own Cursor.
package data

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradesim/market"
)

var (
	ErrNoData      = errors.New("no data")
	ErrEndOfStream = errors.New("end of stream")
)

// Series is the ordered tick history of one instrument.
type Series struct {
	Instrument string
	ticks      []market.Tick
}

// NewSeries validates ticks and wraps them. Ticks must already be in
// non-decreasing time order; equal timestamps keep their given order.
func NewSeries(instrument string, ticks []market.Tick) (*Series, error) {
	for i, t := range ticks {
		if t.Instrument != instrument {
			return nil, fmt.Errorf("series %s: tick %d belongs to %s", instrument, i, t.Instrument)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("series %s: tick %d: %w", instrument, i, err)
		}
		if i > 0 && t.Time.Before(ticks[i-1].Time) {
			return nil, fmt.Errorf("series %s: tick %d at %s is before previous tick at %s",
				instrument, i, t.Time.Format(time.RFC3339Nano), ticks[i-1].Time.Format(time.RFC3339Nano))
		}
	}
	return &Series{Instrument: instrument, ticks: ticks}, nil
}

func (s *Series) Len() int { return len(s.ticks) }

func (s *Series) First() (market.Tick, bool) {
	if len(s.ticks) == 0 {
		return market.Tick{}, false
	}
	return s.ticks[0], true
}

func (s *Series) Last() (market.Tick, bool) {
	if len(s.ticks) == 0 {
		return market.Tick{}, false
	}
	return s.ticks[len(s.ticks)-1], true
}

// Source maps instruments to their tick series.
type Source struct {
	series map[string]*Series
}

func NewSource(series ...*Series) (*Source, error) {
	src := &Source{series: make(map[string]*Series, len(series))}
	for _, s := range series {
		if _, dup := src.series[s.Instrument]; dup {
			return nil, fmt.Errorf("source: duplicate series for %s", s.Instrument)
		}
		src.series[s.Instrument] = s
	}
	return src, nil
}

// FromTicks groups ticks by instrument, preserving their relative order.
func FromTicks(ticks []market.Tick) (*Source, error) {
	grouped := map[string][]market.Tick{}
	var order []string
	for _, t := range ticks {
		if _, ok := grouped[t.Instrument]; !ok {
			order = append(order, t.Instrument)
		}
		grouped[t.Instrument] = append(grouped[t.Instrument], t)
	}

	series := make([]*Series, 0, len(order))
	for _, inst := range order {
		s, err := NewSeries(inst, grouped[inst])
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return NewSource(series...)
}

// Series returns the history for instrument, if any.
func (src *Source) Series(instrument string) (*Series, bool) {
	s, ok := src.series[instrument]
	return s, ok
}

// Instruments lists the instruments with data, sorted.
func (src *Source) Instruments() []string {
	out := make([]string, 0, len(src.series))
	for k := range src.series {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Seek positions a cursor at the first tick at or after ts. It fails with
// ErrNoData when the instrument has no ticks or ts precedes the first one.
func (src *Source) Seek(instrument string, ts time.Time) (*Cursor, error) {
	s, ok := src.series[instrument]
	if !ok || len(s.ticks) == 0 {
		return nil, fmt.Errorf("%w: no series for %s", ErrNoData, instrument)
	}
	if ts.Before(s.ticks[0].Time) {
		return nil, fmt.Errorf("%w: %s starts at %s, requested %s", ErrNoData, instrument,
			s.ticks[0].Time.Format(time.RFC3339Nano), ts.Format(time.RFC3339Nano))
	}

	pos := sort.Search(len(s.ticks), func(i int) bool {
		return !s.ticks[i].Time.Before(ts)
	})
	return &Cursor{series: s, pos: pos}, nil
}

// LastAt returns the latest tick at or before ts.
func (src *Source) LastAt(instrument string, ts time.Time) (market.Tick, bool) {
	s, ok := src.series[instrument]
	if !ok {
		return market.Tick{}, false
	}
	i := sort.Search(len(s.ticks), func(i int) bool {
		return s.ticks[i].Time.After(ts)
	})
	if i == 0 {
		return market.Tick{}, false
	}
	return s.ticks[i-1], true
}

// Cursor walks a series forward. It is owned by a single session.
type Cursor struct {
	series *Series
	pos    int
}

// Next returns the next tick or ErrEndOfStream.
func (c *Cursor) Next() (market.Tick, error) {
	if c.pos >= len(c.series.ticks) {
		return market.Tick{}, ErrEndOfStream
	}
	t := c.series.ticks[c.pos]
	c.pos++
	return t, nil
}

// Done reports whether the stream is exhausted.
func (c *Cursor) Done() bool {
	return c.pos >= len(c.series.ticks)
}

// AdvanceTo consumes every tick with time <= ts and returns them in order.
func (c *Cursor) AdvanceTo(ts time.Time) []market.Tick {
	start := c.pos
	for c.pos < len(c.series.ticks) && !c.series.ticks[c.pos].Time.After(ts) {
		c.pos++
	}
	return c.series.ticks[start:c.pos:c.pos]
}
