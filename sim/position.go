package sim

import (
	"github.com/rustyeddy/tradesim/journal"
)

// book holds a session's positions. At most one position per instrument
// is OPEN; closed entries are kept for history and never change again.
type book struct {
	positions []journal.Position
	open      map[string]int // instrument -> index into positions
}

func newBook() *book {
	return &book{open: make(map[string]int)}
}

func (b *book) openFor(instrument string) (journal.Position, bool) {
	i, ok := b.open[instrument]
	if !ok {
		return journal.Position{}, false
	}
	return b.positions[i], true
}

func (b *book) openPositions() []journal.Position {
	out := make([]journal.Position, 0, len(b.open))
	for _, p := range b.positions {
		if p.Status == journal.StatusOpen {
			out = append(out, p)
		}
	}
	return out
}

func (b *book) all() []journal.Position {
	out := make([]journal.Position, len(b.positions))
	copy(out, b.positions)
	return out
}

// apply stores p, either as a new position or as the next state of an
// existing one. Callers validate the transition first.
func (b *book) apply(p journal.Position) {
	for i := range b.positions {
		if b.positions[i].ID != p.ID {
			continue
		}
		b.positions[i] = p
		if p.Status.Terminal() {
			delete(b.open, p.Instrument)
		}
		return
	}

	b.positions = append(b.positions, p)
	if p.Status == journal.StatusOpen {
		b.open[p.Instrument] = len(b.positions) - 1
	}
}
