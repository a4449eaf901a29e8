// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var _ Journal = (*CSVJournal)(nil)

// CSVJournal appends position, transaction and equity rows to three files.
// A position appears once per state change; the last row for an id wins.
// Sessions may share one CSVJournal.
type CSVJournal struct {
	mu           sync.Mutex
	positions    *csv.Writer
	transactions *csv.Writer
	equity       *csv.Writer
	files        []*os.File
}

func NewCSV(positionsPath, transactionsPath, equityPath string) (*CSVJournal, error) {
	j := &CSVJournal{}

	open := func(path string, header []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)

		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.positions, err = open(positionsPath, []string{
		"id", "session_id", "instrument", "side", "quantity", "entry_price", "exit_price",
		"status", "opened_at", "closed_at", "realized_pnl", "costs",
	}); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.transactions, err = open(transactionsPath, []string{
		"id", "session_id", "seq", "type", "amount", "created_at", "related_position_id", "note",
	}); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.equity, err = open(equityPath, []string{
		"session_id", "time", "balance", "equity", "margin_used",
	}); err != nil {
		j.closeFiles()
		return nil, err
	}

	return j, nil
}

func (j *CSVJournal) Record(b Batch) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, p := range b.Positions {
		closed := ""
		if p.ClosedAt != nil {
			closed = ts(*p.ClosedAt)
		}
		err := j.positions.Write([]string{
			p.ID,
			p.SessionID,
			p.Instrument,
			string(p.Side),
			p.Quantity.String(),
			p.EntryPrice.String(),
			p.ExitPrice.String(),
			string(p.Status),
			ts(p.OpenedAt),
			closed,
			p.RealizedPnL.String(),
			p.Costs.String(),
		})
		if err != nil {
			return err
		}
	}

	for _, t := range b.Transactions {
		err := j.transactions.Write([]string{
			t.ID,
			t.SessionID,
			strconv.FormatInt(t.Seq, 10),
			string(t.Type),
			t.Amount.String(),
			ts(t.CreatedAt),
			t.PositionID,
			t.Note,
		})
		if err != nil {
			return err
		}
	}

	if e := b.Equity; e != nil {
		err := j.equity.Write([]string{
			e.SessionID,
			ts(e.Time),
			e.Balance.String(),
			e.Equity.String(),
			e.MarginUsed.String(),
		})
		if err != nil {
			return err
		}
	}

	for _, w := range []*csv.Writer{j.positions, j.transactions, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.positions, j.transactions, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
