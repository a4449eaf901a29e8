package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

// LoadCSV reads ticks from a file of rows:
//
//	time,instrument,bid,ask
//
// time is RFC3339 (fractional seconds allowed). A leading header row
// starting with "time" is skipped.
func LoadCSV(path string) ([]market.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ticks, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ticks, nil
}

func ReadCSV(r io.Reader) ([]market.Tick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var ticks []market.Tick
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return ticks, nil
		}
		if err != nil {
			return nil, err
		}
		line++

		if len(row) == 0 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		t, err := parseTickRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, t)
	}
}

func parseTickRow(row []string) (market.Tick, error) {
	if len(row) < 4 {
		return market.Tick{}, fmt.Errorf("bad row (need time,instrument,bid,ask): %v", row)
	}

	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[0]))
	if err != nil {
		return market.Tick{}, fmt.Errorf("bad time %q: %w", row[0], err)
	}
	inst := strings.TrimSpace(row[1])
	if inst == "" {
		return market.Tick{}, fmt.Errorf("instrument is empty")
	}

	bid, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return market.Tick{}, fmt.Errorf("bad bid %q: %w", row[2], err)
	}
	ask, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return market.Tick{}, fmt.Errorf("bad ask %q: %w", row[3], err)
	}

	return market.Tick{
		Instrument: inst,
		Time:       ts.UTC(),
		BA:         market.BA{Bid: bid, Ask: ask},
	}, nil
}

// WriteCSV writes ticks in the format LoadCSV reads, with a header row.
func WriteCSV(w io.Writer, ticks []market.Tick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "instrument", "bid", "ask"}); err != nil {
		return err
	}
	for _, t := range ticks {
		err := cw.Write([]string{
			t.Time.UTC().Format(time.RFC3339Nano),
			t.Instrument,
			t.Bid.String(),
			t.Ask.String(),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
