package data

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

// TickRecord is the Parquet schema for uploaded tick files. Prices are
// stored as their decimal text so no precision is lost on the way in.
type TickRecord struct {
	Instrument string `parquet:"instrument"`
	Timestamp  int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Bid        string `parquet:"bid"`
	Ask        string `parquet:"ask"`
}

// LoadParquet reads every row of a tick file in file order.
func LoadParquet(path string) ([]market.Tick, error) {
	rows, err := parquet.ReadFile[TickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	ticks := make([]market.Tick, 0, len(rows))
	for i, r := range rows {
		bid, err := decimal.NewFromString(r.Bid)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bad bid %q: %w", path, i, r.Bid, err)
		}
		ask, err := decimal.NewFromString(r.Ask)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bad ask %q: %w", path, i, r.Ask, err)
		}
		ticks = append(ticks, market.Tick{
			Instrument: r.Instrument,
			Time:       time.UnixMilli(r.Timestamp).UTC(),
			BA:         market.BA{Bid: bid, Ask: ask},
		})
	}
	return ticks, nil
}

// WriteParquet writes ticks to path, creating parent directories.
// Timestamps are truncated to milliseconds.
func WriteParquet(path string, ticks []market.Tick) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	records := make([]TickRecord, 0, len(ticks))
	for _, t := range ticks {
		records = append(records, TickRecord{
			Instrument: t.Instrument,
			Timestamp:  t.Time.UnixMilli(),
			Bid:        t.Bid.String(),
			Ask:        t.Ask.String(),
		})
	}
	return parquet.WriteFile(path, records)
}

// Load dispatches on format ("csv" or "parquet").
func Load(path, format string) ([]market.Tick, error) {
	switch format {
	case "", "csv":
		return LoadCSV(path)
	case "parquet":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("unknown data format %q", format)
	}
}
