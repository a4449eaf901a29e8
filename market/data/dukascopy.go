package data

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz/lzma"

	"github.com/rustyeddy/tradesim/market"
)

// A bi5 file holds one hour of ticks as LZMA-compressed 20 byte
// big-endian records: ms into the hour, ask, bid (integer points), ask
// volume, bid volume (float32).
const bi5RecordSize = 20

// DukascopyPath is where an hour file lives under root. Months are
// zero-based: Jan=00 ... Dec=11.
func DukascopyPath(root, symbol string, hour time.Time) string {
	hour = hour.UTC()
	return filepath.Join(root, strings.ToUpper(symbol),
		fmt.Sprintf("%04d", hour.Year()),
		fmt.Sprintf("%02d", int(hour.Month())-1),
		fmt.Sprintf("%02d", hour.Day()),
		fmt.Sprintf("%02dh_ticks.bi5", hour.Hour()))
}

// ReadBI5 decodes one hour of ticks. point is the price of one integer
// step, a tenth of the instrument's pip.
func ReadBI5(r io.Reader, instrument string, hour time.Time, point decimal.Decimal) ([]market.Tick, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// hours without ticks are served as empty files
	if len(compressed) == 0 {
		return nil, nil
	}

	lr, err := lzma.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	raw, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if len(raw)%bi5RecordSize != 0 {
		return nil, fmt.Errorf("bi5: %d bytes is not a whole number of records", len(raw))
	}

	hour = hour.UTC().Truncate(time.Hour)
	ticks := make([]market.Tick, 0, len(raw)/bi5RecordSize)
	for off := 0; off < len(raw); off += bi5RecordSize {
		rec := raw[off : off+bi5RecordSize]
		ms := binary.BigEndian.Uint32(rec[0:4])
		ask := binary.BigEndian.Uint32(rec[4:8])
		bid := binary.BigEndian.Uint32(rec[8:12])

		t := market.Tick{
			Instrument: instrument,
			Time:       hour.Add(time.Duration(ms) * time.Millisecond),
			BA: market.BA{
				Bid: decimal.NewFromInt(int64(bid)).Mul(point),
				Ask: decimal.NewFromInt(int64(ask)).Mul(point),
			},
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("bi5 record %d: %w", off/bi5RecordSize, err)
		}
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// LoadDukascopy reads every hour in [from, to) for instrument under root.
// Missing hours (weekends, holidays) are skipped.
func LoadDukascopy(root, instrument string, from, to time.Time, point decimal.Decimal) ([]market.Tick, error) {
	if !point.IsPositive() {
		return nil, fmt.Errorf("dukascopy %s: point must be positive", instrument)
	}

	var ticks []market.Tick
	for hour := from.UTC().Truncate(time.Hour); hour.Before(to); hour = hour.Add(time.Hour) {
		path := DukascopyPath(root, instrument, hour)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hourTicks, err := ReadBI5(f, instrument, hour, point)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ticks = append(ticks, hourTicks...)
	}
	return ticks, nil
}
