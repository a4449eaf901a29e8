// market/instruments.go
package market

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInstrumentNotFound = errors.New("instrument not found")

// Instrument is immutable reference data for one tradable symbol.
type Instrument struct {
	Symbol        string          `json:"symbol" yaml:"symbol"`
	PipSize       decimal.Decimal `json:"pip_size" yaml:"pip_size"`
	Enabled       bool            `json:"enabled" yaml:"enabled"`
	BaseCurrency  string          `json:"base" yaml:"base"`
	QuoteCurrency string          `json:"quote" yaml:"quote"`
	MarginRate    decimal.Decimal `json:"margin_rate" yaml:"margin_rate"`
}

// Pips expresses a price distance in pips.
func (in Instrument) Pips(delta decimal.Decimal) decimal.Decimal {
	if in.PipSize.IsZero() {
		return decimal.Zero
	}
	return delta.Div(in.PipSize)
}

// Catalog is the read-only instrument table shared by every session.
// It is built once and never mutated, so lookups need no locking.
type Catalog struct {
	bySymbol map[string]Instrument
	symbols  []string
}

// NewCatalog validates the instruments and indexes them by symbol.
func NewCatalog(instruments []Instrument) (*Catalog, error) {
	c := &Catalog{bySymbol: make(map[string]Instrument, len(instruments))}

	for _, in := range instruments {
		sym := strings.TrimSpace(in.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("catalog: instrument with empty symbol")
		}
		if !in.PipSize.IsPositive() {
			return nil, fmt.Errorf("catalog: %s: pip_size must be positive", sym)
		}
		if in.MarginRate.IsNegative() {
			return nil, fmt.Errorf("catalog: %s: margin_rate must not be negative", sym)
		}
		if _, dup := c.bySymbol[sym]; dup {
			return nil, fmt.Errorf("catalog: duplicate symbol %s", sym)
		}
		in.Symbol = sym
		c.bySymbol[sym] = in
		c.symbols = append(c.symbols, sym)
	}
	sort.Strings(c.symbols)

	return c, nil
}

// Lookup returns the instrument for symbol or ErrInstrumentNotFound.
func (c *Catalog) Lookup(symbol string) (Instrument, error) {
	in, ok := c.bySymbol[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	return in, nil
}

// All returns the instruments sorted by symbol.
func (c *Catalog) All() []Instrument {
	out := make([]Instrument, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, c.bySymbol[s])
	}
	return out
}

// DefaultInstruments is the FX set the simulator ships with.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{
			Symbol:        "EURUSD",
			PipSize:       decimal.RequireFromString("0.0001"),
			Enabled:       true,
			BaseCurrency:  "EUR",
			QuoteCurrency: "USD",
			MarginRate:    decimal.RequireFromString("0.02"),
		},
		{
			Symbol:        "GBPUSD",
			PipSize:       decimal.RequireFromString("0.0001"),
			Enabled:       true,
			BaseCurrency:  "GBP",
			QuoteCurrency: "USD",
			MarginRate:    decimal.RequireFromString("0.02"),
		},
		{
			Symbol:        "USDJPY",
			PipSize:       decimal.RequireFromString("0.01"),
			Enabled:       true,
			BaseCurrency:  "USD",
			QuoteCurrency: "JPY",
			MarginRate:    decimal.RequireFromString("0.02"),
		},
	}
}
