package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

type BA struct {
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// Tick is one bid/ask quote for an instrument.
type Tick struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	BA
}

func (t Tick) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(two)
}

func (t Tick) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

// Validate enforces bid <= ask and positive prices.
func (t Tick) Validate() error {
	if !t.Bid.IsPositive() || !t.Ask.IsPositive() {
		return fmt.Errorf("tick %s@%s: prices must be positive", t.Instrument, t.Time.Format(time.RFC3339Nano))
	}
	if t.Bid.GreaterThan(t.Ask) {
		return fmt.Errorf("tick %s@%s: bid %s above ask %s", t.Instrument, t.Time.Format(time.RFC3339Nano), t.Bid, t.Ask)
	}
	return nil
}
