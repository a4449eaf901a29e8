package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

var (
	bpsDivisor = decimal.NewFromInt(10_000)
	half       = decimal.RequireFromString("0.5")
)

type CommissionMode string

const (
	CommissionPerUnit CommissionMode = "per_unit"
	CommissionBps     CommissionMode = "bps"
)

// CostModel is the fixed execution cost schedule for a session.
type CostModel struct {
	SlippageBps     decimal.Decimal `json:"slippage_bps" yaml:"slippage_bps"`
	CommissionMode  CommissionMode  `json:"commission_mode" yaml:"mode"`
	CommissionValue decimal.Decimal `json:"commission_value" yaml:"value"`
}

func (m CostModel) Validate() error {
	if m.SlippageBps.IsNegative() {
		return fmt.Errorf("slippage_bps must not be negative")
	}
	if m.CommissionValue.IsNegative() {
		return fmt.Errorf("commission value must not be negative")
	}
	switch m.CommissionMode {
	case CommissionPerUnit, CommissionBps:
	default:
		return fmt.Errorf("unknown commission mode %q", m.CommissionMode)
	}
	return nil
}

// Costs are magnitudes in the instrument's quote currency. They are always
// charged against the trader.
type Costs struct {
	FillPrice  decimal.Decimal `json:"fill_price"`
	Spread     decimal.Decimal `json:"spread_cost"`
	Slippage   decimal.Decimal `json:"slippage_cost"`
	Commission decimal.Decimal `json:"commission_cost"`
}

func (c Costs) Total() decimal.Decimal {
	return c.Spread.Add(c.Slippage).Add(c.Commission)
}

// Compute prices one market order against tick. It reads nothing but its
// arguments, so equal inputs always give equal outputs.
//
//	fill       = ask for BUY, bid for SELL
//	spread     = (ask - bid) / 2 * qty
//	slippage   = fill * qty * slippage_bps / 10000
//	commission = value * qty              (per_unit)
//	           = fill * qty * value / 10000 (bps)
func (m CostModel) Compute(in market.Instrument, side market.Side, qty decimal.Decimal, tick market.Tick) Costs {
	fill := side.FillPrice(tick.BA)
	notional := fill.Mul(qty)

	c := Costs{
		FillPrice: fill,
		Spread:    tick.Spread().Mul(half).Mul(qty),
		Slippage:  notional.Mul(m.SlippageBps).Div(bpsDivisor),
	}

	switch m.CommissionMode {
	case CommissionBps:
		c.Commission = notional.Mul(m.CommissionValue).Div(bpsDivisor)
	default:
		c.Commission = m.CommissionValue.Mul(qty)
	}
	return c
}
