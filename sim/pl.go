package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
)

// GrossPL is the price P/L of a position exited at price, in quote currency:
// (exit - entry) * qty * sign(side).
func GrossPL(p journal.Position, exit decimal.Decimal) decimal.Decimal {
	return exit.Sub(p.EntryPrice).Mul(p.Quantity).Mul(p.Side.Sign())
}

// MarkPrice is the price an open position would close at: longs sell on
// the bid, shorts buy back on the ask.
func MarkPrice(p journal.Position, ba market.BA) decimal.Decimal {
	return p.Side.Opposite().FillPrice(ba)
}

// UnrealizedPL values an open position at tick in account currency.
func UnrealizedPL(p journal.Position, tick market.Tick, quoteToAccount decimal.Decimal) decimal.Decimal {
	return GrossPL(p, MarkPrice(p, tick.BA)).Mul(quoteToAccount)
}
