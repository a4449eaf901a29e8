package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

// TradeMargin is the margin a position of qty units ties up at price.
func TradeMargin(in market.Instrument, qty, price, quoteToAccount decimal.Decimal) decimal.Decimal {
	notionalQuote := qty.Abs().Mul(price)
	notionalAccount := notionalQuote.Mul(quoteToAccount)
	return notionalAccount.Mul(in.MarginRate)
}

// breachesMaintenance reports whether an unrealized loss has eaten at
// least ratio of the balance. A non-positive ratio disables the check.
func breachesMaintenance(unrealized, balance, ratio decimal.Decimal) bool {
	if !ratio.IsPositive() || !unrealized.IsNegative() {
		return false
	}
	threshold := balance.Mul(ratio)
	return unrealized.Neg().GreaterThanOrEqual(threshold)
}
