package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CanConvert reports whether QuoteToAccountRate supports the pair for the
// given account currency.
func CanConvert(in Instrument, accountCurrency string) bool {
	return in.QuoteCurrency == accountCurrency || in.BaseCurrency == accountCurrency
}

// QuoteToAccountRate returns how many units of account currency one unit of
// the instrument's quote currency is worth at tick.
func QuoteToAccountRate(in Instrument, accountCurrency string, tick Tick) (decimal.Decimal, error) {
	// Case 1: quote currency == account currency (EURUSD, GBPUSD with USD account)
	if in.QuoteCurrency == accountCurrency {
		return decimal.NewFromInt(1), nil
	}

	// Case 2: account currency is base (USDJPY with USD account).
	// USDJPY mid gives JPY per USD, we want USD per JPY.
	if in.BaseCurrency == accountCurrency {
		mid := tick.Mid()
		if !mid.IsPositive() {
			return decimal.Zero, fmt.Errorf("convert %s: no usable mid price", in.Symbol)
		}
		return decimal.NewFromInt(1).Div(mid), nil
	}

	return decimal.Zero, fmt.Errorf(
		"cross conversion not implemented for %s -> %s",
		in.QuoteCurrency,
		accountCurrency,
	)
}
