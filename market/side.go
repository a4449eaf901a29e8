package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the stored direction code. The values are persisted as-is.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Sign is +1 for BUY and -1 for SELL.
func (s Side) Sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// FillPrice is the quote side a market order of this direction trades on.
// Buys lift the ask, sells hit the bid.
func (s Side) FillPrice(ba BA) decimal.Decimal {
	if s == Sell {
		return ba.Bid
	}
	return ba.Ask
}
