package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func instrument(t *testing.T, sym string) Instrument {
	t.Helper()
	c, err := NewCatalog(DefaultInstruments())
	require.NoError(t, err)
	in, err := c.Lookup(sym)
	require.NoError(t, err)
	return in
}

func TestQuoteToAccountRate_QuoteEqualsAccount(t *testing.T) {
	t.Parallel()

	in := instrument(t, "EURUSD")
	rate, err := QuoteToAccountRate(in, "USD", Tick{})
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestQuoteToAccountRate_BaseEqualsAccount(t *testing.T) {
	t.Parallel()

	in := instrument(t, "USDJPY")
	tick := Tick{Instrument: "USDJPY", Time: time.Unix(0, 0), BA: BA{Bid: d("150.00"), Ask: d("150.02")}}

	rate, err := QuoteToAccountRate(in, "USD", tick)
	require.NoError(t, err)

	want := decimal.NewFromInt(1).Div(d("150.01"))
	assert.True(t, rate.Equal(want), "got %s want %s", rate, want)
}

func TestQuoteToAccountRate_BaseEqualsAccountNoPrice(t *testing.T) {
	t.Parallel()

	in := instrument(t, "USDJPY")
	_, err := QuoteToAccountRate(in, "USD", Tick{})
	assert.Error(t, err)
}

func TestQuoteToAccountRate_Cross(t *testing.T) {
	t.Parallel()

	in := instrument(t, "GBPUSD")
	assert.False(t, CanConvert(in, "EUR"))

	_, err := QuoteToAccountRate(in, "EUR", Tick{})
	assert.ErrorContains(t, err, "cross conversion not implemented")
}
