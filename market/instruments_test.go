package market

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog(DefaultInstruments())
	require.NoError(t, err)

	in, err := c.Lookup("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", in.Symbol)
	assert.True(t, in.PipSize.Equal(d("0.0001")))
	assert.True(t, in.Enabled)

	_, err = c.Lookup("XAUUSD")
	assert.True(t, errors.Is(err, ErrInstrumentNotFound))

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "EURUSD", all[0].Symbol)
	assert.Equal(t, "USDJPY", all[2].Symbol)
}

func TestNewCatalogRejectsBadInstruments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     []Instrument
		errMsg string
	}{
		{
			name:   "empty symbol",
			in:     []Instrument{{Symbol: " ", PipSize: d("0.0001")}},
			errMsg: "empty symbol",
		},
		{
			name:   "zero pip size",
			in:     []Instrument{{Symbol: "EURUSD"}},
			errMsg: "pip_size must be positive",
		},
		{
			name: "duplicate",
			in: []Instrument{
				{Symbol: "EURUSD", PipSize: d("0.0001")},
				{Symbol: "EURUSD", PipSize: d("0.0001")},
			},
			errMsg: "duplicate symbol",
		},
		{
			name:   "negative margin",
			in:     []Instrument{{Symbol: "EURUSD", PipSize: d("0.0001"), MarginRate: d("-0.1")}},
			errMsg: "margin_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.in)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestInstrumentPips(t *testing.T) {
	t.Parallel()

	in := instrument(t, "EURUSD")
	assert.True(t, in.Pips(d("0.0002")).Equal(decimal.NewFromInt(2)))
	assert.True(t, Instrument{}.Pips(d("1")).IsZero())
}

func TestTickHelpers(t *testing.T) {
	t.Parallel()

	tk := Tick{Instrument: "EURUSD", Time: time.Unix(10, 0), BA: BA{Bid: d("1.1000"), Ask: d("1.1002")}}
	assert.True(t, tk.Mid().Equal(d("1.1001")))
	assert.True(t, tk.Spread().Equal(d("0.0002")))
	assert.NoError(t, tk.Validate())

	crossed := tk
	crossed.Bid = d("1.1003")
	assert.Error(t, crossed.Validate())

	assert.Error(t, Tick{Instrument: "EURUSD"}.Validate())
}

func TestSide(t *testing.T) {
	t.Parallel()

	s, err := ParseSide(" buy ")
	require.NoError(t, err)
	assert.Equal(t, Buy, s)

	_, err = ParseSide("hold")
	assert.Error(t, err)

	ba := BA{Bid: d("1.1000"), Ask: d("1.1002")}
	assert.True(t, Buy.FillPrice(ba).Equal(d("1.1002")))
	assert.True(t, Sell.FillPrice(ba).Equal(d("1.1000")))
	assert.Equal(t, Sell, Buy.Opposite())
	assert.True(t, Sell.Sign().Equal(decimal.NewFromInt(-1)))
	assert.False(t, Side("LONG").Valid())
}
