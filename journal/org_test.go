package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradesim/market"
)

func closedPosition() Position {
	closedAt := t0.Add(90 * time.Second)
	return Position{
		ID:          "01HQZX3J5K8M9N0P1Q2R3S4T5V",
		SessionID:   "S1",
		Instrument:  "EURUSD",
		Side:        market.Sell,
		Quantity:    dec("1000"),
		EntryPrice:  dec("1.1050"),
		ExitPrice:   dec("1.1022"),
		Status:      StatusClosed,
		OpenedAt:    t0,
		ClosedAt:    &closedAt,
		RealizedPnL: dec("2.8"),
		Costs:       dec("-0.6"),
	}
}

func TestFormatPositionOrg(t *testing.T) {
	t.Parallel()

	p := closedPosition()
	spread := tx("S1", 2, TxSpread, "-0.2", t0)
	spread.PositionID = p.ID
	pnl := tx("S1", 5, TxPnL, "2.8", *p.ClosedAt)
	pnl.PositionID = p.ID
	other := tx("S1", 1, TxDeposit, "1000", t0)

	result := FormatPositionOrg(p, []Transaction{other, spread, pnl})

	assert.Contains(t, result, "** Position: EURUSD SELL (01HQZX3J)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ID: 01HQZX3J5K8M9N0P1Q2R3S4T5V")
	assert.Contains(t, result, ":QUANTITY: 1000")
	assert.Contains(t, result, ":STATUS: CLOSED")
	assert.Contains(t, result, ":EXIT_PRICE: 1.1022")
	assert.Contains(t, result, ":OPENED_AT: 2024-01-02T09:00:00Z")
	assert.Contains(t, result, ":CLOSED_AT: 2024-01-02T09:01:30Z")
	assert.Contains(t, result, ":REALIZED_PNL: 2.80")
	assert.Contains(t, result, ":COSTS: -0.60")
	assert.Contains(t, result, ":END:")

	assert.Contains(t, result, "| 2 | 2024-01-02T09:00:00Z | SPREAD | -0.2 |")
	assert.Contains(t, result, "| 5 | 2024-01-02T09:01:30Z | PNL | 2.8 |")
	assert.NotContains(t, result, "DEPOSIT")
	assert.Contains(t, result, "*** Review")
}

func TestFormatPositionOrgOpen(t *testing.T) {
	t.Parallel()

	p := openPosition()
	result := FormatPositionOrg(p, nil)

	assert.Contains(t, result, "(P1)")
	assert.Contains(t, result, ":STATUS: OPEN")
	assert.NotContains(t, result, ":EXIT_PRICE:")
	assert.NotContains(t, result, ":CLOSED_AT:")
	assert.Contains(t, result, "*** Ledger\n- none\n")
}

func TestFormatPositionsOrg(t *testing.T) {
	t.Parallel()

	result := FormatPositionsOrg([]Position{closedPosition(), openPosition()}, nil)
	assert.Equal(t, 2, strings.Count(result, "** Position:"))
	assert.Contains(t, result, ":END:\n\n*** Ledger")

	assert.Empty(t, FormatPositionsOrg(nil, nil))
}

func TestShortID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"P1", "P1"},
		{"12345678", "12345678"},
		{"123456789", "12345678"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, shortID(tt.in), tt.in)
	}
}
