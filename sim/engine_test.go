package sim

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s got %s %v", want, got, msgAndArgs)
}

func eurusd() market.Instrument {
	return market.Instrument{
		Symbol:        "EURUSD",
		PipSize:       dec("0.0001"),
		Enabled:       true,
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		MarginRate:    dec("0.02"),
	}
}

func tk(at time.Time, bid, ask string) market.Tick {
	return market.Tick{Instrument: "EURUSD", Time: at, BA: market.BA{Bid: dec(bid), Ask: dec(ask)}}
}

type memJournal struct {
	batches []journal.Batch
	fail    error
}

func (j *memJournal) Record(b journal.Batch) error {
	if j.fail != nil {
		return j.fail
	}
	j.batches = append(j.batches, b)
	return nil
}

func (j *memJournal) Close() error { return nil }

var scenarioCosts = CostModel{
	SlippageBps:     dec("1"),
	CommissionMode:  CommissionPerUnit,
	CommissionValue: dec("0.00005"),
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func newTestEngine(t testingT, in market.Instrument, costs CostModel, deposit string) (*Engine, *memJournal) {
	t.Helper()
	j := &memJournal{}
	e, err := NewEngine(Config{
		SessionID:         "S1",
		Instrument:        in,
		AccountCurrency:   "USD",
		Costs:             costs,
		MaintenanceMargin: dec("0.5"),
		Journal:           j,
	})
	require.NoError(t, err)
	_, err = e.Fund(journal.TxDeposit, dec(deposit), t0, "initial deposit")
	require.NoError(t, err)
	e.SetTrading(true)
	return e, j
}

func buy(qty string) Order  { return Order{Side: market.Buy, Quantity: dec(qty)} }
func sell(qty string) Order { return Order{Side: market.Sell, Quantity: dec(qty)} }

func feed(t *testing.T, e *Engine, tick market.Tick) *Fill {
	t.Helper()
	f, err := e.OnTick(tick)
	require.NoError(t, err)
	return f
}

func types(txs []journal.Transaction) []journal.TxType {
	out := make([]journal.TxType, len(txs))
	for i, tx := range txs {
		out[i] = tx.Type
	}
	return out
}

func TestOpenAndCloseScenario(t *testing.T) {
	e, j := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))

	open, err := e.Submit(buy("1"), t0)
	require.NoError(t, err)

	assert.Equal(t, ActionOpen, open.Action)
	assert.Equal(t, market.Buy, open.Position.Side)
	assert.Equal(t, journal.StatusOpen, open.Position.Status)
	assertDec(t, "1.1002", open.Position.EntryPrice)
	assert.Equal(t,
		[]journal.TxType{journal.TxSpread, journal.TxSlippage, journal.TxCommission},
		types(open.Transactions))
	for _, tx := range open.Transactions {
		assert.False(t, tx.Amount.IsPositive(), "%s", tx.Type)
		assert.Equal(t, open.Position.ID, tx.PositionID)
	}
	assertDec(t, "-0.0001", open.Transactions[0].Amount)
	assertDec(t, "-0.00011002", open.Transactions[1].Amount)
	assertDec(t, "-0.00005", open.Transactions[2].Amount)
	assertDec(t, "9999.99973998", e.Balance())

	t1 := t0.Add(time.Second)
	feed(t, e, tk(t1, "1.1050", "1.1052"))

	closed, err := e.Submit(sell("1"), t1)
	require.NoError(t, err)

	assert.Equal(t, ActionClose, closed.Action)
	assert.Equal(t, journal.StatusClosed, closed.Position.Status)
	assertDec(t, "1.1050", closed.Position.ExitPrice)
	require.NotNil(t, closed.Position.ClosedAt)
	assert.Equal(t, t1, *closed.Position.ClosedAt)
	assertDec(t, "0.0048", closed.RealizedPnL)
	assertDec(t, "-0.00052052", closed.Position.Costs)
	assert.Equal(t,
		[]journal.TxType{journal.TxSpread, journal.TxSlippage, journal.TxCommission, journal.TxPnL},
		types(closed.Transactions))
	assertDec(t, "10000.00427948", e.Balance())
	assert.Empty(t, e.OpenPositions())

	// one deposit batch plus one per fill, each carrying an equity snapshot
	require.Len(t, j.batches, 3)
	for _, b := range j.batches {
		require.NotNil(t, b.Equity)
	}
	assertDec(t, "10000.00427948", j.batches[2].Equity.Balance)
}

func TestSecondOpenRejected(t *testing.T) {
	e, j := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	_, err := e.Submit(buy("1"), t0)
	require.NoError(t, err)

	before := e.Ledger().Len()
	batches := len(j.batches)

	_, err = e.Submit(buy("1"), t0)
	require.ErrorIs(t, err, ErrPositionAlreadyOpen)
	assert.Equal(t, before, e.Ledger().Len())
	assert.Len(t, j.batches, batches)
	assert.Len(t, e.Positions(), 1)
}

func TestRejections(t *testing.T) {
	disabled := eurusd()
	disabled.Enabled = false

	tests := []struct {
		name  string
		in    market.Instrument
		setup func(e *Engine)
		order Order
		want  error
	}{
		{
			name:  "not_running",
			in:    eurusd(),
			setup: func(e *Engine) { e.SetTrading(false) },
			order: buy("1"),
			want:  ErrSessionNotRunning,
		},
		{
			name:  "bad_side",
			in:    eurusd(),
			order: Order{Side: "HOLD", Quantity: dec("1")},
			want:  ErrInvalidSide,
		},
		{
			name:  "disabled",
			in:    disabled,
			order: buy("1"),
			want:  ErrInstrumentDisabled,
		},
		{
			name:  "zero_quantity",
			in:    eurusd(),
			order: buy("0"),
			want:  ErrInvalidQuantity,
		},
		{
			name:  "negative_quantity",
			in:    eurusd(),
			order: sell("-3"),
			want:  ErrInvalidQuantity,
		},
		{
			name:  "stale_after_seek",
			in:    eurusd(),
			setup: func(e *Engine) { e.InvalidatePrice() },
			order: buy("1"),
			want:  ErrNoPriceData,
		},
		{
			name:  "exhausted",
			in:    eurusd(),
			setup: func(e *Engine) { e.MarkExhausted() },
			order: buy("1"),
			want:  ErrNoPriceData,
		},
		{
			name:  "margin",
			in:    eurusd(),
			order: buy("1000000"),
			want:  ErrInsufficientMargin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, j := newTestEngine(t, tt.in, scenarioCosts, "10000")
			feed(t, e, tk(t0, "1.1000", "1.1002"))
			if tt.setup != nil {
				tt.setup(e)
			}

			_, err := e.Submit(tt.order, t0)
			require.ErrorIs(t, err, tt.want)

			var rej *RejectError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, 1, e.Ledger().Len(), "only the deposit")
			assert.Len(t, j.batches, 1)
			assert.Empty(t, e.Positions())
		})
	}
}

func TestNoTickYet(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	_, err := e.Submit(buy("1"), t0)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNoPriceData, reason)
}

func TestRealignAfterSeek(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0.Add(time.Minute), "1.1000", "1.1002"))
	e.InvalidatePrice()

	_, ok := e.Quote()
	assert.False(t, ok)

	feed(t, e, tk(t0, "1.0990", "1.0992"))
	fill, err := e.Submit(buy("1"), t0)
	require.NoError(t, err)
	assertDec(t, "1.0992", fill.Price)
}

func TestCloseQuantityMustMatch(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	_, err := e.Submit(buy("2"), t0)
	require.NoError(t, err)

	_, err = e.Submit(sell("1"), t0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Len(t, e.OpenPositions(), 1)
	assertDec(t, "2", e.OpenPositions()[0].Quantity)
}

func TestJournalFailureAppliesNothing(t *testing.T) {
	e, j := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	j.fail = errors.New("disk full")

	_, err := e.Submit(buy("1"), t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, e.Ledger().Len())
	assert.Empty(t, e.Positions())
	assertDec(t, "10000", e.Balance())
}

func TestCheckRejectsBrokenPlans(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")

	err := e.check("open", []journal.Position{{
		ID:         "P1",
		SessionID:  "S1",
		Instrument: "EURUSD",
		Side:       market.Buy,
		Quantity:   dec("-1"),
		EntryPrice: dec("1.1"),
		Status:     journal.StatusOpen,
	}}, nil)

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "open", inv.Op)

	err = e.check("fund", nil, []journal.Transaction{{
		ID:        "T9",
		SessionID: "S1",
		Seq:       7,
		Type:      journal.TxDeposit,
		Amount:    dec("1"),
		CreatedAt: t0,
	}})
	require.True(t, errors.As(err, &inv), "sequence gap")
}

func TestLiquidation(t *testing.T) {
	e, j := newTestEngine(t, eurusd(), CostModel{CommissionMode: CommissionPerUnit}, "1000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	_, err := e.Submit(buy("10000"), t0)
	require.NoError(t, err)

	// -492: inside the threshold
	assert.Nil(t, feed(t, e, tk(t0.Add(time.Second), "1.0510", "1.0512")))
	require.Len(t, e.OpenPositions(), 1)

	// -502 against a 1000 balance at 0.5 maintenance
	at := t0.Add(2 * time.Second)
	liq := feed(t, e, tk(at, "1.0500", "1.0502"))
	require.NotNil(t, liq)

	assert.Equal(t, ActionLiquidate, liq.Action)
	assert.Equal(t, journal.StatusLiquidated, liq.Position.Status)
	assert.Equal(t, at, liq.Time)
	assertDec(t, "-502", liq.RealizedPnL)
	assert.Equal(t, journal.TxPnL, liq.Transactions[len(liq.Transactions)-1].Type)
	assertDec(t, "498", e.Balance())
	assert.Empty(t, e.OpenPositions())

	last := j.batches[len(j.batches)-1]
	assert.Equal(t, journal.StatusLiquidated, last.Positions[0].Status)

	// a new position may be opened afterwards
	_, err = e.Submit(buy("1000"), at)
	require.NoError(t, err)
}

func TestLiquidationDisabled(t *testing.T) {
	e, err := NewEngine(Config{
		SessionID:       "S1",
		Instrument:      eurusd(),
		AccountCurrency: "USD",
		Costs:           CostModel{CommissionMode: CommissionPerUnit},
	})
	require.NoError(t, err)
	_, err = e.Fund(journal.TxDeposit, dec("1000"), t0, "")
	require.NoError(t, err)
	e.SetTrading(true)

	feed(t, e, tk(t0, "1.1000", "1.1002"))
	_, err = e.Submit(buy("10000"), t0)
	require.NoError(t, err)
	assert.Nil(t, feed(t, e, tk(t0.Add(time.Second), "1.0000", "1.0002")))
	assert.Len(t, e.OpenPositions(), 1)
}

func TestAccountCurrencyConversion(t *testing.T) {
	usdjpy := market.Instrument{
		Symbol:        "USDJPY",
		PipSize:       dec("0.01"),
		Enabled:       true,
		BaseCurrency:  "USD",
		QuoteCurrency: "JPY",
		MarginRate:    dec("0.02"),
	}
	e, _ := newTestEngine(t, usdjpy, CostModel{CommissionMode: CommissionPerUnit}, "10000")

	jpy := func(at time.Time, bid, ask string) market.Tick {
		return market.Tick{Instrument: "USDJPY", Time: at, BA: market.BA{Bid: dec(bid), Ask: dec(ask)}}
	}

	feed(t, e, jpy(t0, "150.00", "150.02"))
	open, err := e.Submit(buy("1000"), t0)
	require.NoError(t, err)
	// half of a 2 pip spread on 1000 units is 10 JPY
	assert.InDelta(t, -10/150.01, open.Transactions[0].Amount.InexactFloat64(), 1e-9)

	t1 := t0.Add(time.Minute)
	feed(t, e, jpy(t1, "151.02", "151.04"))
	closed, err := e.Submit(sell("1000"), t1)
	require.NoError(t, err)
	assert.InDelta(t, 1000/151.03, closed.RealizedPnL.InexactFloat64(), 1e-9)
}

func TestNewEngineRejectsCrossCurrency(t *testing.T) {
	gbpjpy := market.Instrument{Symbol: "GBPJPY", PipSize: dec("0.01"), Enabled: true, BaseCurrency: "GBP", QuoteCurrency: "JPY"}
	_, err := NewEngine(Config{SessionID: "S1", Instrument: gbpjpy, AccountCurrency: "USD", Costs: scenarioCosts})
	require.Error(t, err)
}

func TestFunding(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), CostModel{CommissionMode: CommissionPerUnit}, "1000")

	tx, err := e.Fund(journal.TxWithdrawal, dec("200"), t0, "")
	require.NoError(t, err)
	assertDec(t, "-200", tx.Amount)
	assertDec(t, "800", e.Balance())

	_, err = e.Fund(journal.TxWithdrawal, dec("800.01"), t0, "")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = e.Fund(journal.TxAdjustment, dec("-0.5"), t0, "fee refund reversal")
	require.NoError(t, err)
	assertDec(t, "799.5", e.Balance())

	_, err = e.Fund(journal.TxDeposit, dec("-1"), t0, "")
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = e.Fund(journal.TxAdjustment, decimal.Zero, t0, "")
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = e.Fund(journal.TxPnL, dec("1"), t0, "")
	require.Error(t, err)

	// margin held by an open position is not free
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	_, err = e.Submit(buy("10000"), t0)
	require.NoError(t, err)
	assertDec(t, "220.02", e.MarginUsed())
	_, err = e.Fund(journal.TxWithdrawal, dec("600"), t0, "")
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSequenceIsContiguous(t *testing.T) {
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	feed(t, e, tk(t0, "1.1000", "1.1002"))
	for i := 0; i < 3; i++ {
		_, err := e.Submit(buy("1"), t0)
		require.NoError(t, err)
		_, err = e.Submit(sell("1"), t0)
		require.NoError(t, err)
	}
	for i, tx := range e.Ledger().All() {
		assert.Equal(t, int64(i+1), tx.Seq)
	}
}

func runDeterministic(t *testing.T) []byte {
	t.Helper()
	e, _ := newTestEngine(t, eurusd(), scenarioCosts, "10000")
	prices := [][2]string{
		{"1.1000", "1.1002"}, {"1.1010", "1.1012"}, {"1.0990", "1.0992"},
		{"1.1030", "1.1032"}, {"1.1025", "1.1027"},
	}
	for i, p := range prices {
		at := t0.Add(time.Duration(i) * time.Second)
		feed(t, e, tk(at, p[0], p[1]))
		side := market.Buy
		if i%2 == 1 {
			side = market.Sell
		}
		_, err := e.Submit(Order{Side: side, Quantity: dec("1000")}, at)
		require.NoError(t, err)
	}

	out, err := json.Marshal(struct {
		P []journal.Position
		T []journal.Transaction
	}{e.Positions(), e.Ledger().All()})
	require.NoError(t, err)
	return out
}

func TestReplayIsDeterministic(t *testing.T) {
	assert.Equal(t, string(runDeterministic(t)), string(runDeterministic(t)))
}
