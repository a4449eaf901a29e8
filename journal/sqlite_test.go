package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradesim/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func openPosition() Position {
	return Position{
		ID:          "P1",
		SessionID:   "S1",
		Instrument:  "EURUSD",
		Side:        market.Buy,
		Quantity:    dec("1"),
		EntryPrice:  dec("1.1002"),
		Status:      StatusOpen,
		OpenedAt:    t0,
		RealizedPnL: dec("0"),
		Costs:       dec("-0.00013"),
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('position','transaction','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["position"])
	assert.True(t, found["transaction"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	open := openPosition()
	require.NoError(t, j.Record(Batch{
		Positions: []Position{open},
		Transactions: []Transaction{
			tx("S1", 1, TxSpread, "-0.0001", t0),
			tx("S1", 2, TxSlippage, "-0.00011", t0),
		},
		Equity: &EquitySnapshot{SessionID: "S1", Time: t0, Balance: dec("999.99979"), Equity: dec("999.9997"), MarginUsed: dec("0.022")},
	}))

	closedAt := t0.Add(time.Minute)
	closed := open
	closed.Status = StatusClosed
	closed.ExitPrice = dec("1.1050")
	closed.ClosedAt = &closedAt
	closed.RealizedPnL = dec("0.0048")
	pnl := tx("S1", 3, TxPnL, "0.0048", closedAt)
	pnl.PositionID = "P1"
	require.NoError(t, j.Record(Batch{Positions: []Position{closed}, Transactions: []Transaction{pnl}}))

	positions, err := j.ListPositions(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	got := positions[0]
	assert.Equal(t, StatusClosed, got.Status)
	assert.Equal(t, market.Buy, got.Side)
	assert.True(t, got.EntryPrice.Equal(dec("1.1002")))
	assert.True(t, got.ExitPrice.Equal(dec("1.1050")))
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(closedAt))
	assert.True(t, got.OpenedAt.Equal(t0))

	txs, err := j.ListTransactions(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, TxPnL, txs[2].Type)
	assert.Equal(t, "P1", txs[2].PositionID)
	assert.Equal(t, "", txs[0].PositionID)

	bal, err := j.SessionBalance(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("0.00459")), bal.String())

	eq, err := j.ListEquity(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, eq, 1)
	assert.True(t, eq[0].MarginUsed.Equal(dec("0.022")))

	p, err := j.GetPosition(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, p.Status)
	_, err = j.GetPosition(ctx, "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteBatchIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	require.NoError(t, j.Record(Batch{Transactions: []Transaction{tx("S1", 1, TxDeposit, "100", t0)}}))

	// second row reuses seq 1, so the whole batch must roll back
	err := j.Record(Batch{
		Positions:    []Position{openPosition()},
		Transactions: []Transaction{tx("S1", 2, TxSpread, "-1", t0), {ID: "dup", SessionID: "S1", Seq: 1, Type: TxSpread, Amount: dec("-1"), CreatedAt: t0}},
	})
	require.Error(t, err)

	positions, err := j.ListPositions(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, positions)

	txs, err := j.ListTransactions(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestSQLiteTransactionsAreAppendOnly(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Record(Batch{Transactions: []Transaction{tx("S1", 1, TxDeposit, "100", t0)}}))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`UPDATE "transaction" SET amount = '5' WHERE seq = 1`)
	assert.ErrorContains(t, err, "append-only")

	_, err = db.Exec(`DELETE FROM "transaction"`)
	assert.ErrorContains(t, err, "append-only")
}

func TestSQLiteClosedPositionIsFinal(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	p := openPosition()
	closedAt := t0.Add(time.Minute)
	p.Status = StatusLiquidated
	p.ClosedAt = &closedAt
	require.NoError(t, j.Record(Batch{Positions: []Position{p}}))

	p.Status = StatusOpen
	p.ClosedAt = nil
	assert.ErrorContains(t, j.Record(Batch{Positions: []Position{p}}), "immutable")
}

func TestDiscard(t *testing.T) {
	var j Journal = Discard{}
	assert.NoError(t, j.Record(Batch{Positions: []Position{openPosition()}}))
	assert.NoError(t, j.Close())
	assert.True(t, Batch{}.Empty())
}
