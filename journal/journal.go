// journal/journal.go
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

// PositionStatus values are stored verbatim in the position table.
type PositionStatus string

const (
	StatusOpen       PositionStatus = "OPEN"
	StatusClosed     PositionStatus = "CLOSED"
	StatusLiquidated PositionStatus = "LIQUIDATED"
)

func (s PositionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusLiquidated:
		return true
	default:
		return false
	}
}

// Terminal reports whether the position can no longer change.
func (s PositionStatus) Terminal() bool {
	switch s {
	case StatusClosed, StatusLiquidated:
		return true
	default:
		return false
	}
}

// TxType values are stored verbatim in the transaction table.
type TxType string

const (
	TxDeposit    TxType = "DEPOSIT"
	TxWithdrawal TxType = "WITHDRAWAL"
	TxCommission TxType = "COMMISSION"
	TxPnL        TxType = "PNL"
	TxSlippage   TxType = "SLIPPAGE"
	TxSpread     TxType = "SPREAD"
	TxAdjustment TxType = "ADJUSTMENT"
)

func (t TxType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxCommission, TxPnL, TxSlippage, TxSpread, TxAdjustment:
		return true
	default:
		return false
	}
}

// IsCost reports whether the type is a trading cost, always booked <= 0.
func (t TxType) IsCost() bool {
	switch t {
	case TxCommission, TxSlippage, TxSpread:
		return true
	default:
		return false
	}
}

// Position maps 1:1 onto a position row.
type Position struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Instrument  string          `json:"instrument"`
	Side        market.Side     `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	Status      PositionStatus  `json:"status"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // account currency, gross of costs
	Costs       decimal.Decimal `json:"costs"`        // account currency, <= 0
}

// Transaction maps 1:1 onto a transaction row. Rows are never updated or
// deleted; corrections are new ADJUSTMENT rows.
type Transaction struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Seq        int64           `json:"seq"`
	Type       TxType          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
	PositionID string          `json:"related_position_id,omitempty"`
	Note       string          `json:"note,omitempty"`
}

type EquitySnapshot struct {
	SessionID  string          `json:"session_id"`
	Time       time.Time       `json:"time"`
	Balance    decimal.Decimal `json:"balance"`
	Equity     decimal.Decimal `json:"equity"`
	MarginUsed decimal.Decimal `json:"margin_used"`
}

// Batch is everything one engine mutation produces. A journal must store
// all of it or none of it.
type Batch struct {
	Positions    []Position
	Transactions []Transaction
	Equity       *EquitySnapshot
}

func (b Batch) Empty() bool {
	return len(b.Positions) == 0 && len(b.Transactions) == 0 && b.Equity == nil
}

type Journal interface {
	Record(Batch) error
	Close() error
}

// Reader lists what a journal has stored for a session, in write order.
type Reader interface {
	ListPositions(ctx context.Context, sessionID string) ([]Position, error)
	ListTransactions(ctx context.Context, sessionID string) ([]Transaction, error)
	ListEquity(ctx context.Context, sessionID string) ([]EquitySnapshot, error)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(Batch) error { return nil }
func (Discard) Close() error       { return nil }
