// Package session runs isolated replay sessions. Each session is owned by
// one goroutine that serializes its clock, tick delivery and orders; other
// goroutines talk to it through a bounded mailbox and read published
// snapshots.
package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
)

// Params describe a session to create.
type Params struct {
	ID              string          `json:"id,omitempty"` // generated when empty
	Name            string          `json:"name"`
	Owner           string          `json:"owner"`
	Instrument      string          `json:"instrument"`
	StartTime       time.Time       `json:"start_timestamp"`
	Speed           float64         `json:"speed"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	AccountCurrency string          `json:"account_currency,omitempty"`
}

// Session is the descriptive record of a session.
type Session struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Owner           string          `json:"owner"`
	Instrument      string          `json:"instrument"`
	AccountCurrency string          `json:"account_currency"`
	StartTime       time.Time       `json:"start_timestamp"`
	Speed           float64         `json:"speed"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Snapshot is a point-in-time view of a session. Published snapshots are
// never modified.
type Snapshot struct {
	Session       Session               `json:"session"`
	VirtualTime   time.Time             `json:"virtual_time"`
	Price         *market.Tick          `json:"price,omitempty"`
	Tradable      bool                  `json:"tradable"`
	OpenPositions []journal.Position    `json:"open_positions"`
	Balance       decimal.Decimal       `json:"balance"`
	Equity        decimal.Decimal       `json:"equity"`
	Unrealized    decimal.Decimal       `json:"unrealized_pnl"`
	MarginUsed    decimal.Decimal       `json:"margin_used"`
	Transactions  []journal.Transaction `json:"transactions"`

	positions []journal.Position
	ledger    []journal.Transaction
}
