package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateSessionRequest is the body of POST /api/v1/sessions
type CreateSessionRequest struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	Owner           string           `json:"owner"`
	Instrument      string           `json:"instrument" binding:"required"`
	StartTimestamp  *time.Time       `json:"start_timestamp,omitempty"` // default: first tick
	Speed           *float64         `json:"speed,omitempty"`           // default: 1
	InitialBalance  *decimal.Decimal `json:"initial_balance,omitempty"` // default: config
	AccountCurrency string           `json:"account_currency,omitempty"`
}

// OrderRequest is the body of POST /api/v1/sessions/:id/orders
type OrderRequest struct {
	Side        string          `json:"side" binding:"required"` // "BUY" or "SELL"
	Quantity    decimal.Decimal `json:"quantity"`
	RequestedAt *time.Time      `json:"requested_at,omitempty"`
}

// ControlRequest is the body of POST /api/v1/sessions/:id/control
type ControlRequest struct {
	Action string     `json:"action" binding:"required"` // start, pause, resume, stop, archive, seek, speed
	To     *time.Time `json:"to,omitempty"`              // seek target
	Speed  *float64   `json:"speed,omitempty"`
}

// FundsRequest is the body of POST /api/v1/sessions/:id/funds
type FundsRequest struct {
	Type   string          `json:"type" binding:"required"` // deposit, withdraw, adjust
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}
