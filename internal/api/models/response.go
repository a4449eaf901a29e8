package models

import (
	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/session"
	"github.com/rustyeddy/tradesim/sim"
)

type SessionsResponse struct {
	Sessions []session.Session `json:"sessions"`
}

type SessionResponse struct {
	Session session.Session `json:"session"`
}

type FillResponse struct {
	Fill sim.Fill `json:"fill"`
}

type TransactionResponse struct {
	Transaction journal.Transaction `json:"transaction"`
}

type PositionsResponse struct {
	Positions []journal.Position `json:"positions"`
}

type TransactionsResponse struct {
	Transactions []journal.Transaction `json:"transactions"`
}

type InstrumentsResponse struct {
	Instruments []market.Instrument `json:"instruments"`
	WithData    []string            `json:"with_data"` // symbols a session can be created on
}

// ErrorResponse represents an error response. Code carries the rejection
// reason for refused requests.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
