package sim

import (
	"errors"
	"fmt"
)

// Reason is a rejection code. The strings are part of the API surface.
type Reason string

const (
	ReasonSessionNotRunning  Reason = "SessionNotRunning"
	ReasonInstrumentDisabled Reason = "InstrumentDisabled"
	ReasonNoPriceData        Reason = "NoPriceData"
	ReasonPositionOpen       Reason = "PositionAlreadyOpen"
	ReasonInvalidQuantity    Reason = "InvalidQuantity"
	ReasonInvalidSide        Reason = "InvalidSide"
	ReasonInsufficientMargin Reason = "InsufficientMargin"
	ReasonInsufficientFunds  Reason = "InsufficientFunds"
	ReasonSessionBusy        Reason = "SessionBusy"
	ReasonInvalidTransition  Reason = "InvalidTransition"
	ReasonSessionNotFound    Reason = "SessionNotFound"
	ReasonInvalidArgument    Reason = "InvalidArgument"
)

// RejectError is a refused request. Nothing was mutated.
type RejectError struct {
	Reason Reason
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

// Is matches any RejectError with the same reason, so callers can write
// errors.Is(err, sim.ErrPositionAlreadyOpen).
func (e *RejectError) Is(target error) bool {
	t, ok := target.(*RejectError)
	return ok && t.Reason == e.Reason
}

var (
	ErrSessionNotRunning   = &RejectError{Reason: ReasonSessionNotRunning}
	ErrInstrumentDisabled  = &RejectError{Reason: ReasonInstrumentDisabled}
	ErrNoPriceData         = &RejectError{Reason: ReasonNoPriceData}
	ErrPositionAlreadyOpen = &RejectError{Reason: ReasonPositionOpen}
	ErrInvalidQuantity     = &RejectError{Reason: ReasonInvalidQuantity}
	ErrInvalidSide         = &RejectError{Reason: ReasonInvalidSide}
	ErrInsufficientMargin  = &RejectError{Reason: ReasonInsufficientMargin}
	ErrInsufficientFunds   = &RejectError{Reason: ReasonInsufficientFunds}
	ErrSessionBusy         = &RejectError{Reason: ReasonSessionBusy}
	ErrInvalidTransition   = &RejectError{Reason: ReasonInvalidTransition}
	ErrSessionNotFound     = &RejectError{Reason: ReasonSessionNotFound}
	ErrInvalidArgument     = &RejectError{Reason: ReasonInvalidArgument}
)

func Reject(r Reason, format string, args ...any) error {
	return &RejectError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection code from err.
func ReasonOf(err error) (Reason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// InvariantError means the engine computed something impossible. The
// mutation was abandoned before any state or journal write.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Msg)
}

func invariant(op, format string, args ...any) error {
	return &InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
