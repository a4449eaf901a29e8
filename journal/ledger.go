package journal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is a session's in-memory, insert-only transaction sequence.
// It has no update or delete operation.
//
// Appends come from one goroutine. Views handed out by All stay
// valid while later appends happen because existing elements are never
// written again.
type Ledger struct {
	sessionID string
	txs       []Transaction
	balance   decimal.Decimal
}

func NewLedger(sessionID string) *Ledger {
	return &Ledger{sessionID: sessionID}
}

// NextSeq is the sequence number the next appended row must carry.
func (l *Ledger) NextSeq() int64 {
	return int64(len(l.txs)) + 1
}

// Validate checks rows against the ledger without appending them.
func (l *Ledger) Validate(txs ...Transaction) error {
	seq := l.NextSeq()
	for i, tx := range txs {
		if tx.SessionID != l.sessionID {
			return fmt.Errorf("ledger %s: row %d belongs to session %q", l.sessionID, i, tx.SessionID)
		}
		if tx.ID == "" {
			return fmt.Errorf("ledger %s: row %d has no id", l.sessionID, i)
		}
		if !tx.Type.Valid() {
			return fmt.Errorf("ledger %s: row %d has unknown type %q", l.sessionID, i, tx.Type)
		}
		if tx.Seq != seq+int64(i) {
			return fmt.Errorf("ledger %s: row %d has seq %d, want %d", l.sessionID, i, tx.Seq, seq+int64(i))
		}
		if tx.CreatedAt.IsZero() {
			return fmt.Errorf("ledger %s: row %d has no timestamp", l.sessionID, i)
		}
		if tx.Type.IsCost() && tx.Amount.IsPositive() {
			return fmt.Errorf("ledger %s: row %d: %s amount %s must not be positive", l.sessionID, i, tx.Type, tx.Amount)
		}
	}
	return nil
}

// Append adds rows atomically: either all are valid and appended, or none.
func (l *Ledger) Append(txs ...Transaction) error {
	if err := l.Validate(txs...); err != nil {
		return err
	}
	for _, tx := range txs {
		l.balance = l.balance.Add(tx.Amount)
	}
	l.txs = append(l.txs, txs...)
	return nil
}

// Balance is the sum of every row.
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

func (l *Ledger) Len() int { return len(l.txs) }

// All returns a read-only view of every row in sequence order.
func (l *Ledger) All() []Transaction {
	return l.txs[:len(l.txs):len(l.txs)]
}

// Tail returns the last n rows of txs (all of them when n <= 0 or n exceeds len).
func Tail(txs []Transaction, n int) []Transaction {
	if n <= 0 || n >= len(txs) {
		return txs
	}
	return txs[len(txs)-n:]
}

// Sum adds up amounts.
func Sum(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}
