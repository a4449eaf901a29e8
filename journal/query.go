package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/market"
)

// GetPosition returns a single position row by ID.
func (j *SQLite) GetPosition(ctx context.Context, positionID string) (Position, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, session_id, instrument, side, quantity, entry_price, exit_price, status, opened_at, closed_at, realized_pnl, costs
		FROM position
		WHERE id = ?`, positionID)

	p, err := scanPosition(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Position{}, fmt.Errorf("position %q not found", positionID)
		}
		return Position{}, err
	}
	return p, nil
}

// ListPositions returns a session's positions in the order they were opened.
func (j *SQLite) ListPositions(ctx context.Context, sessionID string) ([]Position, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, instrument, side, quantity, entry_price, exit_price, status, opened_at, closed_at, realized_pnl, costs
		FROM position
		WHERE session_id = ?
		ORDER BY row_order ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions returns a session's ledger in sequence order.
func (j *SQLite) ListTransactions(ctx context.Context, sessionID string) ([]Transaction, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, seq, type, amount, created_at, related_position_id, note
		FROM "transaction"
		WHERE session_id = ?
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t       Transaction
			typ     string
			related sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &typ, &t.Amount, &t.CreatedAt, &related, &t.Note); err != nil {
			return nil, err
		}
		t.Type = TxType(typ)
		t.CreatedAt = t.CreatedAt.UTC()
		t.PositionID = related.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a session's equity snapshots in write order.
func (j *SQLite) ListEquity(ctx context.Context, sessionID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, time, balance, equity, margin_used
		FROM equity
		WHERE session_id = ?
		ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.SessionID, &e.Time, &e.Balance, &e.Equity, &e.MarginUsed); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionBalance sums a session's stored ledger.
func (j *SQLite) SessionBalance(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	txs, err := j.ListTransactions(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return Sum(txs), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (Position, error) {
	var (
		p        Position
		side     string
		status   string
		closedAt sql.NullTime
	)
	err := r.Scan(&p.ID, &p.SessionID, &p.Instrument, &side, &p.Quantity, &p.EntryPrice,
		&p.ExitPrice, &status, &p.OpenedAt, &closedAt, &p.RealizedPnL, &p.Costs)
	if err != nil {
		return Position{}, err
	}
	p.Side = market.Side(side)
	p.Status = PositionStatus(status)
	p.OpenedAt = p.OpenedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		p.ClosedAt = &t
	}
	return p, nil
}
