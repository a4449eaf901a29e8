package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var (
	_ Journal = (*SQLite)(nil)
	_ Reader  = (*SQLite)(nil)
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps batches serialized across sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Record writes a batch inside one SQL transaction.
func (j *SQLite) Record(b Batch) (err error) {
	if b.Empty() {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range b.Positions {
		_, err = tx.Exec(`
			INSERT INTO position
			(id, session_id, instrument, side, quantity, entry_price, exit_price, status, opened_at, closed_at, realized_pnl, costs, row_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COUNT(*) FROM position))
			ON CONFLICT(id) DO UPDATE SET
				exit_price = excluded.exit_price,
				status = excluded.status,
				closed_at = excluded.closed_at,
				realized_pnl = excluded.realized_pnl,
				costs = excluded.costs`,
			p.ID, p.SessionID, p.Instrument, string(p.Side), p.Quantity, p.EntryPrice,
			p.ExitPrice, string(p.Status), p.OpenedAt, p.ClosedAt, p.RealizedPnL, p.Costs,
		)
		if err != nil {
			return fmt.Errorf("record position %s: %w", p.ID, err)
		}
	}

	for _, t := range b.Transactions {
		var related any
		if t.PositionID != "" {
			related = t.PositionID
		}
		_, err = tx.Exec(`
			INSERT INTO "transaction"
			(id, session_id, seq, type, amount, created_at, related_position_id, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.SessionID, t.Seq, string(t.Type), t.Amount, t.CreatedAt, related, t.Note,
		)
		if err != nil {
			return fmt.Errorf("record transaction %s: %w", t.ID, err)
		}
	}

	if e := b.Equity; e != nil {
		_, err = tx.Exec(`
			INSERT INTO equity
			(session_id, time, balance, equity, margin_used)
			VALUES (?, ?, ?, ?, ?)`,
			e.SessionID, e.Time, e.Balance, e.Equity, e.MarginUsed,
		)
		if err != nil {
			return fmt.Errorf("record equity: %w", err)
		}
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
