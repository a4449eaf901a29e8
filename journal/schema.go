// journal/schema.go
package journal

// Schema creates the position, transaction and equity tables. Column names
// and enum values are shared with downstream analytics; do not rename them.
//
// Decimals are stored as TEXT to keep them exact.
const Schema = `
CREATE TABLE IF NOT EXISTS position (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL CHECK (side IN ('BUY','SELL')),
	quantity TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('OPEN','CLOSED','LIQUIDATED')),
	opened_at DATETIME NOT NULL,
	closed_at DATETIME,
	realized_pnl TEXT NOT NULL,
	costs TEXT NOT NULL,
	row_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_position_session ON position(session_id, row_order);

CREATE TABLE IF NOT EXISTS "transaction" (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('DEPOSIT','WITHDRAWAL','COMMISSION','PNL','SLIPPAGE','SPREAD','ADJUSTMENT')),
	amount TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	related_position_id TEXT,
	note TEXT NOT NULL DEFAULT '',
	UNIQUE (session_id, seq)
);

CREATE TRIGGER IF NOT EXISTS transaction_no_update BEFORE UPDATE ON "transaction"
BEGIN
	SELECT RAISE(ABORT, 'transaction rows are append-only');
END;

CREATE TRIGGER IF NOT EXISTS transaction_no_delete BEFORE DELETE ON "transaction"
BEGIN
	SELECT RAISE(ABORT, 'transaction rows are append-only');
END;

CREATE TRIGGER IF NOT EXISTS position_final BEFORE UPDATE ON position
WHEN OLD.status != 'OPEN'
BEGIN
	SELECT RAISE(ABORT, 'closed positions are immutable');
END;

CREATE TABLE IF NOT EXISTS equity (
	session_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	equity TEXT NOT NULL,
	margin_used TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_session ON equity(session_id, time);
`
