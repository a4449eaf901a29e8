package sim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/pkg/id"
)

// Order is a market order request. It is consumed into exactly one Fill
// or one rejection.
type Order struct {
	Side        market.Side     `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	RequestedAt *time.Time      `json:"requested_at,omitempty"`
}

type FillAction string

const (
	ActionOpen      FillAction = "OPEN"
	ActionClose     FillAction = "CLOSE"
	ActionLiquidate FillAction = "LIQUIDATE"
)

// Fill is the outcome of an executed order or a forced liquidation.
type Fill struct {
	Action       FillAction            `json:"action"`
	Side         market.Side           `json:"side"`
	Quantity     decimal.Decimal       `json:"quantity"`
	Price        decimal.Decimal       `json:"price"`
	Time         time.Time             `json:"time"`
	Costs        Costs                 `json:"costs"`
	RealizedPnL  decimal.Decimal       `json:"realized_pnl"`
	Position     journal.Position      `json:"position"`
	Transactions []journal.Transaction `json:"transactions"`
	Balance      decimal.Decimal       `json:"balance"`
}

type Config struct {
	SessionID         string
	Instrument        market.Instrument
	AccountCurrency   string
	Costs             CostModel
	MaintenanceMargin decimal.Decimal // fraction of balance; <= 0 disables liquidation
	IDs               *id.Generator
	Journal           journal.Journal
}

type quoteState int

const (
	quoteNone quoteState = iota
	quoteLive
	quoteStale
	quoteExhausted
)

// Engine executes one session's orders against its current tick and keeps
// the session's positions and ledger.
//
// An Engine is not safe for concurrent use; the owning session serializes
// every call.
type Engine struct {
	cfg    Config
	book   *book
	ledger *journal.Ledger

	tick    market.Tick
	quote   quoteState
	trading bool
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("engine: session id is required")
	}
	if err := cfg.Costs.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if !market.CanConvert(cfg.Instrument, cfg.AccountCurrency) {
		return nil, fmt.Errorf("engine: cannot value %s in %s", cfg.Instrument.Symbol, cfg.AccountCurrency)
	}
	if cfg.IDs == nil {
		cfg.IDs = id.NewGenerator(id.SeedFrom(cfg.SessionID))
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard{}
	}

	return &Engine{
		cfg:    cfg,
		book:   newBook(),
		ledger: journal.NewLedger(cfg.SessionID),
	}, nil
}

// SetTrading opens or closes the engine to new orders.
func (e *Engine) SetTrading(on bool) { e.trading = on }

func (e *Engine) Trading() bool { return e.trading }

func (e *Engine) Ledger() *journal.Ledger { return e.ledger }

func (e *Engine) Instrument() market.Instrument { return e.cfg.Instrument }

// OnTick makes t the current price and runs the maintenance-margin check.
// It returns the liquidation fill when one happened.
func (e *Engine) OnTick(t market.Tick) (*Fill, error) {
	if t.Instrument != e.cfg.Instrument.Symbol {
		return nil, fmt.Errorf("engine: tick for %s delivered to %s session", t.Instrument, e.cfg.Instrument.Symbol)
	}
	e.tick = t
	e.quote = quoteLive

	pos, ok := e.book.openFor(t.Instrument)
	if !ok {
		return nil, nil
	}

	rate, err := market.QuoteToAccountRate(e.cfg.Instrument, e.cfg.AccountCurrency, t)
	if err != nil {
		return nil, err
	}
	unrealized := UnrealizedPL(pos, t, rate)
	if !breachesMaintenance(unrealized, e.ledger.Balance(), e.cfg.MaintenanceMargin) {
		return nil, nil
	}

	costs := e.cfg.Costs.Compute(e.cfg.Instrument, pos.Side.Opposite(), pos.Quantity, t)
	fill, err := e.close(pos, costs, rate, t.Time, journal.StatusLiquidated, ActionLiquidate)
	if err != nil {
		return nil, err
	}
	return &fill, nil
}

// InvalidatePrice drops the current tick after a backward seek. Orders are
// refused until OnTick delivers a realigned price.
func (e *Engine) InvalidatePrice() {
	if e.quote != quoteNone {
		e.quote = quoteStale
	}
}

// MarkExhausted records that virtual time has run past the last tick.
func (e *Engine) MarkExhausted() {
	if e.quote == quoteLive {
		e.quote = quoteExhausted
	}
}

// Quote returns the tick positions are valued at, if any.
func (e *Engine) Quote() (market.Tick, bool) {
	switch e.quote {
	case quoteLive, quoteExhausted:
		return e.tick, true
	default:
		return market.Tick{}, false
	}
}

// Tradable reports whether an order could be priced right now.
func (e *Engine) Tradable() bool {
	return e.quote == quoteLive
}

func (e *Engine) liveTick() (market.Tick, error) {
	switch e.quote {
	case quoteLive:
		return e.tick, nil
	case quoteStale:
		return market.Tick{}, Reject(ReasonNoPriceData, "price cursor not realigned after seek")
	case quoteExhausted:
		return market.Tick{}, Reject(ReasonNoPriceData, "market data exhausted at %s", e.tick.Time.Format(time.RFC3339Nano))
	default:
		return market.Tick{}, Reject(ReasonNoPriceData, "no tick at or before current virtual time")
	}
}

// Submit executes o at the current tick, stamping records with at.
func (e *Engine) Submit(o Order, at time.Time) (Fill, error) {
	in := e.cfg.Instrument

	if !e.trading {
		return Fill{}, Reject(ReasonSessionNotRunning, "session %s is not running", e.cfg.SessionID)
	}
	if !o.Side.Valid() {
		return Fill{}, Reject(ReasonInvalidSide, "side %q", o.Side)
	}
	if !in.Enabled {
		return Fill{}, Reject(ReasonInstrumentDisabled, "%s is disabled", in.Symbol)
	}
	if !o.Quantity.IsPositive() {
		return Fill{}, Reject(ReasonInvalidQuantity, "quantity %s must be positive", o.Quantity)
	}
	tick, err := e.liveTick()
	if err != nil {
		return Fill{}, err
	}

	costs := e.cfg.Costs.Compute(in, o.Side, o.Quantity, tick)
	rate, err := market.QuoteToAccountRate(in, e.cfg.AccountCurrency, tick)
	if err != nil {
		return Fill{}, Reject(ReasonNoPriceData, "%v", err)
	}

	if pos, ok := e.book.openFor(in.Symbol); ok {
		if pos.Side == o.Side {
			return Fill{}, Reject(ReasonPositionOpen, "%s position %s already open on %s", pos.Side, pos.ID, in.Symbol)
		}
		if !o.Quantity.Equal(pos.Quantity) {
			return Fill{}, Reject(ReasonInvalidQuantity, "close quantity %s must equal open quantity %s", o.Quantity, pos.Quantity)
		}
		return e.close(pos, costs, rate, at, journal.StatusClosed, ActionClose)
	}

	return e.open(o, costs, rate, at)
}

func (e *Engine) open(o Order, costs Costs, rate decimal.Decimal, at time.Time) (Fill, error) {
	in := e.cfg.Instrument
	entryCosts := costs.Total().Mul(rate)

	required := TradeMargin(in, o.Quantity, costs.FillPrice, rate)
	available := e.ledger.Balance().Sub(entryCosts)
	if required.GreaterThan(available) {
		return Fill{}, Reject(ReasonInsufficientMargin, "margin %s exceeds available %s", required, available)
	}

	pos := journal.Position{
		ID:          e.cfg.IDs.At(at),
		SessionID:   e.cfg.SessionID,
		Instrument:  in.Symbol,
		Side:        o.Side,
		Quantity:    o.Quantity,
		EntryPrice:  costs.FillPrice,
		ExitPrice:   decimal.Zero,
		Status:      journal.StatusOpen,
		OpenedAt:    at,
		RealizedPnL: decimal.Zero,
		Costs:       entryCosts.Neg(),
	}
	txs := e.rows(at, pos.ID, costRows(costs, rate)...)

	if err := e.commit("open", []journal.Position{pos}, txs, at); err != nil {
		return Fill{}, err
	}

	return Fill{
		Action:       ActionOpen,
		Side:         o.Side,
		Quantity:     o.Quantity,
		Price:        costs.FillPrice,
		Time:         at,
		Costs:        costs,
		RealizedPnL:  decimal.Zero,
		Position:     pos,
		Transactions: txs,
		Balance:      e.ledger.Balance(),
	}, nil
}

func (e *Engine) close(pos journal.Position, costs Costs, rate decimal.Decimal, at time.Time, status journal.PositionStatus, action FillAction) (Fill, error) {
	pnl := GrossPL(pos, costs.FillPrice).Mul(rate)

	closedAt := at
	closed := pos
	closed.Status = status
	closed.ExitPrice = costs.FillPrice
	closed.ClosedAt = &closedAt
	closed.RealizedPnL = pnl
	closed.Costs = pos.Costs.Sub(costs.Total().Mul(rate))

	// exit costs first, then the P/L they belong to
	entries := append(costRows(costs, rate), entry{typ: journal.TxPnL, amount: pnl})
	txs := e.rows(at, pos.ID, entries...)

	if err := e.commit(string(action), []journal.Position{closed}, txs, at); err != nil {
		return Fill{}, err
	}

	return Fill{
		Action:       action,
		Side:         pos.Side.Opposite(),
		Quantity:     pos.Quantity,
		Price:        costs.FillPrice,
		Time:         at,
		Costs:        costs,
		RealizedPnL:  pnl,
		Position:     closed,
		Transactions: txs,
		Balance:      e.ledger.Balance(),
	}, nil
}

// Fund books a cash movement: DEPOSIT and WITHDRAWAL take a positive
// amount, ADJUSTMENT a signed one.
func (e *Engine) Fund(typ journal.TxType, amount decimal.Decimal, at time.Time, note string) (journal.Transaction, error) {
	switch typ {
	case journal.TxDeposit:
		if !amount.IsPositive() {
			return journal.Transaction{}, Reject(ReasonInvalidQuantity, "deposit %s must be positive", amount)
		}
	case journal.TxWithdrawal:
		if !amount.IsPositive() {
			return journal.Transaction{}, Reject(ReasonInvalidQuantity, "withdrawal %s must be positive", amount)
		}
		free := e.Equity().Sub(e.MarginUsed())
		if amount.GreaterThan(free) {
			return journal.Transaction{}, Reject(ReasonInsufficientFunds, "withdrawal %s exceeds free funds %s", amount, free)
		}
		amount = amount.Neg()
	case journal.TxAdjustment:
		if amount.IsZero() {
			return journal.Transaction{}, Reject(ReasonInvalidQuantity, "adjustment must not be zero")
		}
	default:
		return journal.Transaction{}, fmt.Errorf("fund: unsupported transaction type %s", typ)
	}

	txs := e.rows(at, "", entry{typ: typ, amount: amount, note: note})
	if err := e.commit("fund", nil, txs, at); err != nil {
		return journal.Transaction{}, err
	}
	return txs[0], nil
}

type entry struct {
	typ    journal.TxType
	amount decimal.Decimal
	note   string
}

func costRows(c Costs, rate decimal.Decimal) []entry {
	return []entry{
		{typ: journal.TxSpread, amount: c.Spread.Mul(rate).Neg()},
		{typ: journal.TxSlippage, amount: c.Slippage.Mul(rate).Neg()},
		{typ: journal.TxCommission, amount: c.Commission.Mul(rate).Neg()},
	}
}

func (e *Engine) rows(at time.Time, positionID string, entries ...entry) []journal.Transaction {
	seq := e.ledger.NextSeq()
	out := make([]journal.Transaction, 0, len(entries))
	for i, en := range entries {
		out = append(out, journal.Transaction{
			ID:         e.cfg.IDs.At(at),
			SessionID:  e.cfg.SessionID,
			Seq:        seq + int64(i),
			Type:       en.typ,
			Amount:     en.amount,
			CreatedAt:  at,
			PositionID: positionID,
			Note:       en.note,
		})
	}
	return out
}

// commit validates a planned mutation, journals it and only then applies
// it in memory. Any failure leaves the engine untouched.
func (e *Engine) commit(op string, positions []journal.Position, txs []journal.Transaction, at time.Time) error {
	if err := e.check(op, positions, txs); err != nil {
		return err
	}

	balance := e.ledger.Balance().Add(journal.Sum(txs))
	snap := e.snapshotAfter(positions, balance, at)

	err := e.cfg.Journal.Record(journal.Batch{
		Positions:    positions,
		Transactions: txs,
		Equity:       &snap,
	})
	if err != nil {
		return fmt.Errorf("%s: journal: %w", op, err)
	}

	if err := e.ledger.Append(txs...); err != nil {
		return invariant(op, "ledger rejected validated rows: %v", err)
	}
	for _, p := range positions {
		e.book.apply(p)
	}
	return nil
}

func (e *Engine) check(op string, positions []journal.Position, txs []journal.Transaction) error {
	for _, p := range positions {
		if !p.Quantity.IsPositive() {
			return invariant(op, "position %s quantity %s", p.ID, p.Quantity)
		}
		if !p.EntryPrice.IsPositive() {
			return invariant(op, "position %s entry price %s", p.ID, p.EntryPrice)
		}
		if !p.Side.Valid() || !p.Status.Valid() {
			return invariant(op, "position %s has side %q status %q", p.ID, p.Side, p.Status)
		}
		if p.Costs.IsPositive() {
			return invariant(op, "position %s costs %s", p.ID, p.Costs)
		}

		current, open := e.book.openFor(p.Instrument)
		switch {
		case open && current.ID == p.ID:
			if !p.Status.Terminal() || p.ClosedAt == nil {
				return invariant(op, "position %s can only leave OPEN by closing", p.ID)
			}
		case open:
			return invariant(op, "second open position %s on %s", p.ID, p.Instrument)
		default:
			if p.Status != journal.StatusOpen {
				return invariant(op, "position %s is new but %s", p.ID, p.Status)
			}
			for _, old := range e.book.positions {
				if old.ID == p.ID {
					return invariant(op, "position %s is final", p.ID)
				}
			}
		}
	}

	if err := e.ledger.Validate(txs...); err != nil {
		return invariant(op, "%v", err)
	}
	return nil
}

// snapshotAfter values the account as it will be once positions apply.
func (e *Engine) snapshotAfter(positions []journal.Position, balance decimal.Decimal, at time.Time) journal.EquitySnapshot {
	open := map[string]journal.Position{}
	for _, p := range e.book.openPositions() {
		open[p.ID] = p
	}
	for _, p := range positions {
		if p.Status == journal.StatusOpen {
			open[p.ID] = p
		} else {
			delete(open, p.ID)
		}
	}

	equity, margin := balance, decimal.Zero
	if tick, ok := e.Quote(); ok {
		if rate, err := market.QuoteToAccountRate(e.cfg.Instrument, e.cfg.AccountCurrency, tick); err == nil {
			for _, p := range open {
				equity = equity.Add(UnrealizedPL(p, tick, rate))
				margin = margin.Add(TradeMargin(e.cfg.Instrument, p.Quantity, tick.Mid(), rate))
			}
		}
	}

	return journal.EquitySnapshot{
		SessionID:  e.cfg.SessionID,
		Time:       at,
		Balance:    balance,
		Equity:     equity,
		MarginUsed: margin,
	}
}

// Balance is the sum of the ledger.
func (e *Engine) Balance() decimal.Decimal {
	return e.ledger.Balance()
}

// Unrealized values open positions at the current tick.
func (e *Engine) Unrealized() decimal.Decimal {
	tick, ok := e.Quote()
	if !ok {
		return decimal.Zero
	}
	rate, err := market.QuoteToAccountRate(e.cfg.Instrument, e.cfg.AccountCurrency, tick)
	if err != nil {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range e.book.openPositions() {
		sum = sum.Add(UnrealizedPL(p, tick, rate))
	}
	return sum
}

func (e *Engine) Equity() decimal.Decimal {
	return e.ledger.Balance().Add(e.Unrealized())
}

func (e *Engine) MarginUsed() decimal.Decimal {
	tick, ok := e.Quote()
	if !ok {
		return decimal.Zero
	}
	rate, err := market.QuoteToAccountRate(e.cfg.Instrument, e.cfg.AccountCurrency, tick)
	if err != nil {
		return decimal.Zero
	}
	used := decimal.Zero
	for _, p := range e.book.openPositions() {
		used = used.Add(TradeMargin(e.cfg.Instrument, p.Quantity, tick.Mid(), rate))
	}
	return used
}

// OpenPositions returns copies of the OPEN positions.
func (e *Engine) OpenPositions() []journal.Position {
	return e.book.openPositions()
}

// Positions returns copies of every position in open order.
func (e *Engine) Positions() []journal.Position {
	return e.book.all()
}
