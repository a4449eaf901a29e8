package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/market/data"
	"github.com/rustyeddy/tradesim/pkg/id"
	"github.com/rustyeddy/tradesim/replay"
	"github.com/rustyeddy/tradesim/sim"
)

var ErrManagerClosed = errors.New("session manager closed")

type Options struct {
	Logger *zap.Logger
	Wall   replay.WallClock

	// TickInterval is the wall time between clock advances. Zero leaves
	// advancing to explicit Advance calls.
	TickInterval time.Duration
	// OrderWait bounds how long an order waits for a usable tick. Zero
	// rejects immediately.
	OrderWait time.Duration
	Mailbox   int

	AccountCurrency      string
	Costs                sim.CostModel
	MaintenanceMargin    decimal.Decimal
	Journal              journal.Journal
	SnapshotTransactions int
}

// Manager is the registry of sessions. The instrument catalog and market
// data are shared read-only; everything else belongs to one session.
type Manager struct {
	catalog *market.Catalog
	source  *data.Source
	opts    Options
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*runner
	order    []string
	closed   bool
}

func NewManager(catalog *market.Catalog, source *data.Source, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Wall == nil {
		opts.Wall = replay.SystemClock{}
	}
	if opts.Mailbox <= 0 {
		opts.Mailbox = 64
	}
	if opts.AccountCurrency == "" {
		opts.AccountCurrency = "USD"
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard{}
	}
	if opts.SnapshotTransactions <= 0 {
		opts.SnapshotTransactions = 20
	}
	return &Manager{
		catalog:  catalog,
		source:   source,
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]*runner),
	}
}

// Create registers a new CREATED session and books its initial deposit
// at the start timestamp.
func (m *Manager) Create(ctx context.Context, p Params) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	in, err := m.catalog.Lookup(p.Instrument)
	if err != nil {
		return Session{}, err
	}
	series, ok := m.source.Series(in.Symbol)
	if !ok {
		return Session{}, fmt.Errorf("%w: no series for %s", data.ErrNoData, in.Symbol)
	}
	first, ok := series.First()
	if !ok {
		return Session{}, fmt.Errorf("%w: empty series for %s", data.ErrNoData, in.Symbol)
	}
	if p.StartTime.IsZero() {
		p.StartTime = first.Time
	}
	if p.StartTime.Before(first.Time) {
		return Session{}, fmt.Errorf("%w: %s starts at %s", data.ErrNoData, in.Symbol, first.Time.Format(time.RFC3339Nano))
	}
	if !replay.ValidSpeed(p.Speed) {
		return Session{}, sim.Reject(sim.ReasonInvalidArgument, "speed %v must be finite and not negative", p.Speed)
	}
	if p.InitialBalance.IsNegative() {
		return Session{}, sim.Reject(sim.ReasonInvalidArgument, "initial balance %s must not be negative", p.InitialBalance)
	}
	if p.AccountCurrency == "" {
		p.AccountCurrency = m.opts.AccountCurrency
	}
	if p.ID == "" {
		p.ID = id.New()
	}

	clock, err := replay.NewClock(m.opts.Wall, p.StartTime, p.Speed)
	if err != nil {
		return Session{}, err
	}

	// a session given the same id and inputs reproduces the same row ids
	seed := id.SeedFrom(p.ID, in.Symbol, p.StartTime.UTC().Format(time.RFC3339Nano), p.InitialBalance.String())
	engine, err := sim.NewEngine(sim.Config{
		SessionID:         p.ID,
		Instrument:        in,
		AccountCurrency:   p.AccountCurrency,
		Costs:             m.opts.Costs,
		MaintenanceMargin: m.opts.MaintenanceMargin,
		IDs:               id.NewGenerator(seed),
		Journal:           m.opts.Journal,
	})
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:              p.ID,
		Name:            p.Name,
		Owner:           p.Owner,
		Instrument:      in.Symbol,
		AccountCurrency: p.AccountCurrency,
		StartTime:       p.StartTime,
		Speed:           p.Speed,
		InitialBalance:  p.InitialBalance,
		Status:          StatusCreated,
		CreatedAt:       m.opts.Wall.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Session{}, ErrManagerClosed
	}
	if _, dup := m.sessions[sess.ID]; dup {
		return Session{}, sim.Reject(sim.ReasonInvalidArgument, "session %s already exists", sess.ID)
	}

	if p.InitialBalance.IsPositive() {
		if _, err := engine.Fund(journal.TxDeposit, p.InitialBalance, p.StartTime, "initial deposit"); err != nil {
			return Session{}, err
		}
	}

	r := &runner{
		log:     m.log.With(zap.String("session", sess.ID)),
		wall:    m.opts.Wall,
		opts:    m.opts,
		mailbox: make(chan command, m.opts.Mailbox),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		sess:    sess,
		clock:   clock,
		engine:  engine,
		source:  m.source,
		series:  series,
	}
	r.publish()

	m.sessions[sess.ID] = r
	m.order = append(m.order, sess.ID)
	go r.loop()

	r.log.Info("session created",
		zap.String("owner", sess.Owner),
		zap.String("instrument", sess.Instrument),
		zap.Time("start", sess.StartTime),
		zap.Float64("speed", sess.Speed),
	)
	return sess, nil
}

func (m *Manager) runner(sessionID string) (*runner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	r, ok := m.sessions[sessionID]
	if !ok {
		return nil, sim.Reject(sim.ReasonSessionNotFound, "session %s", sessionID)
	}
	return r, nil
}

// send queues cmd without blocking. A full mailbox is SessionBusy. Once
// queued, the command runs even if ctx ends first.
func (m *Manager) send(ctx context.Context, sessionID string, cmd command) (any, error) {
	r, err := m.runner(sessionID)
	if err != nil {
		return nil, err
	}
	cmd.reply = make(chan reply, 1)

	select {
	case <-r.done:
		return nil, sim.Reject(sim.ReasonSessionNotRunning, "session %s shut down", sessionID)
	default:
	}

	select {
	case r.mailbox <- cmd:
	default:
		return nil, sim.Reject(sim.ReasonSessionBusy, "session %s has %d queued commands", sessionID, cap(r.mailbox))
	}

	select {
	case rep := <-cmd.reply:
		return rep.value, rep.err
	case <-r.done:
		select {
		case rep := <-cmd.reply:
			return rep.value, rep.err
		default:
			return nil, sim.Reject(sim.ReasonSessionNotRunning, "session %s shut down", sessionID)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) control(ctx context.Context, sessionID, op string, fn func(r *runner) (any, error)) (Session, error) {
	v, err := m.send(ctx, sessionID, command{op: op, fn: fn})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

func (m *Manager) Start(ctx context.Context, sessionID string) (Session, error) {
	return m.control(ctx, sessionID, "start", (*runner).start)
}

func (m *Manager) Pause(ctx context.Context, sessionID string) (Session, error) {
	return m.control(ctx, sessionID, "pause", (*runner).pause)
}

func (m *Manager) Resume(ctx context.Context, sessionID string) (Session, error) {
	return m.control(ctx, sessionID, "resume", (*runner).resume)
}

// Stop halts the clock for good. Open positions stay open.
func (m *Manager) Stop(ctx context.Context, sessionID string) (Session, error) {
	return m.control(ctx, sessionID, "stop", (*runner).stop)
}

func (m *Manager) Archive(ctx context.Context, sessionID string) (Session, error) {
	return m.control(ctx, sessionID, "archive", (*runner).archive)
}

// Seek moves virtual time to ts. Going backward needs a PAUSED session.
func (m *Manager) Seek(ctx context.Context, sessionID string, ts time.Time) (Session, error) {
	return m.control(ctx, sessionID, "seek", func(r *runner) (any, error) { return r.seek(ts) })
}

func (m *Manager) SetSpeed(ctx context.Context, sessionID string, speed float64) (Session, error) {
	return m.control(ctx, sessionID, "speed", func(r *runner) (any, error) { return r.setSpeed(speed) })
}

// SubmitOrder executes o at the session's current tick. It may wait, up
// to OrderWait, for a usable tick.
func (m *Manager) SubmitOrder(ctx context.Context, sessionID string, o sim.Order) (sim.Fill, error) {
	v, err := m.send(ctx, sessionID, command{op: "order", order: &o})
	if err != nil {
		return sim.Fill{}, err
	}
	return v.(sim.Fill), nil
}

func (m *Manager) fund(ctx context.Context, sessionID string, typ journal.TxType, amount decimal.Decimal, note string) (journal.Transaction, error) {
	v, err := m.send(ctx, sessionID, command{op: "fund", fn: func(r *runner) (any, error) {
		return r.fund(typ, amount, note)
	}})
	if err != nil {
		return journal.Transaction{}, err
	}
	return v.(journal.Transaction), nil
}

func (m *Manager) Deposit(ctx context.Context, sessionID string, amount decimal.Decimal) (journal.Transaction, error) {
	return m.fund(ctx, sessionID, journal.TxDeposit, amount, "")
}

func (m *Manager) Withdraw(ctx context.Context, sessionID string, amount decimal.Decimal) (journal.Transaction, error) {
	return m.fund(ctx, sessionID, journal.TxWithdrawal, amount, "")
}

// Adjust books a signed correction. Past rows are never edited.
func (m *Manager) Adjust(ctx context.Context, sessionID string, amount decimal.Decimal, note string) (journal.Transaction, error) {
	return m.fund(ctx, sessionID, journal.TxAdjustment, amount, note)
}

// Advance moves the session to the clock's current virtual time now,
// without waiting for the next tick interval.
func (m *Manager) Advance(ctx context.Context, sessionID string) (time.Time, error) {
	v, err := m.send(ctx, sessionID, command{op: "advance", fn: (*runner).advance})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

// Snapshot returns the latest published view with the last n
// transactions; n <= 0 uses the configured default.
func (m *Manager) Snapshot(sessionID string, n int) (Snapshot, error) {
	r, err := m.runner(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if n <= 0 {
		n = m.opts.SnapshotTransactions
	}
	s := *r.snap.Load()
	s.Transactions = append([]journal.Transaction(nil), journal.Tail(s.ledger, n)...)
	return s, nil
}

func (m *Manager) Get(sessionID string) (Session, error) {
	r, err := m.runner(sessionID)
	if err != nil {
		return Session{}, err
	}
	return r.snap.Load().Session, nil
}

// Positions returns every position of the session in open order.
func (m *Manager) Positions(sessionID string) ([]journal.Position, error) {
	r, err := m.runner(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]journal.Position(nil), r.snap.Load().positions...), nil
}

// Transactions returns the session's full ledger in sequence order.
func (m *Manager) Transactions(sessionID string) ([]journal.Transaction, error) {
	r, err := m.runner(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]journal.Transaction(nil), r.snap.Load().ledger...), nil
}

// List returns sessions in creation order.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.order))
	for _, sid := range m.order {
		out = append(out, m.sessions[sid].snap.Load().Session)
	}
	return out
}

func (m *Manager) Catalog() *market.Catalog { return m.catalog }

// Source is the shared tick history sessions replay from.
func (m *Manager) Source() *data.Source { return m.source }

// Close stops every session goroutine. Queued commands are refused and
// deferred orders fail with SessionNotRunning.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	runners := make([]*runner, 0, len(m.sessions))
	for _, r := range m.sessions {
		runners = append(runners, r)
	}
	m.mu.Unlock()

	for _, r := range runners {
		close(r.quit)
	}
	for _, r := range runners {
		<-r.done
	}
	m.log.Info("session manager closed", zap.Int("sessions", len(runners)))
	return nil
}
