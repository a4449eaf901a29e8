package session

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/market/data"
	"github.com/rustyeddy/tradesim/replay"
	"github.com/rustyeddy/tradesim/sim"
)

type reply struct {
	value any
	err   error
}

type command struct {
	op    string
	fn    func(r *runner) (any, error)
	order *sim.Order
	reply chan reply
}

type pendingOrder struct {
	order    sim.Order
	reply    chan reply
	deadline time.Time
}

// runner owns everything mutable about one session. Only its loop
// goroutine touches the fields below snap.
type runner struct {
	log     *zap.Logger
	wall    replay.WallClock
	opts    Options
	mailbox chan command
	quit    chan struct{}
	done    chan struct{}
	snap    atomic.Pointer[Snapshot]

	sess    Session
	clock   *replay.Clock
	engine  *sim.Engine
	source  *data.Source
	series  *data.Series
	cursor  *data.Cursor
	pending []pendingOrder
}

func (r *runner) loop() {
	defer close(r.done)

	var ticks <-chan time.Time
	if r.opts.TickInterval > 0 {
		t := time.NewTicker(r.opts.TickInterval)
		defer t.Stop()
		ticks = t.C
	}

	for {
		select {
		case <-r.quit:
			r.failPending("session shut down")
			r.drain()
			return
		case cmd := <-r.mailbox:
			r.handle(cmd)
		case <-ticks:
			r.step()
			r.publish()
		}
	}
}

// drain refuses whatever is still queued at shutdown.
func (r *runner) drain() {
	for {
		select {
		case cmd := <-r.mailbox:
			cmd.reply <- reply{err: sim.Reject(sim.ReasonSessionNotRunning, "session %s shut down", r.sess.ID)}
		default:
			return
		}
	}
}

func (r *runner) handle(cmd command) {
	if cmd.order != nil {
		r.submit(*cmd.order, cmd.reply)
		r.publish()
		return
	}

	v, err := cmd.fn(r)
	if err != nil {
		r.logError(cmd.op, err)
	}
	r.publish()
	cmd.reply <- reply{value: v, err: err}
}

func (r *runner) logError(op string, err error) {
	var inv *sim.InvariantError
	switch {
	case errors.As(err, &inv):
		r.log.Error("invariant violated", zap.String("op", op), zap.Error(err))
	case errors.Is(err, sim.ErrSessionBusy):
	default:
		if _, ok := sim.ReasonOf(err); ok {
			r.log.Debug("rejected", zap.String("op", op), zap.Error(err))
			return
		}
		r.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
}

// step advances the session to the clock's current virtual time and
// retries deferred orders.
func (r *runner) step() {
	if r.sess.Status != StatusRunning {
		return
	}
	r.sync()
	r.processPending()
}

// sync delivers every tick up to virtual now.
func (r *runner) sync() {
	if r.cursor == nil {
		return
	}
	now := r.clock.Now()
	for _, t := range r.cursor.AdvanceTo(now) {
		r.deliver(t)
	}
	if r.cursor.Done() {
		if last, ok := r.series.Last(); ok && now.After(last.Time) {
			r.engine.MarkExhausted()
		}
	}
}

func (r *runner) deliver(t market.Tick) {
	fill, err := r.engine.OnTick(t)
	if err != nil {
		r.logError("tick", err)
		return
	}
	if fill != nil {
		r.log.Warn("position liquidated",
			zap.String("position", fill.Position.ID),
			zap.Stringer("price", fill.Price),
			zap.Stringer("realized_pnl", fill.RealizedPnL),
			zap.Time("at", fill.Time),
		)
	}
}

// realign points the cursor at ts and makes the latest tick at or before
// ts current.
func (r *runner) realign(ts time.Time) error {
	cursor, err := r.source.Seek(r.sess.Instrument, ts)
	if err != nil {
		return sim.Reject(sim.ReasonNoPriceData, "%v", err)
	}
	cursor.AdvanceTo(ts)
	r.cursor = cursor

	if t, ok := r.source.LastAt(r.sess.Instrument, ts); ok {
		r.deliver(t)
	}
	r.sync()
	return nil
}

func (r *runner) submit(o sim.Order, ch chan reply) {
	if r.sess.Status != StatusRunning {
		err := sim.Reject(sim.ReasonSessionNotRunning, "session %s is %s", r.sess.ID, r.sess.Status)
		r.logError("order", err)
		ch <- reply{err: err}
		return
	}

	r.sync()
	if !r.ready(o) {
		if r.opts.OrderWait > 0 {
			r.pending = append(r.pending, pendingOrder{
				order:    o,
				reply:    ch,
				deadline: r.wall.Now().Add(r.opts.OrderWait),
			})
			r.log.Debug("order deferred", zap.String("side", string(o.Side)), zap.Stringer("quantity", o.Quantity))
			return
		}
		if o.RequestedAt != nil && r.engine.Tradable() {
			err := sim.Reject(sim.ReasonNoPriceData, "requested time %s not reached", o.RequestedAt.Format(time.RFC3339Nano))
			ch <- reply{err: err}
			return
		}
	}
	r.execute(o, ch)
}

func (r *runner) ready(o sim.Order) bool {
	if !r.engine.Tradable() {
		return false
	}
	return o.RequestedAt == nil || !o.RequestedAt.After(r.clock.Now())
}

func (r *runner) execute(o sim.Order, ch chan reply) {
	fill, err := r.engine.Submit(o, r.clock.Now())
	if err != nil {
		r.logError("order", err)
		ch <- reply{err: err}
		return
	}
	r.log.Debug("order filled",
		zap.String("action", string(fill.Action)),
		zap.String("position", fill.Position.ID),
		zap.Stringer("price", fill.Price),
		zap.Stringer("balance", fill.Balance),
	)
	ch <- reply{value: fill}
}

func (r *runner) processPending() {
	if len(r.pending) == 0 {
		return
	}
	wallNow := r.wall.Now()
	keep := r.pending[:0]
	for _, p := range r.pending {
		switch {
		case r.ready(p.order):
			r.execute(p.order, p.reply)
		case wallNow.After(p.deadline):
			p.reply <- reply{err: sim.Reject(sim.ReasonNoPriceData, "no tick within %s", r.opts.OrderWait)}
		default:
			keep = append(keep, p)
		}
	}
	r.pending = keep
}

func (r *runner) failPending(why string) {
	for _, p := range r.pending {
		p.reply <- reply{err: sim.Reject(sim.ReasonSessionNotRunning, "%s", why)}
	}
	r.pending = nil
}

func (r *runner) start() (any, error) {
	if err := checkTransition(r.sess.Status, StatusRunning); err != nil {
		return nil, err
	}
	if err := r.clock.Start(); err != nil {
		return nil, err
	}
	if err := r.realign(r.sess.StartTime); err != nil {
		return nil, err
	}
	r.engine.SetTrading(true)
	return r.moveTo(StatusRunning), nil
}

func (r *runner) pause() (any, error) {
	if err := checkTransition(r.sess.Status, StatusPaused); err != nil {
		return nil, err
	}
	r.sync()
	if err := r.clock.Pause(); err != nil {
		return nil, err
	}
	r.engine.SetTrading(false)
	r.failPending("session paused")
	return r.moveTo(StatusPaused), nil
}

func (r *runner) resume() (any, error) {
	if err := checkTransition(r.sess.Status, StatusRunning); err != nil {
		return nil, err
	}
	if err := r.clock.Resume(); err != nil {
		return nil, err
	}
	r.engine.SetTrading(true)
	return r.moveTo(StatusRunning), nil
}

func (r *runner) stop() (any, error) {
	if err := checkTransition(r.sess.Status, StatusStopped); err != nil {
		return nil, err
	}
	r.sync()
	r.clock.Halt()
	r.engine.SetTrading(false)
	r.failPending("session stopped")
	return r.moveTo(StatusStopped), nil
}

func (r *runner) archive() (any, error) {
	if err := checkTransition(r.sess.Status, StatusArchived); err != nil {
		return nil, err
	}
	return r.moveTo(StatusArchived), nil
}

func (r *runner) moveTo(s Status) Session {
	r.log.Info("session transition", zap.String("from", string(r.sess.Status)), zap.String("to", string(s)))
	r.sess.Status = s
	return r.sess
}

func (r *runner) seek(ts time.Time) (any, error) {
	switch r.sess.Status {
	case StatusRunning, StatusPaused:
	default:
		return nil, sim.Reject(sim.ReasonInvalidTransition, "cannot seek a %s session", r.sess.Status)
	}
	if first, ok := r.series.First(); !ok || ts.Before(first.Time) {
		return nil, sim.Reject(sim.ReasonNoPriceData, "%s has no data at %s", r.sess.Instrument, ts.Format(time.RFC3339Nano))
	}

	r.sync()
	backward, err := r.clock.Seek(ts)
	if errors.Is(err, replay.ErrBackwardSeek) {
		return nil, sim.Reject(sim.ReasonInvalidTransition, "%v", err)
	}
	if err != nil {
		return nil, err
	}

	if backward {
		r.engine.InvalidatePrice()
		if err := r.realign(ts); err != nil {
			return nil, err
		}
	} else {
		r.sync()
	}
	r.log.Info("session seek", zap.Time("to", ts), zap.Bool("backward", backward))
	return r.sess, nil
}

func (r *runner) setSpeed(speed float64) (any, error) {
	if !r.sess.Status.Live() {
		return nil, sim.Reject(sim.ReasonInvalidTransition, "cannot change speed of a %s session", r.sess.Status)
	}
	if !replay.ValidSpeed(speed) {
		return nil, sim.Reject(sim.ReasonInvalidArgument, "speed %v must be finite and not negative", speed)
	}
	r.sync()
	if err := r.clock.SetSpeed(speed); err != nil {
		return nil, err
	}
	r.sess.Speed = speed
	return r.sess, nil
}

func (r *runner) fund(typ journal.TxType, amount decimal.Decimal, note string) (any, error) {
	if !r.sess.Status.Live() {
		return nil, sim.Reject(sim.ReasonSessionNotRunning, "session %s is %s", r.sess.ID, r.sess.Status)
	}
	r.sync()
	tx, err := r.engine.Fund(typ, amount, r.clock.Now(), note)
	if err != nil {
		return nil, err
	}
	r.log.Info("funds booked", zap.String("type", string(typ)), zap.Stringer("amount", tx.Amount))
	return tx, nil
}

func (r *runner) advance() (any, error) {
	r.step()
	return r.clock.Now(), nil
}

func (r *runner) publish() {
	s := &Snapshot{
		Session:       r.sess,
		VirtualTime:   r.clock.Now(),
		Tradable:      r.engine.Tradable() && r.engine.Trading(),
		OpenPositions: r.engine.OpenPositions(),
		Balance:       r.engine.Balance(),
		Equity:        r.engine.Equity(),
		Unrealized:    r.engine.Unrealized(),
		MarginUsed:    r.engine.MarginUsed(),
		positions:     r.engine.Positions(),
		ledger:        r.engine.Ledger().All(),
	}
	if t, ok := r.engine.Quote(); ok {
		s.Price = &t
	}
	r.snap.Store(s)
}
