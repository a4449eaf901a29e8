package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/replay"
	"github.com/rustyeddy/tradesim/sim"
)

// Outcome is what one scripted event produced. Rejections are outcomes,
// not failures.
type Outcome struct {
	Event       replay.Event         `json:"event"`
	Fill        *sim.Fill            `json:"fill,omitempty"`
	Transaction *journal.Transaction `json:"transaction,omitempty"`
	Session     *Session             `json:"session,omitempty"`
	Err         error                `json:"-"`
}

// Player drives one session through a script. The manager must run on
// the Player's ManualWall with no tick interval, so virtual time moves
// only when the Player says so.
type Player struct {
	m         *Manager
	wall      *replay.ManualWall
	sessionID string
}

func NewPlayer(m *Manager, wall *replay.ManualWall, sessionID string) *Player {
	return &Player{m: m, wall: wall, sessionID: sessionID}
}

// AdvanceTo moves wall time until the session reaches virtual time ts and
// delivers the ticks in between. A paused or frozen session stays put.
func (p *Player) AdvanceTo(ctx context.Context, ts time.Time) error {
	now, err := p.m.Advance(ctx, p.sessionID)
	if err != nil {
		return err
	}
	if !ts.After(now) {
		return nil
	}

	sess, err := p.m.Get(p.sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusRunning || sess.Speed == 0 {
		return nil
	}

	p.wall.Advance(time.Duration(math.Ceil(float64(ts.Sub(now)) / sess.Speed)))
	_, err = p.m.Advance(ctx, p.sessionID)
	return err
}

// Play runs events in order. It stops at the first error that is not a
// rejection.
func (p *Player) Play(ctx context.Context, events []replay.Event) ([]Outcome, error) {
	out := make([]Outcome, 0, len(events))
	for _, ev := range events {
		if err := p.AdvanceTo(ctx, ev.Time); err != nil {
			return out, err
		}

		o := p.apply(ctx, ev)
		out = append(out, o)
		if o.Err != nil {
			if _, rejected := sim.ReasonOf(o.Err); !rejected {
				return out, fmt.Errorf("%s at %s: %w", ev.Action, ev.Time.Format(time.RFC3339Nano), o.Err)
			}
		}
	}
	return out, nil
}

func (p *Player) apply(ctx context.Context, ev replay.Event) Outcome {
	o := Outcome{Event: ev}
	id := p.sessionID

	session := func(s Session, err error) {
		if err == nil {
			o.Session = &s
		}
		o.Err = err
	}
	funds := func(tx journal.Transaction, err error) {
		if err == nil {
			o.Transaction = &tx
		}
		o.Err = err
	}

	switch ev.Action {
	case replay.ActionBuy, replay.ActionSell:
		side := market.Buy
		if ev.Action == replay.ActionSell {
			side = market.Sell
		}
		fill, err := p.m.SubmitOrder(ctx, id, sim.Order{Side: side, Quantity: ev.Amount})
		if err == nil {
			o.Fill = &fill
		}
		o.Err = err
	case replay.ActionPause:
		session(p.m.Pause(ctx, id))
	case replay.ActionResume:
		session(p.m.Resume(ctx, id))
	case replay.ActionStop:
		session(p.m.Stop(ctx, id))
	case replay.ActionSeek:
		session(p.m.Seek(ctx, id, ev.To))
	case replay.ActionSpeed:
		session(p.m.SetSpeed(ctx, id, ev.Speed))
	case replay.ActionDeposit:
		funds(p.m.Deposit(ctx, id, ev.Amount))
	case replay.ActionWithdraw:
		funds(p.m.Withdraw(ctx, id, ev.Amount))
	case replay.ActionAdjust:
		funds(p.m.Adjust(ctx, id, ev.Amount, ev.Note))
	default:
		o.Err = sim.Reject(sim.ReasonInvalidArgument, "unknown action %q", ev.Action)
	}
	return o
}
