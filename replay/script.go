package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is one scripted step of a headless replay.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionPause    Action = "PAUSE"
	ActionResume   Action = "RESUME"
	ActionSeek     Action = "SEEK"
	ActionSpeed    Action = "SPEED"
	ActionDeposit  Action = "DEPOSIT"
	ActionWithdraw Action = "WITHDRAW"
	ActionAdjust   Action = "ADJUST"
	ActionStop     Action = "STOP"
)

// Event is a scripted action due at a virtual time.
type Event struct {
	Time   time.Time
	Action Action

	Amount decimal.Decimal // quantity for BUY/SELL, cash for DEPOSIT/WITHDRAW/ADJUST
	Speed  float64         // SPEED
	To     time.Time       // SEEK target
	Note   string          // ADJUST reason
}

// LoadScript reads a replay script file.
func LoadScript(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := ParseScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ParseScript reads rows of
//
//	time,action,arg1,arg2
//
// Actions (case-insensitive):
//
//	BUY|SELL:        arg1=quantity
//	PAUSE|RESUME|STOP
//	SEEK:            arg1=target time (RFC3339)
//	SPEED:           arg1=multiplier
//	DEPOSIT|WITHDRAW: arg1=amount
//	ADJUST:          arg1=signed amount  arg2=note (optional)
//
// Rows must be in non-decreasing time order. A header row starting with
// "time" and rows starting with '#' are skipped.
func ParseScript(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	var (
		events []Event
		line   int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}

		ev, err := parseEvent(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(events); n > 0 && ev.Time.Before(events[n-1].Time) {
			return nil, fmt.Errorf("line %d: event at %s is before previous event", line, row[0])
		}
		events = append(events, ev)
	}
}

func parseEvent(row []string) (Event, error) {
	if len(row) < 2 {
		return Event{}, fmt.Errorf("bad row (need time,action): %v", row)
	}
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return Event{}, fmt.Errorf("bad time %q: %w", row[0], err)
	}
	ev := Event{Time: ts.UTC(), Action: Action(strings.ToUpper(row[1]))}
	args := row[2:]

	switch ev.Action {
	case ActionBuy, ActionSell, ActionDeposit, ActionWithdraw:
		ev.Amount, err = positiveArg(args)
		if err != nil {
			return Event{}, fmt.Errorf("%s: %w", ev.Action, err)
		}

	case ActionAdjust:
		if len(args) < 1 || args[0] == "" {
			return Event{}, fmt.Errorf("ADJUST: need arg1=amount")
		}
		ev.Amount, err = decimal.NewFromString(args[0])
		if err != nil {
			return Event{}, fmt.Errorf("ADJUST: bad amount %q: %w", args[0], err)
		}
		if len(args) >= 2 {
			ev.Note = args[1]
		}

	case ActionSeek:
		if len(args) < 1 {
			return Event{}, fmt.Errorf("SEEK: need arg1=time")
		}
		to, err := time.Parse(time.RFC3339Nano, args[0])
		if err != nil {
			return Event{}, fmt.Errorf("SEEK: bad time %q: %w", args[0], err)
		}
		ev.To = to.UTC()

	case ActionSpeed:
		if len(args) < 1 {
			return Event{}, fmt.Errorf("SPEED: need arg1=multiplier")
		}
		ev.Speed, err = strconv.ParseFloat(args[0], 64)
		if err != nil || !ValidSpeed(ev.Speed) {
			return Event{}, fmt.Errorf("SPEED: bad multiplier %q", args[0])
		}

	case ActionPause, ActionResume, ActionStop:

	default:
		return Event{}, fmt.Errorf("unknown action %q", row[1])
	}
	return ev, nil
}

func positiveArg(args []string) (decimal.Decimal, error) {
	if len(args) < 1 || args[0] == "" {
		return decimal.Zero, fmt.Errorf("need arg1=amount")
	}
	v, err := decimal.NewFromString(args[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %w", args[0], err)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return v, nil
}
