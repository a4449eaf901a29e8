package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/config"
	"github.com/rustyeddy/tradesim/replay"
	"github.com/rustyeddy/tradesim/session"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Play a scripted session against recorded ticks",
	Long: `Replay creates one session on a manual clock and plays a script of
time,action,arg1,arg2 rows. Virtual time moves to each row's timestamp
before the action runs, so the same files always produce the same journal.

Actions: BUY qty, SELL qty, PAUSE, RESUME, SEEK time, SPEED x,
DEPOSIT amount, WITHDRAW amount, ADJUST amount note, STOP.

Example:
  tradesim replay --ticks data/eurusd.csv --script orders.csv --db replay.sqlite`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

var (
	rpTicks      string
	rpFormat     string
	rpScript     string
	rpSession    string
	rpInstrument string
	rpStart      string
	rpSpeed      float64
	rpBalance    float64
)

// replays never read the real clock
var replayEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&rpTicks, "ticks", "t", "", "tick file (replaces configured data)")
	replayCmd.Flags().StringVar(&rpFormat, "format", "csv", "tick file format: csv|parquet")
	replayCmd.Flags().StringVarP(&rpScript, "script", "s", "", "replay script CSV (required)")
	replayCmd.Flags().StringVar(&rpSession, "session", "replay", "session id")
	replayCmd.Flags().StringVarP(&rpInstrument, "instrument", "i", "EURUSD", "instrument symbol")
	replayCmd.Flags().StringVar(&rpStart, "start", "", "start timestamp, RFC3339 (default: first tick)")
	replayCmd.Flags().Float64Var(&rpSpeed, "speed", 1, "replay speed")
	replayCmd.Flags().Float64VarP(&rpBalance, "balance", "b", 0, "initial balance (default: account.initial_balance)")

	replayCmd.MarkFlagRequired("script")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if rpTicks != "" {
		cfg.Data = []config.DataConfig{{Path: rpTicks, Format: rpFormat}}
	}
	events, err := replay.LoadScript(rpScript)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}

	params := session.Params{
		ID:             rpSession,
		Name:           rpScript,
		Instrument:     rpInstrument,
		Speed:          rpSpeed,
		InitialBalance: cfg.InitialBalance(),
	}
	if rpStart != "" {
		params.StartTime, err = time.Parse(time.RFC3339Nano, rpStart)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if cmd.Flags().Changed("balance") {
		params.InitialBalance = decimal.NewFromFloat(rpBalance)
	}

	wall := replay.NewManualWall(replayEpoch)
	m, j, err := newManager(wall, 0, 0)
	if err != nil {
		return err
	}

	err = playScript(cmd.Context(), m, wall, params, events)
	if cerr := closeAll(m, j); err == nil {
		err = cerr
	}
	return err
}

func playScript(ctx context.Context, m *session.Manager, wall *replay.ManualWall, p session.Params, events []replay.Event) error {
	if _, err := m.Create(ctx, p); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if _, err := m.Start(ctx, p.ID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	out, err := session.NewPlayer(m, wall, p.ID).Play(ctx, events)
	for _, o := range out {
		if o.Err != nil {
			log.Warn("rejected",
				zap.String("action", string(o.Event.Action)),
				zap.Time("at", o.Event.Time),
				zap.Error(o.Err))
		}
	}
	if err != nil {
		return err
	}
	log.Info("replay finished", zap.String("session", p.ID), zap.Int("events", len(out)))

	snap, err := m.Snapshot(p.ID, 0)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
