package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/market/data"
)

var convertCmd = &cobra.Command{
	Use:   "convert <ticks.csv> <ticks.parquet>",
	Short: "Convert a tick CSV file to parquet",
	Long: `Read time,instrument,bid,ask rows and write them as parquet.

Example:
  tradesim convert data/eurusd.csv data/eurusd.parquet`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ticks, err := data.LoadCSV(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	if err := data.WriteParquet(args[1], ticks); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	log.Info("converted", zap.String("in", args[0]), zap.String("out", args[1]), zap.Int("ticks", len(ticks)))
	return nil
}
