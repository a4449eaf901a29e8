package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/config"
	"github.com/rustyeddy/tradesim/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "tradesim",
	Short: "Deterministic FX session replay and execution simulator",
	Long: `Tradesim replays recorded market data through independent trading
sessions. Each session has its own replay clock, account and ledger;
orders fill against the historical tick at the session's virtual time.

It provides tools for:
  - Serving sessions over an HTTP API
  - Headless scripted replays with reproducible journals
  - Converting tick CSV files to parquet
  - Inspecting SQLite journals`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

var (
	cfgPath   string
	dbPath    string
	addr      string
	logLevel  string
	logFormat string

	cfg *config.Config
	log = zap.NewNop()
)

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite journal database (overrides journal config)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console|json")
}

// setup loads the config, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(logLevel, logFormat)
	if err != nil {
		return err
	}
	log = l

	if cfgPath != "" {
		cfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	if dbPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: dbPath}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg.Validate()
}
