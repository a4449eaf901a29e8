package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradesim/journal"
	"github.com/rustyeddy/tradesim/market"
	"github.com/rustyeddy/tradesim/market/data"
	"github.com/rustyeddy/tradesim/sim"
)

// Config is the complete simulator configuration
type Config struct {
	Account     AccountConfig      `json:"account" yaml:"account"`
	Instruments []InstrumentConfig `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Data        []DataConfig       `json:"data,omitempty" yaml:"data,omitempty"`
	Costs       CostsConfig        `json:"costs" yaml:"costs"`
	Engine      EngineConfig       `json:"engine" yaml:"engine"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	Server      ServerConfig       `json:"server" yaml:"server"`
}

// AccountConfig holds the defaults new sessions are funded with
type AccountConfig struct {
	Currency       string  `json:"currency" yaml:"currency"`
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
}

// InstrumentConfig overrides the built-in instrument catalog.
// Enabled defaults to true when omitted.
type InstrumentConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	PipSize    float64 `json:"pip_size" yaml:"pip_size"`
	Enabled    *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Base       string  `json:"base" yaml:"base"`
	Quote      string  `json:"quote" yaml:"quote"`
	MarginRate float64 `json:"margin_rate" yaml:"margin_rate"`
}

// DataConfig names one market data file loaded at startup. A
// "dukascopy" entry is a directory of hourly bi5 files for one
// instrument; From and To (RFC3339) bound the hours read.
type DataConfig struct {
	Path       string `json:"path" yaml:"path"`
	Format     string `json:"format" yaml:"format"` // "csv", "parquet" or "dukascopy"
	Instrument string `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	From       string `json:"from,omitempty" yaml:"from,omitempty"`
	To         string `json:"to,omitempty" yaml:"to,omitempty"`
}

type CostsConfig struct {
	SlippageBps float64          `json:"slippage_bps" yaml:"slippage_bps"`
	Commission  CommissionConfig `json:"commission" yaml:"commission"`
}

type CommissionConfig struct {
	Mode  string  `json:"mode" yaml:"mode"` // "per_unit" or "bps"
	Value float64 `json:"value" yaml:"value"`
}

// EngineConfig tunes session execution. Durations use time.ParseDuration
// syntax, e.g. "100ms", "2s".
type EngineConfig struct {
	MaintenanceMargin    float64 `json:"maintenance_margin" yaml:"maintenance_margin"`
	TickInterval         string  `json:"tick_interval" yaml:"tick_interval"`
	OrderWait            string  `json:"order_wait" yaml:"order_wait"`
	Mailbox              int     `json:"mailbox" yaml:"mailbox"`
	SnapshotTransactions int     `json:"snapshot_transactions" yaml:"snapshot_transactions"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type             string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	DBPath           string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	PositionsFile    string `json:"positions_file,omitempty" yaml:"positions_file,omitempty"`
	TransactionsFile string `json:"transactions_file,omitempty" yaml:"transactions_file,omitempty"`
	EquityFile       string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

type ServerConfig struct {
	Addr        string   `json:"addr" yaml:"addr"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	ReleaseMode bool     `json:"release_mode" yaml:"release_mode"`
}

// LoadFromFile loads configuration from a file, YAML or JSON
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(raw, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var raw []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		raw, err = yaml.Marshal(c)
	} else {
		raw, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.InitialBalance < 0 {
		return fmt.Errorf("account.initial_balance must not be negative")
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	for i, d := range c.Data {
		if d.Path == "" {
			return fmt.Errorf("data[%d].path is required", i)
		}
		switch d.Format {
		case "csv", "parquet":
		case "dukascopy":
			if d.Instrument == "" {
				return fmt.Errorf("data[%d].instrument required for dukascopy", i)
			}
			if _, _, err := d.hours(); err != nil {
				return fmt.Errorf("data[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("data[%d].format must be 'csv', 'parquet' or 'dukascopy'", i)
		}
	}
	if err := c.CostModel().Validate(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	if c.Engine.MaintenanceMargin < 0 || c.Engine.MaintenanceMargin > 1 {
		return fmt.Errorf("engine.maintenance_margin must be between 0 and 1")
	}
	if _, err := c.TickInterval(); err != nil {
		return fmt.Errorf("engine.tick_interval: %w", err)
	}
	if _, err := c.OrderWait(); err != nil {
		return fmt.Errorf("engine.order_wait: %w", err)
	}
	if c.Engine.Mailbox < 0 {
		return fmt.Errorf("engine.mailbox must not be negative")
	}
	if c.Engine.SnapshotTransactions < 0 {
		return fmt.Errorf("engine.snapshot_transactions must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.PositionsFile == "" || c.Journal.TransactionsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal positions_file, transactions_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency:       "USD",
			InitialBalance: 100000,
		},
		Costs: CostsConfig{
			Commission: CommissionConfig{Mode: string(sim.CommissionPerUnit)},
		},
		Engine: EngineConfig{
			MaintenanceMargin:    0.5,
			TickInterval:         "100ms",
			OrderWait:            "2s",
			Mailbox:              64,
			SnapshotTransactions: 20,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Catalog builds the instrument catalog, falling back to the built-in
// instruments when none are configured.
func (c *Config) Catalog() (*market.Catalog, error) {
	if len(c.Instruments) == 0 {
		return market.NewCatalog(market.DefaultInstruments())
	}

	list := make([]market.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		enabled := true
		if ic.Enabled != nil {
			enabled = *ic.Enabled
		}
		list = append(list, market.Instrument{
			Symbol:        ic.Symbol,
			PipSize:       decimal.NewFromFloat(ic.PipSize),
			Enabled:       enabled,
			BaseCurrency:  ic.Base,
			QuoteCurrency: ic.Quote,
			MarginRate:    decimal.NewFromFloat(ic.MarginRate),
		})
	}
	return market.NewCatalog(list)
}

// LoadSource reads every configured data file into one source. Files are
// decoded concurrently; ticks keep configuration order.
func (c *Config) LoadSource() (*data.Source, error) {
	loaded := make([][]market.Tick, len(c.Data))

	var g errgroup.Group
	g.SetLimit(4)
	for i, d := range c.Data {
		i, d := i, d
		g.Go(func() error {
			var (
				t   []market.Tick
				err error
			)
			if d.Format == "dukascopy" {
				t, err = c.loadDukascopy(d)
			} else {
				t, err = data.Load(d.Path, d.Format)
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", d.Path, err)
			}
			loaded[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ticks []market.Tick
	for _, t := range loaded {
		ticks = append(ticks, t...)
	}
	return data.FromTicks(ticks)
}

// dukascopy prices are integers in tenths of a pip
var pointsPerPip = decimal.NewFromInt(10)

func (c *Config) loadDukascopy(d DataConfig) ([]market.Tick, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	in, err := catalog.Lookup(d.Instrument)
	if err != nil {
		return nil, err
	}
	from, to, err := d.hours()
	if err != nil {
		return nil, err
	}
	return data.LoadDukascopy(d.Path, in.Symbol, from, to, in.PipSize.Div(pointsPerPip))
}

func (d DataConfig) hours() (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, d.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, d.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

func (c *Config) CostModel() sim.CostModel {
	return sim.CostModel{
		SlippageBps:     decimal.NewFromFloat(c.Costs.SlippageBps),
		CommissionMode:  sim.CommissionMode(c.Costs.Commission.Mode),
		CommissionValue: decimal.NewFromFloat(c.Costs.Commission.Value),
	}
}

func (c *Config) InitialBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Account.InitialBalance)
}

func (c *Config) MaintenanceMargin() decimal.Decimal {
	return decimal.NewFromFloat(c.Engine.MaintenanceMargin)
}

func (c *Config) TickInterval() (time.Duration, error) {
	return parseDuration(c.Engine.TickInterval)
}

func (c *Config) OrderWait() (time.Duration, error) {
	return parseDuration(c.Engine.OrderWait)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", s)
	}
	return d, nil
}

// OpenJournal opens the configured journal. The caller closes it.
func (c *Config) OpenJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		j, err := journal.NewCSV(c.Journal.PositionsFile, c.Journal.TransactionsFile, c.Journal.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return j, nil
	default:
		return journal.Discard{}, nil
	}
}
