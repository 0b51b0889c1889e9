package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
	"github.com/rustyeddy/backtrader/strategies"
)

// Config represents a complete backtest configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Trading  TradingConfig  `json:"trading" yaml:"trading"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Binance  BinanceConfig  `json:"-" yaml:"-"` // environment only
}

// AccountConfig is the starting balance
type AccountConfig struct {
	Asset   string  `json:"asset" yaml:"asset"`
	Balance float64 `json:"balance" yaml:"balance"`
}

type TradingConfig struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Interval   string  `json:"interval" yaml:"interval"` // "1m", "4h", "1d", ...
	Ratio      float64 `json:"ratio" yaml:"ratio"`
	Leverage   int     `json:"leverage" yaml:"leverage"`
	FeeRatio   float64 `json:"fee_ratio" yaml:"fee_ratio"`
	TieBreak   string  `json:"tie_break,omitempty" yaml:"tie_break,omitempty"`
	CloseAtEnd bool    `json:"close_at_end,omitempty" yaml:"close_at_end,omitempty"`
}

// TradingConfig builds the engine configuration.
func (t TradingConfig) TradingConfig() (sim.TradingConfig, error) {
	iv, err := market.ParseInterval(t.Interval)
	if err != nil {
		return sim.TradingConfig{}, fmt.Errorf("trading.interval: %w", err)
	}
	tc := sim.TradingConfig{
		Ratio:    t.Ratio,
		Leverage: t.Leverage,
		FeeRatio: t.FeeRatio,
		Interval: iv,
		TieBreak: sim.TieBreak(t.TieBreak),
	}
	if tc.TieBreak == "" {
		tc.TieBreak = sim.TieBreakDirection
	}
	if err := tc.Validate(); err != nil {
		return sim.TradingConfig{}, err
	}
	return tc, nil
}

type StrategyConfig struct {
	Name        string  `json:"name" yaml:"name"`
	TakeProfit  float64 `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	StopLoss    float64 `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	LimitOffset float64 `json:"limit_offset,omitempty" yaml:"limit_offset,omitempty"`
}

// Params converts to strategy parameters. Ratio and asset come from the
// engine.
func (s StrategyConfig) Params() strategies.Params {
	return strategies.Params{
		TakeProfit:  s.TakeProfit,
		StopLoss:    s.StopLoss,
		LimitOffset: s.LimitOffset,
	}
}

// DataConfig says where candles come from: a CSV file or a pebble store.
type DataConfig struct {
	Candles string `json:"candles,omitempty" yaml:"candles,omitempty"`
	Store   string `json:"store,omitempty" yaml:"store,omitempty"`
	Symbols string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Start   string `json:"start,omitempty" yaml:"start,omitempty"`
	End     string `json:"end,omitempty" yaml:"end,omitempty"`
}

// Range parses Start and End. Empty values are zero times.
func (d DataConfig) Range() (start, end time.Time, err error) {
	if d.Start != "" {
		if start, err = market.ParseTime(d.Start); err != nil {
			return start, end, fmt.Errorf("data.start: %w", err)
		}
	}
	if d.End != "" {
		if end, err = market.ParseTime(d.End); err != nil {
			return start, end, fmt.Errorf("data.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return start, end, fmt.Errorf("data.end must be after data.start")
	}
	return start, end, nil
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "postgres"
	PositionsFile string `json:"positions_file,omitempty" yaml:"positions_file,omitempty"`
	EquityFile    string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN           string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	OrgFile       string `json:"org_file,omitempty" yaml:"org_file,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

type BinanceConfig struct {
	APIKey    string
	SecretKey string
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Asset == "" {
		return fmt.Errorf("account.asset is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if _, err := c.Trading.TradingConfig(); err != nil {
		return err
	}

	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	if c.Data.Candles != "" && c.Data.Store != "" {
		return fmt.Errorf("data: set only one of candles and store")
	}
	if _, _, err := c.Data.Range(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.PositionsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal positions_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn required for Postgres type (or set BACKTRADER_JOURNAL_DSN)")
		}
	default:
		return fmt.Errorf("journal.type must be one of none, csv, sqlite, postgres")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Asset:   "USDT",
			Balance: 1000,
		},
		Trading: TradingConfig{
			Symbol:   "BTCUSDT",
			Interval: "1m",
			Ratio:    0.01,
			Leverage: 10,
			TieBreak: string(sim.TieBreakDirection),
		},
		Strategy: StrategyConfig{
			Name:       "bracket",
			TakeProfit: 400,
			StopLoss:   400,
		},
		Data: DataConfig{
			Candles: "./testdata/btcusdt_1m.csv",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./backtrader.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
