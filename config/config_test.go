package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtrader/sim"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	tc, err := cfg.Trading.TradingConfig()
	require.NoError(t, err)
	assert.Equal(t, sim.TradingConfig{
		Ratio:    0.01,
		Leverage: 10,
		Interval: time.Minute,
		TieBreak: sim.TieBreakDirection,
	}, tc)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"asset", func(c *Config) { c.Account.Asset = "" }, "account.asset"},
		{"balance", func(c *Config) { c.Account.Balance = 0 }, "account.balance"},
		{"symbol", func(c *Config) { c.Trading.Symbol = "" }, "trading.symbol"},
		{"interval", func(c *Config) { c.Trading.Interval = "7x" }, "trading.interval"},
		{"ratio", func(c *Config) { c.Trading.Ratio = 1 }, "trading.ratio"},
		{"leverage", func(c *Config) { c.Trading.Leverage = 0 }, "trading.leverage"},
		{"tie break", func(c *Config) { c.Trading.TieBreak = "coin" }, "trading.tie_break"},
		{"strategy", func(c *Config) { c.Strategy.Name = "martingale" }, "unknown strategy"},
		{"bracket distances", func(c *Config) { c.Strategy.StopLoss = 0 }, "strategy"},
		{"data source", func(c *Config) { c.Data.Store = "./candles" }, "only one"},
		{"data range", func(c *Config) { c.Data.Start, c.Data.End = "2024-02-01T00:00:00Z", "2024-01-01T00:00:00Z" }, "data.end"},
		{"bad start", func(c *Config) { c.Data.Start = "yesterday" }, "data.start"},
		{"journal type", func(c *Config) { c.Journal.Type = "kafka" }, "journal.type"},
		{"csv paths", func(c *Config) { c.Journal = JournalConfig{Type: "csv", PositionsFile: "p.csv"} }, "positions_file"},
		{"sqlite path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }, "db_path"},
		{"postgres dsn", func(c *Config) { c.Journal = JournalConfig{Type: "postgres"} }, "dsn"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateJournalTypes(t *testing.T) {
	t.Parallel()

	for _, j := range []JournalConfig{
		{Type: ""},
		{Type: "none"},
		{Type: "csv", PositionsFile: "p.csv", EquityFile: "e.csv"},
		{Type: "postgres", DSN: "host=localhost"},
	} {
		cfg := Default()
		cfg.Journal = j
		assert.NoError(t, cfg.Validate(), j.Type)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.Trading.Symbol = "ETHUSDT"
	cfg.Trading.FeeRatio = 0.0004
	cfg.Trading.TieBreak = string(sim.TieBreakStopFirst)
	cfg.Data.Start = "2024-01-01T00:00:00Z"
	cfg.Binance.APIKey = "secret"

	for _, name := range []string{"cfg.yaml", "cfg.yml", "cfg.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "secret", name)

		got, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, "ETHUSDT", got.Trading.Symbol)
		assert.Equal(t, 0.0004, got.Trading.FeeRatio)
		assert.Empty(t, got.Binance.APIKey)

		tc, err := got.Trading.TradingConfig()
		require.NoError(t, err)
		assert.Equal(t, sim.TieBreakStopFirst, tc.TieBreak)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("account: [1, 2\n"), 0o644))
	_, err = LoadFromFile(garbage)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  balance: -5\n"), 0o644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadFillsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  symbol: ETHUSDT\n  interval: 4h\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "USDT", cfg.Account.Asset)
	assert.Equal(t, 10, cfg.Trading.Leverage)

	tc, err := cfg.Trading.TradingConfig()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, tc.Interval)
}

func TestDataRange(t *testing.T) {
	t.Parallel()

	start, end, err := DataConfig{}.Range()
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())

	start, end, err = DataConfig{Start: "1640995200", End: "2022-01-02T00:00:00Z"}.Range()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

// Not parallel: mutates the process environment.
func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvJournalDSN, "host=db user=bt")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvBinanceKey, "k")
	t.Setenv(EnvBinanceSecret, "")

	cfg := Default()
	cfg.Binance.SecretKey = "from-flag"
	cfg.ApplyEnv()

	assert.Equal(t, "host=db user=bt", cfg.Journal.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "k", cfg.Binance.APIKey)
	assert.Equal(t, "from-flag", cfg.Binance.SecretKey)
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BACKTRADER_TEST_ONLY=from-dotenv\n"), 0o644))
	t.Setenv("BACKTRADER_TEST_ONLY", "")
	os.Unsetenv("BACKTRADER_TEST_ONLY")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("BACKTRADER_TEST_ONLY"))
}
