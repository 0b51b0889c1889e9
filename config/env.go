package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvJournalDSN    = "BACKTRADER_JOURNAL_DSN"
	EnvLogLevel      = "BACKTRADER_LOG_LEVEL"
	EnvBinanceKey    = "BINANCE_API_KEY"
	EnvBinanceSecret = "BINANCE_SECRET_KEY"
)

// LoadEnv loads a .env file into the process environment. A missing file
// is not an error. Variables already set win.
func LoadEnv(path string) error {
	var err error
	if path != "" {
		err = godotenv.Load(path)
	} else {
		err = godotenv.Load()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides c from the environment.
// Priority: ENV > config file > defaults
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv(EnvJournalDSN); dsn != "" {
		c.Journal.DSN = dsn
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
	c.Binance.APIKey = getEnv(EnvBinanceKey, c.Binance.APIKey)
	c.Binance.SecretKey = getEnv(EnvBinanceSecret, c.Binance.SecretKey)
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
