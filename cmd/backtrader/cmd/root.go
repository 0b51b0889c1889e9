package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtrader/config"
	"github.com/rustyeddy/backtrader/internal/logging"
)

// app carries the global flags and what PersistentPreRunE builds from them.
type app struct {
	configPath string
	envFile    string
	dbPath     string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "backtrader",
		Short: "Backtrader: leveraged futures backtesting",
		Long: `Backtrader replays historical candles through a futures matching
engine and records how a strategy's orders would have filled.

It provides tools for:
  - Backtesting strategies on CSV files or a local candle store
  - Downloading Binance USD-M futures klines and symbol rules
  - Querying the position journal as org-mode
  - Generating and validating configuration files`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env", "", "Path to .env file (default ./.env, optional)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite journal database (overrides the config journal)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a.log != nil {
			_ = a.log.Sync()
		}
	}

	cmd.AddCommand(
		newBacktestCmd(a),
		newFetchCmd(a),
		newJournalCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// setup loads .env, the config file and the environment, then builds the
// logger. Flags win over everything else.
func (a *app) setup() error {
	if err := config.LoadEnv(a.envFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	cfg := config.Default()
	if a.configPath != "" {
		c, err := config.LoadFromFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	cfg.ApplyEnv()

	if a.dbPath != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	var (
		log *zap.Logger
		err error
	)
	if cfg.Log.File != "" {
		log, err = logging.NewWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		log, err = logging.New(cfg.Log.Level)
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
