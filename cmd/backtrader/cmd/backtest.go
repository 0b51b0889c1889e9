package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtrader/backtest"
	"github.com/rustyeddy/backtrader/config"
	"github.com/rustyeddy/backtrader/internal/candlestore"
	"github.com/rustyeddy/backtrader/journal"
	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
	"github.com/rustyeddy/backtrader/strategies"
)

type backtestFlags struct {
	candles     string
	store       string
	symbol      string
	interval    string
	strategy    string
	balance     float64
	ratio       float64
	leverage    int
	feeRatio    float64
	tieBreak    string
	takeProfit  float64
	stopLoss    float64
	limitOffset float64
	start       string
	end         string
	closeAtEnd  bool
	org         string
	sweep       string
	stats       bool
}

func newBacktestCmd(a *app) *cobra.Command {
	f := &backtestFlags{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a strategy over historical candles",
		Long: `Replay candles through the matching engine with a strategy and print
the resulting report. Flags override the config file.

Examples:
  backtrader backtest --candles testdata/btcusdt_1m.csv --strategy bracket --tp 400 --sl 400
  backtrader backtest --store ./candles --symbol ETHUSDT --interval 4h --start 2024-01-01T00:00:00Z
  backtrader backtest --config backtest.yaml --sweep-leverage 1,5,10,20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, a, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.candles, "candles", "", "candle CSV file")
	fl.StringVar(&f.store, "store", "", "candle store directory (instead of --candles)")
	fl.StringVar(&f.symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	fl.StringVar(&f.interval, "interval", "", "candle interval, e.g. 1m, 4h")
	fl.StringVar(&f.strategy, "strategy", "", "strategy: "+strings.Join(strategies.Names(), ", "))
	fl.Float64Var(&f.balance, "balance", 0, "starting balance")
	fl.Float64Var(&f.ratio, "ratio", 0, "share of the available balance committed per entry, 0 < r < 1")
	fl.IntVar(&f.leverage, "leverage", 0, "leverage")
	fl.Float64Var(&f.feeRatio, "fee-ratio", 0, "fee per fill as a share of notional")
	fl.StringVar(&f.tieBreak, "tie-break", "", "same-candle stop/take policy: direction or stop_first")
	fl.Float64Var(&f.takeProfit, "tp", 0, "take-profit distance from entry")
	fl.Float64Var(&f.stopLoss, "sl", 0, "stop-loss distance from entry")
	fl.Float64Var(&f.limitOffset, "limit-offset", 0, "limit entry distance from close (limit-bracket)")
	fl.StringVar(&f.start, "start", "", "first candle open time (RFC3339 or unix)")
	fl.StringVar(&f.end, "end", "", "stop before this open time (RFC3339 or unix)")
	fl.BoolVar(&f.closeAtEnd, "close-at-end", false, "close any open position at the last candle")
	fl.StringVar(&f.org, "org", "", "write the report and positions as org-mode to this file")
	fl.StringVar(&f.sweep, "sweep-leverage", "", "comma separated leverages to run side by side")
	fl.BoolVar(&f.stats, "stats", false, "print candle statistics before running")

	return cmd
}

// apply copies the flags the user set onto cfg.
func (f *backtestFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("candles") {
		cfg.Data.Candles, cfg.Data.Store = f.candles, ""
	}
	if changed("store") {
		cfg.Data.Store, cfg.Data.Candles = f.store, ""
	}
	if changed("symbol") {
		cfg.Trading.Symbol = strings.ToUpper(f.symbol)
	}
	if changed("interval") {
		cfg.Trading.Interval = f.interval
	}
	if changed("strategy") {
		cfg.Strategy.Name = f.strategy
	}
	if changed("balance") {
		cfg.Account.Balance = f.balance
	}
	if changed("ratio") {
		cfg.Trading.Ratio = f.ratio
	}
	if changed("leverage") {
		cfg.Trading.Leverage = f.leverage
	}
	if changed("fee-ratio") {
		cfg.Trading.FeeRatio = f.feeRatio
	}
	if changed("tie-break") {
		cfg.Trading.TieBreak = f.tieBreak
	}
	if changed("tp") {
		cfg.Strategy.TakeProfit = f.takeProfit
	}
	if changed("sl") {
		cfg.Strategy.StopLoss = f.stopLoss
	}
	if changed("limit-offset") {
		cfg.Strategy.LimitOffset = f.limitOffset
	}
	if changed("start") {
		cfg.Data.Start = f.start
	}
	if changed("end") {
		cfg.Data.End = f.end
	}
	if changed("close-at-end") {
		cfg.Trading.CloseAtEnd = f.closeAtEnd
	}
	if changed("org") {
		cfg.Journal.OrgFile = f.org
	}
}

func runBacktest(cmd *cobra.Command, a *app, f *backtestFlags) error {
	cfg := *a.cfg
	f.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tc, err := cfg.Trading.TradingConfig()
	if err != nil {
		return err
	}

	symbols, err := loadSymbols(cfg.Data)
	if err != nil {
		return err
	}
	info := symbols.Lookup(cfg.Trading.Symbol)

	candles, dataset, err := loadCandles(cfg, tc.Interval)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if f.stats {
		candles.PrintStats(out)
	}

	params := cfg.Strategy.Params()
	params.Asset = cfg.Account.Asset
	newStrategy := func() (strategies.Strategy, error) {
		return strategies.ByName(cfg.Strategy.Name, params)
	}
	balance := sim.NewBalance(cfg.Account.Asset, cfg.Account.Balance)
	opts := backtest.Options{CloseAtEnd: cfg.Trading.CloseAtEnd}

	if f.sweep != "" {
		return runSweep(cmd, a, f.sweep, candles, tc, info, balance, newStrategy, opts)
	}

	strat, err := newStrategy()
	if err != nil {
		return err
	}
	eng, err := sim.NewEngine(tc, info, balance, sim.WithLogger(a.log))
	if err != nil {
		return err
	}
	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	runner := &backtest.Runner{
		Candles:  candles,
		Engine:   eng,
		Strategy: strat,
		Journal:  j,
		Log:      a.log,
		Options:  opts,
	}
	res, runErr := runner.Run(cmd.Context())
	var nef *sim.NotEnoughFundsError
	if runErr != nil && !errors.As(runErr, &nef) {
		return fmt.Errorf("backtest: %w", runErr)
	}

	rep := backtest.NewReport(res)
	rep.Print(out)

	run := rep.JournalRun(dataset, time.Now())
	if rr, ok := j.(journal.RunRecorder); ok {
		if err := rr.RecordRun(run); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	if cfg.Journal.OrgFile != "" {
		if err := writeOrg(cfg.Journal.OrgFile, run, res); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nOrg report written to %s\n", cfg.Journal.OrgFile)
	}

	if runErr != nil {
		return fmt.Errorf("backtest halted: %w", runErr)
	}
	return nil
}

func runSweep(cmd *cobra.Command, a *app, list string, candles *market.CandleSet, tc sim.TradingConfig,
	info market.SymbolInfo, balance sim.Balance, newStrategy func() (strategies.Strategy, error), opts backtest.Options) error {

	var jobs []backtest.Job
	for _, field := range strings.Split(list, ",") {
		lev, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return fmt.Errorf("sweep-leverage: %q: %w", field, err)
		}
		jtc := tc
		jtc.Leverage = lev
		jobs = append(jobs, backtest.Job{
			Name:     fmt.Sprintf("x%d", lev),
			Trading:  jtc,
			Symbol:   info,
			Balance:  balance,
			Strategy: newStrategy,
			Options:  opts,
		})
	}

	a.log.Info("sweep", zap.Int("jobs", len(jobs)))
	results, err := backtest.Sweep(cmd.Context(), candles, jobs, 0, a.log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s %10s %10s %6s %6s %8s %10s\n", "JOB", "FINAL", "NET", "WINS", "LOSS", "MAXDD%", "LIQUIDATED")
	for i, res := range results {
		rep := backtest.NewReport(res)
		fmt.Fprintf(out, "%-8s %10.2f %10.2f %6d %6d %8.2f %10t\n",
			jobs[i].Name, rep.FinalCash, rep.NetPL, rep.Wins, rep.Losses, rep.MaxDDPct, rep.Liquidated)
	}
	return nil
}

func loadSymbols(d config.DataConfig) (market.Symbols, error) {
	if d.Symbols == "" {
		return market.DefaultSymbols, nil
	}
	s, err := market.LoadSymbols(d.Symbols)
	if err != nil {
		return market.Symbols{}, fmt.Errorf("load symbols: %w", err)
	}
	return market.DefaultSymbols.Merge(s), nil
}

// loadCandles returns the configured candle range and a label for it.
func loadCandles(cfg config.Config, interval time.Duration) (*market.CandleSet, string, error) {
	start, end, err := cfg.Data.Range()
	if err != nil {
		return nil, "", err
	}

	var cs *market.CandleSet
	var dataset string
	switch {
	case cfg.Data.Store != "":
		store, err := candlestore.Open(cfg.Data.Store)
		if err != nil {
			return nil, "", err
		}
		defer store.Close()
		cs, err = store.Load(cfg.Trading.Symbol, interval, start, end)
		if err != nil {
			return nil, "", fmt.Errorf("load candles: %w", err)
		}
		dataset = cs.Source
	case cfg.Data.Candles != "":
		cs, err = market.LoadCSV(cfg.Data.Candles, cfg.Trading.Symbol, interval)
		if err != nil {
			return nil, "", fmt.Errorf("load candles: %w", err)
		}
		cs = cs.Between(start, end)
		dataset = cfg.Data.Candles
	default:
		return nil, "", fmt.Errorf("no candle source: set data.candles or data.store")
	}

	if cs.Len() == 0 {
		return nil, "", fmt.Errorf("load candles: %w", market.ErrNoCandles)
	}
	if err := cs.Validate(); err != nil {
		return nil, "", fmt.Errorf("load candles: %w", err)
	}
	return cs, dataset, nil
}

// openJournal returns nil for "none".
func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return nil, nil
	case "csv":
		return journal.NewCSV(jc.PositionsFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "postgres":
		return journal.NewPostgres(jc.DSN)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

func writeOrg(path string, run journal.Run, res backtest.Result) error {
	s, err := run.Org()
	if err != nil {
		return fmt.Errorf("org: %w", err)
	}
	recs := make([]journal.PositionRecord, 0, len(res.Positions))
	for _, p := range res.Positions {
		recs = append(recs, journal.NewPositionRecord(res.RunID, p))
	}
	if len(recs) > 0 {
		s += "\n" + journal.FormatPositionsOrg(recs)
	}
	return os.WriteFile(path, []byte(s), 0o644)
}
