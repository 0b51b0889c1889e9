package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtrader/internal/binance"
	"github.com/rustyeddy/backtrader/internal/candlestore"
	"github.com/rustyeddy/backtrader/market"
)

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download market data from Binance USD-M futures",
		Long: `Download klines into the candle store or a CSV file, and symbol
trading rules into a YAML file.

Examples:
  backtrader fetch klines --symbol BTCUSDT --interval 1h --start 2024-01-01T00:00:00Z --store ./candles
  backtrader fetch klines --symbol ETHUSDT --interval 1m --start 2024-06-01T00:00:00Z --end 2024-06-02T00:00:00Z --csv eth.csv
  backtrader fetch symbols BTCUSDT ETHUSDT -o symbols.yaml`,
	}
	cmd.AddCommand(newFetchKlinesCmd(a), newFetchSymbolsCmd(a))
	return cmd
}

func newFetchKlinesCmd(a *app) *cobra.Command {
	var symbol, interval, start, end, store, csvPath string

	cmd := &cobra.Command{
		Use:   "klines",
		Short: "Download klines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if store == "" && csvPath == "" {
				store = a.cfg.Data.Store
			}
			if store == "" && csvPath == "" {
				return fmt.Errorf("fetch klines: --store or --csv is required")
			}
			if symbol == "" {
				symbol = a.cfg.Trading.Symbol
			}
			if interval == "" {
				interval = a.cfg.Trading.Interval
			}
			symbol = strings.ToUpper(symbol)

			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}

			var from, to time.Time
			if start != "" {
				if from, err = market.ParseTime(start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			if end != "" {
				if to, err = market.ParseTime(end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			} else {
				to = time.Now().UTC().Truncate(iv)
			}

			var cs *candlestore.Store
			if store != "" {
				cs, err = candlestore.Open(store)
				if err != nil {
					return err
				}
				defer cs.Close()

				// Resume after the newest stored candle.
				if from.IsZero() {
					last, ok, err := cs.Latest(symbol, iv)
					if err != nil {
						return err
					}
					if ok {
						from = last.OpenTime.Add(iv)
					}
				}
			}
			if from.IsZero() {
				return fmt.Errorf("fetch klines: --start is required")
			}
			if !to.After(from) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is up to date\n", symbol, interval)
				return nil
			}

			client := binance.NewClient(a.cfg.Binance.APIKey, a.cfg.Binance.SecretKey, a.log)
			a.log.Info("fetching klines",
				zap.String("symbol", symbol),
				zap.String("interval", interval),
				zap.Time("start", from),
				zap.Time("end", to))

			candles, err := client.Klines(cmd.Context(), symbol, iv, from, to)
			if err != nil {
				return err
			}

			if cs != nil {
				if err := cs.Put(symbol, iv, candles); err != nil {
					return err
				}
			}
			if csvPath != "" {
				if err := writeCandlesCSV(csvPath, candles); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Fetched %d %s %s candles\n", len(candles), symbol, interval)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&symbol, "symbol", "", "symbol (defaults to trading.symbol)")
	fl.StringVar(&interval, "interval", "", "interval (defaults to trading.interval)")
	fl.StringVar(&start, "start", "", "first open time (RFC3339 or unix); resumes from the store when empty")
	fl.StringVar(&end, "end", "", "stop before this open time (default now)")
	fl.StringVar(&store, "store", "", "candle store directory (defaults to data.store)")
	fl.StringVar(&csvPath, "csv", "", "also write the candles to this CSV file")
	return cmd
}

func writeCandlesCSV(path string, candles []market.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := market.WriteCSV(f, candles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newFetchSymbolsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "symbols [SYMBOL...]",
		Short: "Download symbol trading rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, len(args))
			for i, s := range args {
				names[i] = strings.ToUpper(s)
			}

			client := binance.NewClient(a.cfg.Binance.APIKey, a.cfg.Binance.SecretKey, a.log)
			symbols, err := client.Symbols(cmd.Context(), names...)
			if err != nil {
				return err
			}
			if err := market.SaveSymbols(output, symbols); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %d symbols to %s\n", symbols.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "symbols.yaml", "output YAML file")
	return cmd
}
