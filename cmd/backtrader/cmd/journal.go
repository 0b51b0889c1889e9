package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtrader/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the backtest journal",
		Long: `Query and display runs and positions from the SQLite journal.

Subcommands:
  runs      - List recorded runs, newest first
  run       - Show one run with its positions as org-mode
  position  - Show a position by ID
  day       - List positions closed on a given UTC day
  equity    - Print a run's equity curve

Examples:
  backtrader journal runs
  backtrader journal run <run-id> --org run.org
  backtrader journal position <position-id>
  backtrader journal day 2022-01-01`,
	}

	open := func() (*journal.SQLite, error) {
		path := a.cfg.Journal.DBPath
		if path == "" {
			return nil, fmt.Errorf("no journal database: set --db or journal.db_path")
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns()
			if err != nil {
				return fmt.Errorf("query runs: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-26s %-10s %-4s %-14s %4s %10s %8s %8s\n",
				"RUN", "SYMBOL", "TF", "STRATEGY", "LEV", "NET", "RETURN%", "MAXDD%")
			for _, r := range runs {
				fmt.Fprintf(out, "%-26s %-10s %-4s %-14s %4d %10.2f %8.2f %8.2f\n",
					r.RunID, r.Symbol, r.Interval, r.Strategy, r.Leverage, r.NetPL, r.ReturnPct, r.MaxDDPct)
			}
			return nil
		},
	}

	var orgPath string
	runCmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Show a run and its positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			run, err := j.GetRun(args[0])
			if err != nil {
				return err
			}
			recs, err := j.ListPositions(run.RunID)
			if err != nil {
				return fmt.Errorf("query positions: %w", err)
			}

			s, err := run.Org()
			if err != nil {
				return err
			}
			if len(recs) > 0 {
				s += "\n" + journal.FormatPositionsOrg(recs)
			}
			if orgPath != "" {
				if err := os.WriteFile(orgPath, []byte(s), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", orgPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	runCmd.Flags().StringVar(&orgPath, "org", "", "write to this file instead of stdout")

	positionCmd := &cobra.Command{
		Use:   "position <position-id>",
		Short: "Show a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			rec, err := j.GetPosition(args[0])
			if err != nil {
				return fmt.Errorf("get position: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatPositionOrg(rec))
			return nil
		},
	}

	dayCmd := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List positions closed on a UTC day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dayBounds(time.UTC, args[0])
			if err != nil {
				return fmt.Errorf("date: %w", err)
			}

			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListPositionsClosedBetween(start, end)
			if err != nil {
				return fmt.Errorf("query positions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatPositionsOrg(recs))
			return nil
		},
	}

	equityCmd := &cobra.Command{
		Use:   "equity <run-id>",
		Short: "Print a run's equity curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			snaps, err := j.ListEquity(args[0])
			if err != nil {
				return fmt.Errorf("query equity: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %12s %12s %12s\n", "TIME", "BALANCE", "RESERVED", "EQUITY")
			for _, s := range snaps {
				fmt.Fprintf(out, "%-20s %12.2f %12.2f %12.2f\n",
					s.Time.UTC().Format(time.RFC3339), s.Balance, s.Reserved, s.Equity)
			}
			return nil
		},
	}

	cmd.AddCommand(runsCmd, runCmd, positionCmd, dayCmd, equityCmd)
	return cmd
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
