package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordPosition(p PositionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO positions
		(position_id, run_id, symbol, side, leverage, quantity, adjustments, entry_price, exit_price,
		 open_time, close_time, profit, fees, net_profit, reason, ambiguous)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PositionID, p.RunID, p.Symbol, p.Side, p.Leverage, p.Quantity, p.Adjustments,
		p.EntryPrice, p.ExitPrice, p.OpenTime.UTC(), p.CloseTime.UTC(),
		p.Profit, p.Fees, p.NetProfit, p.Reason, p.Ambiguous,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, available, reserved, equity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Balance, e.Available, e.Reserved, e.Equity,
	)
	return err
}

func (j *SQLite) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, symbol, interval, strategy, dataset, leverage, ratio, start_time, end_time,
		 candles, positions, wins, losses, ambiguous, start_balance, end_balance, net_pl, return_pct,
		 win_rate, max_dd_pct, liquidated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Symbol, r.Interval, r.Strategy, r.Dataset, r.Leverage, r.Ratio,
		r.Start.UTC(), r.End.UTC(), r.Candles, r.Positions, r.Wins, r.Losses, r.Ambiguous,
		r.StartBalance, r.EndBalance, r.NetPL, r.ReturnPct, r.WinRate, r.MaxDDPct, r.Liquidated,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
