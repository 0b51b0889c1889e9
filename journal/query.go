package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const positionColumns = `position_id, run_id, symbol, side, leverage, quantity, adjustments,
	entry_price, exit_price, open_time, close_time, profit, fees, net_profit, reason, ambiguous`

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(s scanner) (PositionRecord, error) {
	var rec PositionRecord
	err := s.Scan(
		&rec.PositionID,
		&rec.RunID,
		&rec.Symbol,
		&rec.Side,
		&rec.Leverage,
		&rec.Quantity,
		&rec.Adjustments,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Profit,
		&rec.Fees,
		&rec.NetProfit,
		&rec.Reason,
		&rec.Ambiguous,
	)
	return rec, err
}

func collectPositions(rows *sql.Rows) ([]PositionRecord, error) {
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		rec, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPosition returns a single position by ID.
func (j *SQLite) GetPosition(positionID string) (PositionRecord, error) {
	row := j.db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE position_id = ?`, positionID)
	rec, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PositionRecord{}, fmt.Errorf("position %q not found", positionID)
		}
		return PositionRecord{}, err
	}
	return rec, nil
}

// ListPositions returns a run's positions in closing order.
func (j *SQLite) ListPositions(runID string) ([]PositionRecord, error) {
	rows, err := j.db.Query(`SELECT `+positionColumns+` FROM positions
		WHERE run_id = ? ORDER BY close_time ASC, position_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

// ListPositionsClosedBetween returns positions whose close_time is within [start, end).
func (j *SQLite) ListPositionsClosedBetween(start, end time.Time) ([]PositionRecord, error) {
	rows, err := j.db.Query(`SELECT `+positionColumns+` FROM positions
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, position_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

// ListEquity returns a run's equity curve.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, balance, available, reserved, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var s EquitySnapshot
		if err := rows.Scan(&s.RunID, &s.Time, &s.Balance, &s.Available, &s.Reserved, &s.Equity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const runColumns = `run_id, created, symbol, interval, strategy, dataset, leverage, ratio, start_time,
	end_time, candles, positions, wins, losses, ambiguous, start_balance, end_balance, net_pl,
	return_pct, win_rate, max_dd_pct, liquidated`

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(
		&r.RunID, &r.Created, &r.Symbol, &r.Interval, &r.Strategy, &r.Dataset, &r.Leverage, &r.Ratio,
		&r.Start, &r.End, &r.Candles, &r.Positions, &r.Wins, &r.Losses, &r.Ambiguous,
		&r.StartBalance, &r.EndBalance, &r.NetPL, &r.ReturnPct, &r.WinRate, &r.MaxDDPct, &r.Liquidated,
	)
	return r, err
}

func (j *SQLite) GetRun(runID string) (Run, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q not found", runID)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns every recorded run, newest first.
func (j *SQLite) ListRuns() ([]Run, error) {
	rows, err := j.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
