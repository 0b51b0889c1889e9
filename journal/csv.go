package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	positionsHeader = []string{"run_id", "position_id", "symbol", "side", "leverage", "quantity", "adjustments",
		"entry_price", "exit_price", "open_time", "close_time", "profit", "fees", "net_profit", "reason", "ambiguous"}
	equityHeader = []string{"run_id", "time", "balance", "available", "reserved", "equity"}
)

type CSVJournal struct {
	positions *csv.Writer
	equity    *csv.Writer
	pf, ef    *os.File
}

// NewCSV creates (or truncates) the two files and writes their headers.
func NewCSV(positionsPath, equityPath string) (*CSVJournal, error) {
	pf, err := os.Create(positionsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		pf.Close()
		return nil, err
	}

	j := &CSVJournal{csv.NewWriter(pf), csv.NewWriter(ef), pf, ef}
	if err := j.write(j.positions, positionsHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.write(j.equity, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordPosition(p PositionRecord) error {
	return j.write(j.positions, []string{
		p.RunID,
		p.PositionID,
		p.Symbol,
		p.Side,
		strconv.Itoa(p.Leverage),
		f(p.Quantity),
		strconv.Itoa(p.Adjustments),
		f(p.EntryPrice),
		f(p.ExitPrice),
		p.OpenTime.UTC().Format(time.RFC3339),
		p.CloseTime.UTC().Format(time.RFC3339),
		f(p.Profit),
		f(p.Fees),
		f(p.NetProfit),
		p.Reason,
		strconv.FormatBool(p.Ambiguous),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.write(j.equity, []string{
		e.RunID,
		e.Time.UTC().Format(time.RFC3339),
		f(e.Balance),
		f(e.Available),
		f(e.Reserved),
		f(e.Equity),
	})
}

func (j *CSVJournal) Close() error {
	j.positions.Flush()
	j.equity.Flush()
	perr := j.positions.Error()
	eerr := j.equity.Error()

	if err := j.pf.Close(); err != nil && perr == nil {
		perr = err
	}
	if err := j.ef.Close(); err != nil && eerr == nil {
		eerr = err
	}
	if perr != nil {
		return perr
	}
	return eerr
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
