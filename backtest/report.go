package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/backtrader/journal"
	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

// Report summarises the closed positions of a run.
type Report struct {
	RunID    string
	Strategy string
	Symbol   string
	Interval time.Duration
	Leverage int
	Ratio    float64

	Positions int
	Longs     int
	Shorts    int
	Wins      int
	Losses    int
	Ambiguous int
	WinRate   float64 // 0..1

	BiggestWin  float64
	BiggestLoss float64

	StartCash   float64
	FinalCash   float64
	NetPL       float64
	ProfitRatio float64 // final / start
	ReturnPct   float64
	MaxDDPct    float64

	Start    time.Time
	End      time.Time
	Duration time.Duration
	Candles  int

	OpenPosition bool
	Liquidated   bool
}

func NewReport(res Result) Report {
	r := Report{
		RunID:        res.RunID,
		Strategy:     res.Strategy,
		Symbol:       res.Symbol,
		Interval:     res.Interval,
		Leverage:     res.Leverage,
		Ratio:        res.Ratio,
		Positions:    len(res.Positions),
		StartCash:    res.Initial.Total,
		FinalCash:    res.Final.Total,
		Start:        res.Start,
		End:          res.End,
		Candles:      res.Candles,
		OpenPosition: res.Open != nil,
		Liquidated:   res.Liquidated,
	}
	if !r.Start.IsZero() && r.End.After(r.Start) {
		r.Duration = r.End.Sub(r.Start)
	}

	for _, p := range res.Positions {
		if p.Side() == sim.Long {
			r.Longs++
		} else {
			r.Shorts++
		}
		if p.Ambiguous() {
			r.Ambiguous++
		}

		net := p.RealizedProfit()
		switch {
		case net > 0:
			r.Wins++
			if net > r.BiggestWin {
				r.BiggestWin = net
			}
		case net < 0:
			r.Losses++
			if net < r.BiggestLoss {
				r.BiggestLoss = net
			}
		}
	}

	// break-even positions count toward neither side
	if decided := r.Wins + r.Losses; decided > 0 {
		r.WinRate = float64(r.Wins) / float64(decided)
	}
	r.NetPL = r.FinalCash - r.StartCash
	if r.StartCash > 0 {
		r.ProfitRatio = r.FinalCash / r.StartCash
		r.ReturnPct = r.NetPL / r.StartCash * 100
	}
	r.MaxDDPct = maxDrawdownPct(r.StartCash, res.Equity)
	return r
}

// maxDrawdownPct is the largest peak-to-trough fall of the equity curve,
// with the starting cash as the first peak.
func maxDrawdownPct(start float64, curve []EquityPoint) float64 {
	peak := start
	var dd float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if d := (peak - p.Equity) / peak * 100; d > dd {
			dd = d
		}
	}
	return dd
}

func (r Report) Print(w io.Writer) {
	interval, err := market.IntervalString(r.Interval)
	if err != nil {
		interval = r.Interval.String()
	}

	fmt.Fprintf(w, "Backtest %s\n", r.RunID)
	fmt.Fprintf(w, "  Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "  Symbol:        %s %s x%d\n", r.Symbol, interval, r.Leverage)
	fmt.Fprintf(w, "  Period:        %s -> %s (%s, %d candles)\n",
		r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339), r.Duration, r.Candles)
	fmt.Fprintf(w, "  Positions:     %d (long %d, short %d)\n", r.Positions, r.Longs, r.Shorts)
	fmt.Fprintf(w, "  Wins/Losses:   %d/%d (win rate %.2f%%)\n", r.Wins, r.Losses, r.WinRate*100)
	fmt.Fprintf(w, "  Biggest win:   %.2f\n", r.BiggestWin)
	fmt.Fprintf(w, "  Biggest loss:  %.2f\n", r.BiggestLoss)
	fmt.Fprintf(w, "  Start cash:    %.2f\n", r.StartCash)
	fmt.Fprintf(w, "  Final cash:    %.2f\n", r.FinalCash)
	fmt.Fprintf(w, "  Profit/Loss:   %.2f (%.2f%%, ratio %.4f)\n", r.NetPL, r.ReturnPct, r.ProfitRatio)
	fmt.Fprintf(w, "  Max drawdown:  %.2f%%\n", r.MaxDDPct)
	if r.Ambiguous > 0 {
		fmt.Fprintf(w, "  Ambiguous:     %d exits decided by tie-break\n", r.Ambiguous)
	}
	if r.OpenPosition {
		fmt.Fprintln(w, "  Note:          a position was still open at the end")
	}
	if r.Liquidated {
		fmt.Fprintln(w, "  LIQUIDATED:    the account ran out of funds")
	}
}

// JournalRun converts the report into a journal.Run row.
func (r Report) JournalRun(dataset string, created time.Time) journal.Run {
	interval, err := market.IntervalString(r.Interval)
	if err != nil {
		interval = r.Interval.String()
	}

	run := journal.Run{
		RunID:        r.RunID,
		Created:      created,
		Symbol:       r.Symbol,
		Interval:     interval,
		Strategy:     r.Strategy,
		Dataset:      dataset,
		Leverage:     r.Leverage,
		Ratio:        r.Ratio,
		Start:        r.Start,
		End:          r.End,
		Candles:      r.Candles,
		Positions:    r.Positions,
		Wins:         r.Wins,
		Losses:       r.Losses,
		Ambiguous:    r.Ambiguous,
		StartBalance: r.StartCash,
		EndBalance:   r.FinalCash,
		NetPL:        r.NetPL,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRate,
		MaxDDPct:     r.MaxDDPct,
		Liquidated:   r.Liquidated,
	}
	if r.OpenPosition {
		run.Notes = append(run.Notes, "a position was still open at the end of the data")
	}
	if r.Ambiguous > 0 {
		run.Notes = append(run.Notes, fmt.Sprintf("%d exits were decided by the tie-break policy", r.Ambiguous))
	}
	return run
}
