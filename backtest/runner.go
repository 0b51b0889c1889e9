package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtrader/internal/id"
	"github.com/rustyeddy/backtrader/journal"
	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
	"github.com/rustyeddy/backtrader/strategies"
)

// Options controls how the runner behaves.
type Options struct {
	// CloseAtEnd flattens any open position at the last close with
	// reason end_of_data.
	CloseAtEnd bool
}

// Runner drives an engine over a candle set with a strategy.
type Runner struct {
	Candles  *market.CandleSet
	Engine   *sim.Engine
	Strategy strategies.Strategy
	Journal  journal.Journal // optional
	Log      *zap.Logger     // optional
	RunID    string          // generated when empty
	Options  Options
}

// EquityPoint is the account equity at a candle close.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Result is what a run produced.
type Result struct {
	RunID      string
	Strategy   string
	Symbol     string
	Interval   time.Duration
	Leverage   int
	Ratio      float64
	Start      time.Time
	End        time.Time
	Candles    int // candles processed
	Positions  []*sim.Position
	Open       *sim.Position // still open at the end, if any
	Initial    sim.Balance
	Final      sim.Balance
	Equity     []EquityPoint
	Liquidated bool
}

// Run executes the loop:
//  1. engine.Observe(candle i)
//  2. strategy.OnCandle(candles[:i+1])
//  3. engine.Match()
//
// A *sim.NotEnoughFundsError stops the run; the partial Result is returned
// along with the error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Candles == nil {
		return Result{}, fmt.Errorf("backtest: Candles is required")
	}
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	cfg := r.Engine.Config()
	if r.Candles.Interval != 0 && r.Candles.Interval != cfg.Interval {
		return Result{}, fmt.Errorf("backtest: candle interval %s does not match trading interval %s",
			r.Candles.Interval, cfg.Interval)
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	runID := r.RunID
	if runID == "" {
		runID = id.New()
	}
	log = log.With(zap.String("run", runID), zap.String("strategy", r.Strategy.Name()))

	res := Result{
		RunID:    runID,
		Strategy: r.Strategy.Name(),
		Symbol:   r.Engine.Symbol().Symbol,
		Interval: cfg.Interval,
		Leverage: r.Engine.Leverage(),
		Ratio:    cfg.Ratio,
		Start:    r.Candles.Start(),
		Initial:  r.Engine.InitialBalance(),
	}

	log.Info("backtest started",
		zap.String("symbol", res.Symbol),
		zap.Int("candles", r.Candles.Len()),
		zap.Float64("balance", res.Initial.Total),
	)

	journaled := 0
	err := r.loop(ctx, &res, &journaled)

	if err == nil && r.Options.CloseAtEnd {
		err = r.Engine.Flatten(sim.ExitEndOfData)
		if err == nil {
			err = r.journalClosed(runID, &journaled)
		}
	}

	var nef *sim.NotEnoughFundsError
	if errors.As(err, &nef) {
		res.Liquidated = true
		// the liquidating close is already in the history
		if jerr := r.journalClosed(runID, &journaled); jerr != nil {
			log.Error("journal", zap.Error(jerr))
		}
		log.Error("account wiped out", zap.Float64("total", nef.Balance.Total))
	}

	res.Positions = r.Engine.Positions()
	res.Open = r.Engine.Position()
	res.Final = r.Engine.CurrentBalance()
	if len(res.Equity) > 0 {
		res.End = res.Equity[len(res.Equity)-1].Time
	}

	if err != nil {
		return res, err
	}

	log.Info("backtest finished",
		zap.Int("positions", len(res.Positions)),
		zap.Float64("balance", res.Final.Total),
	)
	return res, nil
}

func (r *Runner) loop(ctx context.Context, res *Result, journaled *int) error {
	it := r.Candles.Iterator()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := it.Candle()
		if err := r.Engine.Observe(c); err != nil {
			return err
		}
		if err := r.Strategy.OnCandle(ctx, it.Window(), r.Engine); err != nil {
			return fmt.Errorf("strategy %s at %s: %w", r.Strategy.Name(),
				c.OpenTime.UTC().Format(time.RFC3339), err)
		}
		err := r.Engine.Match()
		res.Candles++
		if err != nil {
			return err
		}

		if err := r.journalClosed(res.RunID, journaled); err != nil {
			return err
		}

		at := it.CloseTime()
		eq := r.Engine.Equity()
		res.Equity = append(res.Equity, EquityPoint{Time: at, Equity: eq})

		if r.Journal != nil {
			bal := r.Engine.CurrentBalance()
			if err := r.Journal.RecordEquity(journal.EquitySnapshot{
				RunID:     res.RunID,
				Time:      at,
				Balance:   bal.Total,
				Available: bal.Available,
				Reserved:  bal.Reserved(),
				Equity:    eq,
			}); err != nil {
				return fmt.Errorf("journal equity: %w", err)
			}
		}
	}
	return nil
}

// journalClosed records the positions closed since the last call.
func (r *Runner) journalClosed(runID string, journaled *int) error {
	if r.Journal == nil {
		return nil
	}
	closed := r.Engine.Positions()
	for _, p := range closed[*journaled:] {
		if err := r.Journal.RecordPosition(journal.NewPositionRecord(runID, p)); err != nil {
			return fmt.Errorf("journal position %s: %w", p.ID, err)
		}
		*journaled++
	}
	return nil
}
