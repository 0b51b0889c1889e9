package backtest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
	"github.com/rustyeddy/backtrader/strategies"
)

// Job is one configuration of a sweep. Each job gets its own engine and
// strategy instance.
type Job struct {
	Name     string
	Trading  sim.TradingConfig
	Symbol   market.SymbolInfo
	Balance  sim.Balance
	Strategy func() (strategies.Strategy, error)
	Options  Options
}

// Sweep runs jobs over the same candles, at most limit at a time (no
// limit when limit <= 0). Results come back in job order. A liquidated
// job is a result, not an error.
func Sweep(ctx context.Context, candles *market.CandleSet, jobs []Job, limit int, log *zap.Logger) ([]Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, job := range jobs {
		g.Go(func() error {
			strat, err := job.Strategy()
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			eng, err := sim.NewEngine(job.Trading, job.Symbol, job.Balance,
				sim.WithLogger(log.With(zap.String("job", job.Name))))
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}

			r := &Runner{
				Candles:  candles,
				Engine:   eng,
				Strategy: strat,
				Log:      log.With(zap.String("job", job.Name)),
				Options:  job.Options,
			}
			res, err := r.Run(ctx)
			var nef *sim.NotEnoughFundsError
			if err != nil && !errors.As(err, &nef) {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
