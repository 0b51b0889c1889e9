package strategies

import (
	"context"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnCandle(context.Context, []market.Candle, sim.Trader) error {
	return nil
}
