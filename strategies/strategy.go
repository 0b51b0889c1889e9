package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

// Strategy is called once per candle with every candle seen so far,
// newest last. Orders it submits are matched against that same candle.
type Strategy interface {
	Name() string
	OnCandle(ctx context.Context, candles []market.Candle, tr sim.Trader) error
}

// Params configures the built-in strategies. Distances are absolute
// price offsets from the signal candle's close.
type Params struct {
	Asset       string
	Ratio       float64
	TakeProfit  float64
	StopLoss    float64
	LimitOffset float64
}

type factory func(Params) (Strategy, error)

var registry = map[string]factory{
	"noop": func(Params) (Strategy, error) { return Noop{}, nil },
	"bracket": func(p Params) (Strategy, error) {
		return NewBracket(p)
	},
	"limit-bracket": func(p Params) (Strategy, error) {
		return NewLimitBracket(p)
	},
}

// ByName builds a registered strategy.
func ByName(name string, p Params) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "none" {
		key = "noop"
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// QuantityForRatio sizes an order that commits ratio of the available
// balance as margin at price, scaled by leverage so the notional exposure
// is available*ratio*leverage. The result is signed by side.
func QuantityForRatio(available, price, ratio float64, leverage int, side sim.Side) float64 {
	if price <= 0 || available <= 0 || ratio <= 0 || leverage < 1 {
		return 0
	}
	return float64(side) * available / price * ratio * float64(leverage)
}

func signalSide(c market.Candle) sim.Side {
	if c.Close > c.Open {
		return sim.Long
	}
	return sim.Short
}
