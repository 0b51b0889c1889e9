package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

// LimitBracket is Bracket with a passive entry: while flat it keeps a limit
// order LimitOffset away from the close (below for longs, above for
// shorts), with exits measured from the limit price. A limit that has
// stood through one candle without filling is re-priced from the latest
// close.
type LimitBracket struct {
	Asset       string
	Ratio       float64
	TakeProfit  float64
	StopLoss    float64
	LimitOffset float64

	resting bool
}

func NewLimitBracket(p Params) (*LimitBracket, error) {
	if p.TakeProfit <= 0 || p.StopLoss <= 0 {
		return nil, fmt.Errorf("limit-bracket: take_profit and stop_loss distances must be positive")
	}
	if p.LimitOffset <= 0 {
		return nil, fmt.Errorf("limit-bracket: limit_offset must be positive")
	}
	if p.Ratio < 0 || p.Ratio >= 1 {
		return nil, fmt.Errorf("limit-bracket: ratio must be in (0, 1), got %g", p.Ratio)
	}
	return &LimitBracket{
		Asset:       p.Asset,
		Ratio:       p.Ratio,
		TakeProfit:  p.TakeProfit,
		StopLoss:    p.StopLoss,
		LimitOffset: p.LimitOffset,
	}, nil
}

func (s *LimitBracket) Name() string { return "limit-bracket" }

func (s *LimitBracket) OnCandle(ctx context.Context, candles []market.Candle, tr sim.Trader) error {
	if len(candles) == 0 || tr.Position() != nil {
		s.resting = false
		return nil
	}
	if s.resting && hasLimit(tr) {
		// the limit placed on the previous candle is matched against this one
		s.resting = false
		return nil
	}
	last := candles[len(candles)-1]
	side := signalSide(last)

	price := last.Close - float64(side)*s.LimitOffset
	if price <= 0 {
		return nil
	}
	qty, err := size(tr, s.Asset, s.Ratio, price, side)
	if err != nil || qty == 0 {
		return err
	}

	// drop exits left over from an entry that never filled
	tr.CancelOrders()
	err = tr.SubmitLimit(qty, price, sim.GTC)
	if errors.Is(err, sim.ErrInvalidQuantity) || errors.Is(err, sim.ErrInvalidOrderPrice) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("limit-bracket: %w", err)
	}
	s.resting = true
	if err := submitExits(tr, price, side, s.TakeProfit, s.StopLoss); err != nil {
		return fmt.Errorf("limit-bracket: %w", err)
	}
	return nil
}

func hasLimit(tr sim.Trader) bool {
	for _, o := range tr.OpenOrders() {
		if o.Kind == sim.Limit {
			return true
		}
	}
	return false
}
