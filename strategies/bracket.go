package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

// Bracket enters at market whenever it is flat, long after a bullish
// candle and short otherwise, with a fixed take-profit and stop-loss
// distance from the entry close.
type Bracket struct {
	Asset      string
	Ratio      float64 // zero means the engine's trading ratio
	TakeProfit float64
	StopLoss   float64
}

func NewBracket(p Params) (*Bracket, error) {
	if p.TakeProfit <= 0 || p.StopLoss <= 0 {
		return nil, fmt.Errorf("bracket: take_profit and stop_loss distances must be positive")
	}
	if p.Ratio < 0 || p.Ratio >= 1 {
		return nil, fmt.Errorf("bracket: ratio must be in (0, 1), got %g", p.Ratio)
	}
	return &Bracket{Asset: p.Asset, Ratio: p.Ratio, TakeProfit: p.TakeProfit, StopLoss: p.StopLoss}, nil
}

func (s *Bracket) Name() string { return "bracket" }

func (s *Bracket) OnCandle(ctx context.Context, candles []market.Candle, tr sim.Trader) error {
	if len(candles) == 0 || tr.Position() != nil {
		return nil
	}
	last := candles[len(candles)-1]
	side := signalSide(last)

	qty, err := size(tr, s.Asset, s.Ratio, last.Close, side)
	if err != nil || qty == 0 {
		return err
	}

	err = tr.SubmitMarket(qty)
	if errors.Is(err, sim.ErrInvalidQuantity) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bracket: %w", err)
	}

	return submitExits(tr, last.Close, side, s.TakeProfit, s.StopLoss)
}

// submitExits places take-profit and stop-loss around ref. An exit that
// would land at or below zero is left out.
func submitExits(tr sim.Trader, ref float64, side sim.Side, take, stop float64) error {
	d := float64(side)
	if tp := ref + d*take; tp > 0 {
		if err := tr.SubmitTakeProfit(tp); err != nil {
			return fmt.Errorf("take profit: %w", err)
		}
	}
	if sl := ref - d*stop; sl > 0 {
		if err := tr.SubmitStopLoss(sl); err != nil {
			return fmt.Errorf("stop loss: %w", err)
		}
	}
	return nil
}

// size works out the order quantity from the available balance.
func size(tr sim.Trader, asset string, ratio, price float64, side sim.Side) (float64, error) {
	if asset == "" {
		asset = tr.Symbol().MarginAsset
	}
	bal, err := tr.Balance(asset)
	if err != nil {
		return 0, err
	}
	if ratio == 0 {
		ratio = tr.Config().Ratio
	}
	return QuantityForRatio(bal.Available, price, ratio, tr.Leverage(), side), nil
}
