package sim

import "github.com/rustyeddy/backtrader/market"

// Trigger conditions are strict: a candle that only touches the level
// does not fill.

func hitStopLoss(side Side, stop float64, c market.Candle) bool {
	if side == Long {
		return c.Low < stop
	}
	return c.High > stop
}

func hitTakeProfit(side Side, take float64, c market.Candle) bool {
	if side == Long {
		return c.High > take
	}
	return c.Low < take
}

func hitLimit(o Order, c market.Candle) bool {
	if o.Quantity > 0 {
		return c.Low < o.Price
	}
	return c.High > o.Price
}

// takeProfitFirst resolves a candle that reached both exits.
func takeProfitFirst(policy TieBreak, side Side, c market.Candle) bool {
	if policy == TieBreakStopFirst {
		return false
	}
	return (side == Long && c.Close > c.Open) || (side == Short && c.Close < c.Open)
}

// adversePrice is the worst price the candle reached for side.
func adversePrice(side Side, c market.Candle) float64 {
	if side == Long {
		return c.Low
	}
	return c.High
}
