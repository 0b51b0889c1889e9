package sim

import (
	"fmt"
	"time"
)

// TieBreak decides which exit wins when a single candle reaches both the
// stop-loss and the take-profit.
type TieBreak string

const (
	// TieBreakDirection takes profit first when the candle moved in the
	// position's favour, stop-loss first otherwise (dojis included).
	TieBreakDirection TieBreak = "direction"
	// TieBreakStopFirst always assumes the stop was reached first.
	TieBreakStopFirst TieBreak = "stop_first"
)

// TradingConfig is fixed for the lifetime of an Engine.
type TradingConfig struct {
	Ratio    float64
	Leverage int
	FeeRatio float64
	Interval time.Duration
	TieBreak TieBreak
}

func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		Ratio:    0.01,
		Leverage: 1,
		Interval: time.Minute,
		TieBreak: TieBreakDirection,
	}
}

func (c TradingConfig) Validate() error {
	if c.Ratio <= 0 || c.Ratio >= 1 {
		return fmt.Errorf("trading.ratio must be in (0, 1), got %g", c.Ratio)
	}
	if c.Leverage < 1 {
		return fmt.Errorf("trading.leverage: %w: %d", ErrInvalidLeverage, c.Leverage)
	}
	if c.FeeRatio < 0 || c.FeeRatio >= 1 {
		return fmt.Errorf("trading.fee_ratio must be in [0, 1), got %g", c.FeeRatio)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("trading.interval must be positive")
	}
	switch c.TieBreak {
	case "", TieBreakDirection, TieBreakStopFirst:
	default:
		return fmt.Errorf("trading.tie_break: unknown policy %q", c.TieBreak)
	}
	return nil
}
