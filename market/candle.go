package market

import "time"

// Candle is one OHLCV bar. OpenTime is the start of the bar; the bar
// closes one interval later.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// CloseTime returns the instant the bar closes for the given interval.
func (c Candle) CloseTime(interval time.Duration) time.Time {
	return c.OpenTime.Add(interval)
}

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Valid reports whether the prices are positive and High/Low bound the body.
func (c Candle) Valid() bool {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.Low > c.High {
		return false
	}
	return c.High >= c.Open && c.High >= c.Close && c.Low <= c.Open && c.Low <= c.Close
}
