package market

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

var (
	ErrNoCandles       = errors.New("candle set is empty")
	ErrInvalidInterval = errors.New("candle set interval must be positive")
)

// CandleSet is an ordered series of bars for one symbol at one interval.
type CandleSet struct {
	Symbol   string
	Interval time.Duration
	Source   string
	Candles  []Candle
}

// Gap is a run of missing bars between two present ones.
type Gap struct {
	StartIdx int           // index of the bar before the gap
	Missing  int           // number of missing intervals
	Start    time.Time     // open time of the first missing bar
	Span     time.Duration // Missing * Interval
}

func NewCandleSet(symbol string, interval time.Duration, candles []Candle) *CandleSet {
	return &CandleSet{
		Symbol:   symbol,
		Interval: interval,
		Candles:  candles,
	}
}

func (cs *CandleSet) Len() int { return len(cs.Candles) }

func (cs *CandleSet) Start() time.Time {
	if len(cs.Candles) == 0 {
		return time.Time{}
	}
	return cs.Candles[0].OpenTime
}

// End is the close instant of the last bar.
func (cs *CandleSet) End() time.Time {
	if len(cs.Candles) == 0 {
		return time.Time{}
	}
	return cs.Candles[len(cs.Candles)-1].CloseTime(cs.Interval)
}

// Between returns the bars with start <= OpenTime < end as a new set
// sharing the underlying array. A zero start or end leaves that side open.
func (cs *CandleSet) Between(start, end time.Time) *CandleSet {
	lo, hi := 0, len(cs.Candles)
	if !start.IsZero() {
		lo = sort.Search(len(cs.Candles), func(i int) bool {
			return !cs.Candles[i].OpenTime.Before(start)
		})
	}
	if !end.IsZero() {
		hi = sort.Search(len(cs.Candles), func(i int) bool {
			return !cs.Candles[i].OpenTime.Before(end)
		})
	}
	if hi < lo {
		hi = lo
	}
	out := *cs
	out.Candles = cs.Candles[lo:hi:hi]
	return &out
}

// Validate checks ordering and bar sanity. Gaps are allowed; see Gaps.
func (cs *CandleSet) Validate() error {
	if cs.Interval <= 0 {
		return ErrInvalidInterval
	}
	if len(cs.Candles) == 0 {
		return ErrNoCandles
	}
	for i, c := range cs.Candles {
		if !c.Valid() {
			return fmt.Errorf("candle %d (%s): invalid prices o=%g h=%g l=%g c=%g",
				i, c.OpenTime.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
		}
		if i == 0 {
			continue
		}
		if !c.OpenTime.After(cs.Candles[i-1].OpenTime) {
			return fmt.Errorf("candle %d (%s): open time not after previous candle",
				i, c.OpenTime.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// Gaps reports the places where consecutive bars are more than one
// interval apart.
func (cs *CandleSet) Gaps() []Gap {
	var gaps []Gap
	if cs.Interval <= 0 {
		return gaps
	}
	for i := 1; i < len(cs.Candles); i++ {
		delta := cs.Candles[i].OpenTime.Sub(cs.Candles[i-1].OpenTime)
		if delta <= cs.Interval {
			continue
		}
		missing := int(delta/cs.Interval) - 1
		if missing <= 0 {
			continue
		}
		gaps = append(gaps, Gap{
			StartIdx: i - 1,
			Missing:  missing,
			Start:    cs.Candles[i-1].OpenTime.Add(cs.Interval),
			Span:     time.Duration(missing) * cs.Interval,
		})
	}
	return gaps
}

// PriceSummary holds the extremes of a series.
type PriceSummary struct {
	Low      float64
	LowTime  time.Time
	High     float64
	HighTime time.Time
	First    float64
	Last     float64
}

func (cs *CandleSet) Summary() PriceSummary {
	var s PriceSummary
	if len(cs.Candles) == 0 {
		return s
	}
	s.First = cs.Candles[0].Open
	s.Last = cs.Candles[len(cs.Candles)-1].Close
	s.Low = cs.Candles[0].Low
	s.LowTime = cs.Candles[0].OpenTime
	s.High = cs.Candles[0].High
	s.HighTime = cs.Candles[0].OpenTime
	for _, c := range cs.Candles[1:] {
		if c.Low < s.Low {
			s.Low, s.LowTime = c.Low, c.OpenTime
		}
		if c.High > s.High {
			s.High, s.HighTime = c.High, c.OpenTime
		}
	}
	return s
}

func (cs *CandleSet) PrintStats(w io.Writer) {
	s := cs.Summary()
	gaps := cs.Gaps()
	missing := 0
	for _, g := range gaps {
		missing += g.Missing
	}
	iv, _ := IntervalString(cs.Interval)

	fmt.Fprintln(w, "---- CandleSet Stats ----")
	fmt.Fprintf(w, "  Symbol: %s (%s)\n", cs.Symbol, iv)
	fmt.Fprintf(w, "   Range: %s → %s\n",
		cs.Start().UTC().Format(time.RFC3339), cs.End().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, " Candles: %d\n", len(cs.Candles))
	fmt.Fprintf(w, "    Gaps: %d (%d bars missing)\n", len(gaps), missing)
	fmt.Fprintf(w, "     Low: %g at %s\n", s.Low, s.LowTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "    High: %g at %s\n", s.High, s.HighTime.UTC().Format(time.RFC3339))
	fmt.Fprintln(w, "--------------------------")
}

// Iterator walks a CandleSet oldest first.
type Iterator struct {
	cs  *CandleSet
	idx int
}

func (cs *CandleSet) Iterator() *Iterator {
	return &Iterator{
		cs:  cs,
		idx: -1,
	}
}

func (it *Iterator) Next() bool {
	if it.idx >= len(it.cs.Candles) {
		return false
	}
	it.idx++
	return it.idx < len(it.cs.Candles)
}

func (it *Iterator) Candle() Candle {
	return it.cs.Candles[it.idx]
}

func (it *Iterator) Index() int {
	return it.idx
}

// Window returns every bar up to and including the current one. The
// slice capacity is clipped so appending to it can never expose or
// overwrite future bars.
func (it *Iterator) Window() []Candle {
	n := it.idx + 1
	return it.cs.Candles[:n:n]
}

// CloseTime is the close instant of the current bar.
func (it *Iterator) CloseTime() time.Time {
	return it.Candle().CloseTime(it.cs.Interval)
}
