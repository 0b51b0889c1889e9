package journal

import (
	"time"

	"github.com/rustyeddy/backtrader/sim"
)

// PositionRecord is one closed position as exported by a run.
type PositionRecord struct {
	RunID       string
	PositionID  string
	Symbol      string
	Side        string
	Leverage    int
	Quantity    float64 // entry quantity, signed
	Adjustments int
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	Profit      float64 // before fees
	Fees        float64
	NetProfit   float64
	Reason      string
	Ambiguous   bool
}

// NewPositionRecord flattens a closed position.
func NewPositionRecord(runID string, p *sim.Position) PositionRecord {
	gross := p.Profit(p.ExitPrice())
	return PositionRecord{
		RunID:       runID,
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Side:        p.Side().String(),
		Leverage:    p.Leverage(),
		Quantity:    p.EntryQuantity(),
		Adjustments: p.Adjustments(),
		EntryPrice:  p.EntryPrice(),
		ExitPrice:   p.ExitPrice(),
		OpenTime:    p.EntryTime(),
		CloseTime:   p.ExitTime(),
		Profit:      gross,
		Fees:        p.Fees(),
		NetProfit:   gross - p.Fees(),
		Reason:      string(p.ExitReason()),
		Ambiguous:   p.Ambiguous(),
	}
}

// EquitySnapshot is the account state at a candle close.
type EquitySnapshot struct {
	RunID     string
	Time      time.Time
	Balance   float64 // realized total
	Available float64
	Reserved  float64
	Equity    float64 // balance plus open profit
}

type Journal interface {
	RecordPosition(PositionRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// RunRecorder is implemented by journals that also keep run summaries.
type RunRecorder interface {
	RecordRun(Run) error
}

// Discard drops everything.
type Discard struct{}

func (Discard) RecordPosition(PositionRecord) error { return nil }
func (Discard) RecordEquity(EquitySnapshot) error   { return nil }
func (Discard) Close() error                        { return nil }

// Memory keeps records in slices. Handy for tests and for callers that
// post-process a run.
type Memory struct {
	Positions []PositionRecord
	Equity    []EquitySnapshot
	Runs      []Run
	Closed    bool
}

func (m *Memory) RecordPosition(r PositionRecord) error {
	m.Positions = append(m.Positions, r)
	return nil
}

func (m *Memory) RecordEquity(s EquitySnapshot) error {
	m.Equity = append(m.Equity, s)
	return nil
}

func (m *Memory) RecordRun(r Run) error {
	m.Runs = append(m.Runs, r)
	return nil
}

func (m *Memory) Close() error {
	m.Closed = true
	return nil
}
