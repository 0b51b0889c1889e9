package sim

import (
	"fmt"
	"math"
	"time"
)

type Side int8

const (
	Long  Side = 1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

func sideOf(q float64) Side {
	if q < 0 {
		return Short
	}
	return Long
}

// Fill is one execution against a position. Quantity is signed.
type Fill struct {
	Time     time.Time
	Price    float64
	Quantity float64
}

type ExitReason string

const (
	ExitNone        ExitReason = ""
	ExitMarket      ExitReason = "market"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitLiquidation ExitReason = "liquidation"
	ExitEndOfData   ExitReason = "end_of_data"
)

// dustTolerance is the relative size below which a remaining quantity is
// treated as zero.
const dustTolerance = 1e-9

// Position is the ledger of fills for one trade. The first fill is the
// entry and fixes the side; the position is closed exactly when the fill
// quantities sum to zero.
type Position struct {
	ID     string
	Symbol string

	leverage  int
	fills     []Fill
	sum       float64
	fees      float64
	reason    ExitReason
	ambiguous bool
}

func NewPosition(id, symbol string, t time.Time, price, quantity float64, leverage int) (*Position, error) {
	if quantity == 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, fmt.Errorf("new position: %w: %g", ErrInvalidQuantity, quantity)
	}
	if price <= 0 {
		return nil, fmt.Errorf("new position: %w: %g", ErrInvalidOrderPrice, price)
	}
	if leverage < 1 {
		return nil, fmt.Errorf("new position: %w: %d", ErrInvalidLeverage, leverage)
	}
	return &Position{
		ID:       id,
		Symbol:   symbol,
		leverage: leverage,
		fills:    []Fill{{Time: t, Price: price, Quantity: quantity}},
		sum:      quantity,
	}, nil
}

func (p *Position) Leverage() int { return p.leverage }

func (p *Position) Side() Side { return sideOf(p.fills[0].Quantity) }

// Quantity is the signed open quantity.
func (p *Position) Quantity() float64 { return p.sum }

func (p *Position) IsClosed() bool { return p.sum == 0 }

// Fills returns a copy of the fill history.
func (p *Position) Fills() []Fill {
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

func (p *Position) Fees() float64          { return p.fees }
func (p *Position) ExitReason() ExitReason { return p.reason }

// Ambiguous is set when both exits qualified on the same candle and the
// tie-break picked one.
func (p *Position) Ambiguous() bool { return p.ambiguous }

func (p *Position) EntryTime() time.Time   { return p.fills[0].Time }
func (p *Position) EntryPrice() float64    { return p.fills[0].Price }
func (p *Position) EntryQuantity() float64 { return p.fills[0].Quantity }
func (p *Position) Adjustments() int       { return len(p.fills) - 1 }

// ExitTime and ExitPrice are zero while the position is open.
func (p *Position) ExitTime() time.Time { return p.exitFill().Time }
func (p *Position) ExitPrice() float64  { return p.exitFill().Price }

func (p *Position) exitFill() Fill {
	if !p.IsClosed() {
		return Fill{}
	}
	return p.fills[len(p.fills)-1]
}

// AveragePrice is the quantity weighted price of the fills that opened or
// added to the position.
func (p *Position) AveragePrice() float64 {
	side := p.Side()
	var qty, notional float64
	for _, f := range p.fills {
		if sideOf(f.Quantity) != side {
			continue
		}
		qty += f.Quantity
		notional += f.Price * f.Quantity
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

// Adjust appends a fill. A reduction larger than the open quantity is
// clamped so the position closes instead of flipping. It returns the
// quantity actually applied.
func (p *Position) Adjust(t time.Time, price, quantity float64) (float64, error) {
	if p.IsClosed() {
		return 0, ErrPositionClosed
	}
	if quantity == 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0, fmt.Errorf("adjust: %w: %g", ErrInvalidQuantity, quantity)
	}
	if price <= 0 {
		return 0, fmt.Errorf("adjust: %w: %g", ErrInvalidOrderPrice, price)
	}

	next := p.sum + quantity
	if sideOf(next) != p.Side() || math.Abs(next) <= dustTolerance*math.Abs(p.sum) {
		quantity = -p.sum
		next = 0
	}

	p.fills = append(p.fills, Fill{Time: t, Price: price, Quantity: quantity})
	p.sum = next
	return quantity, nil
}

// Close appends a fill that brings the open quantity to exactly zero.
func (p *Position) Close(t time.Time, price float64) (float64, error) {
	if p.IsClosed() {
		return 0, ErrPositionClosed
	}
	return p.Adjust(t, price, -p.sum)
}

// Profit is the leveraged profit if the open quantity were valued at price:
// leverage * sum(price*q - p*q). For a closed position the price term
// cancels and the result is the realized profit.
func (p *Position) Profit(price float64) float64 {
	var total float64
	for _, f := range p.fills {
		total += price*f.Quantity - f.Price*f.Quantity
	}
	return float64(p.leverage) * total
}

// RealizedProfit is the profit of a closed position net of fees.
func (p *Position) RealizedProfit() float64 {
	if !p.IsClosed() {
		return 0
	}
	return p.Profit(p.ExitPrice()) - p.fees
}

// IsLiquidated reports whether the loss at price wipes out total.
func (p *Position) IsLiquidated(total, price float64) bool {
	profit := p.Profit(price) - p.fees
	return profit < 0 && -profit >= total
}

func (p *Position) clone() *Position {
	c := *p
	c.fills = p.Fills()
	return &c
}
