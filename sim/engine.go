package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/backtrader/internal/id"
	"github.com/rustyeddy/backtrader/market"
)

// Engine simulates one futures account trading one symbol. A run calls
// Observe with each new candle, lets the strategy trade, then calls Match.
type Engine struct {
	mu     sync.Mutex
	cfg    TradingConfig
	symbol market.SymbolInfo
	log    *zap.Logger
	newID  func(time.Time) string

	leverage int
	initial  Balance
	balance  Balance
	slots    Slots
	position *Position
	history  []*Position
	last     *market.Candle
	fatal    error
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithIDs replaces the position ID source.
func WithIDs(fn func(time.Time) string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func NewEngine(cfg TradingConfig, symbol market.SymbolInfo, balance Balance, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = TieBreakDirection
	}
	if balance.Asset == "" {
		return nil, errors.New("new engine: balance asset is required")
	}
	if balance.Total <= 0 {
		return nil, fmt.Errorf("new engine: starting balance must be positive, got %g", balance.Total)
	}
	balance.Available = balance.Total

	e := &Engine{
		cfg:      cfg,
		symbol:   symbol,
		log:      zap.NewNop(),
		newID:    id.At,
		leverage: cfg.Leverage,
		initial:  balance,
		balance:  balance,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(zap.String("symbol", symbol.Symbol))
	return e, nil
}

// Observe makes c the latest candle. Limit validation uses its close and
// the next Match evaluates it. Orders pending at this point are armed:
// only they can trigger against c, so an order the strategy places after
// seeing c waits for the following candle.
func (e *Engine) Observe(c market.Candle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	if e.last != nil && !c.OpenTime.After(e.last.OpenTime) {
		return fmt.Errorf("observe: candle %s is not after %s",
			c.OpenTime.UTC().Format(time.RFC3339), e.last.OpenTime.UTC().Format(time.RFC3339))
	}
	e.last = &c
	e.slots.Arm()
	return nil
}

// Match evaluates the latest candle against the armed orders and the
// open position. A market order always fills at the candle's close. A
// *NotEnoughFundsError means the account is wiped out; every later call
// returns the same error.
func (e *Engine) Match() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	if e.last == nil {
		return nil
	}
	c := *e.last
	at := c.CloseTime(e.cfg.Interval)
	justEntered := false

	if o, ok := e.slots.Get(Market); ok {
		e.slots.Cancel(Market)
		closed, err := e.fillLocked(at, c.Close, o.Quantity, ExitMarket)
		if err != nil {
			return fmt.Errorf("match market: %w", err)
		}
		if closed {
			if err := e.checkFundsLocked(); err != nil {
				return err
			}
		}
		justEntered = true
	}

	if e.position == nil {
		if o, ok := e.slots.Armed(Limit); ok && hitLimit(o, c) {
			e.slots.Cancel(Limit)
			if _, err := e.fillLocked(at, o.Price, o.Quantity, ExitNone); err != nil {
				return fmt.Errorf("match limit: %w", err)
			}
			justEntered = true
		}
	}

	if e.position == nil || justEntered {
		return nil
	}

	if e.matchExitsLocked(c, at) {
		return e.checkFundsLocked()
	}

	pos := e.position
	worst := adversePrice(pos.Side(), c)
	if pos.IsLiquidated(e.balance.Total, worst) {
		e.log.Error("position liquidated",
			zap.String("position", pos.ID),
			zap.Float64("price", worst),
			zap.Float64("total", e.balance.Total),
		)
		if err := e.closeLocked(at, worst, ExitLiquidation); err != nil {
			return fmt.Errorf("match liquidation: %w", err)
		}
		return e.checkFundsLocked()
	}
	return nil
}

// matchExitsLocked runs the stop-loss and take-profit checks and reports
// whether the position was closed.
func (e *Engine) matchExitsLocked(c market.Candle, at time.Time) bool {
	pos := e.position
	side := pos.Side()

	sl, hasSL := e.slots.Armed(StopLossMarket)
	tp, hasTP := e.slots.Armed(TakeProfitMarket)
	slHit := hasSL && hitStopLoss(side, sl.StopPrice, c)
	tpHit := hasTP && hitTakeProfit(side, tp.StopPrice, c)

	var price float64
	var reason ExitReason
	switch {
	case slHit && tpHit:
		pos.ambiguous = true
		if takeProfitFirst(e.cfg.TieBreak, side, c) {
			price, reason = tp.StopPrice, ExitTakeProfit
		} else {
			price, reason = sl.StopPrice, ExitStopLoss
		}
		e.log.Warn("stop-loss and take-profit reached on the same candle",
			zap.String("position", pos.ID),
			zap.Time("candle", c.OpenTime),
			zap.String("policy", string(e.cfg.TieBreak)),
			zap.String("chosen", string(reason)),
		)
	case slHit:
		price, reason = sl.StopPrice, ExitStopLoss
	case tpHit:
		price, reason = tp.StopPrice, ExitTakeProfit
	default:
		return false
	}

	if err := e.closeLocked(at, price, reason); err != nil {
		// unreachable: the current position is never closed
		e.log.Error("close position", zap.Error(err))
		return false
	}
	return true
}

// fillLocked opens, grows, shrinks or closes the position. It reports
// whether the fill closed the position.
func (e *Engine) fillLocked(at time.Time, price, quantity float64, reason ExitReason) (bool, error) {
	if e.position == nil {
		pos, err := NewPosition(e.newID(at), e.symbol.Symbol, at, price, quantity, e.leverage)
		if err != nil {
			return false, err
		}
		pos.fees += e.fee(price, quantity, pos.leverage)
		e.balance.reserve(price * math.Abs(quantity))
		e.position = pos
		e.log.Info("position opened",
			zap.String("position", pos.ID),
			zap.Stringer("side", pos.Side()),
			zap.Float64("price", price),
			zap.Float64("quantity", quantity),
			zap.Int("leverage", pos.leverage),
		)
		return false, nil
	}

	pos := e.position
	applied, err := pos.Adjust(at, price, quantity)
	if err != nil {
		return false, err
	}
	pos.fees += e.fee(price, applied, pos.leverage)

	if pos.IsClosed() {
		pos.reason = reason
		e.settleLocked()
		return true, nil
	}
	if sideOf(applied) == pos.Side() {
		e.balance.reserve(price * math.Abs(applied))
	} else {
		e.balance.release(price * math.Abs(applied))
	}
	e.log.Debug("position adjusted",
		zap.String("position", pos.ID),
		zap.Float64("price", price),
		zap.Float64("quantity", applied),
		zap.Float64("open", pos.Quantity()),
	)
	return false, nil
}

func (e *Engine) closeLocked(at time.Time, price float64, reason ExitReason) error {
	pos := e.position
	applied, err := pos.Close(at, price)
	if err != nil {
		return err
	}
	pos.fees += e.fee(price, applied, pos.leverage)
	pos.reason = reason
	e.settleLocked()
	return nil
}

// settleLocked books the just-closed position and clears its exit orders.
func (e *Engine) settleLocked() {
	pos := e.position
	net := pos.RealizedProfit()
	e.balance.settle(net)
	e.history = append(e.history, pos)
	e.position = nil
	e.slots.Cancel(StopLossMarket)
	e.slots.Cancel(TakeProfitMarket)

	e.log.Info("position closed",
		zap.String("position", pos.ID),
		zap.String("reason", string(pos.reason)),
		zap.Float64("price", pos.ExitPrice()),
		zap.Float64("profit", net),
		zap.Float64("total", e.balance.Total),
	)
}

func (e *Engine) checkFundsLocked() error {
	if e.balance.Total > 0 {
		return nil
	}
	e.fatal = &NotEnoughFundsError{Balance: e.balance}
	e.log.Error("account wiped out", zap.Float64("total", e.balance.Total))
	return e.fatal
}

func (e *Engine) fee(price, quantity float64, leverage int) float64 {
	return e.cfg.FeeRatio * price * math.Abs(quantity) * float64(leverage)
}

// Flatten closes any open position at the latest close and cancels every
// pending order.
func (e *Engine) Flatten(reason ExitReason) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	e.slots.CancelAll()
	if e.position == nil || e.last == nil {
		return nil
	}
	at := e.last.CloseTime(e.cfg.Interval)
	if err := e.closeLocked(at, e.last.Close, reason); err != nil {
		return fmt.Errorf("flatten: %w", err)
	}
	return e.checkFundsLocked()
}

// Trader

func (e *Engine) SubmitMarket(quantity float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	q, err := e.quantityLocked(quantity)
	if err != nil {
		return fmt.Errorf("submit market: %w", err)
	}
	e.slots.Submit(MarketOrder(q))
	return nil
}

func (e *Engine) SubmitLimit(quantity, price float64, tif TimeInForce) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	q, err := e.quantityLocked(quantity)
	if err != nil {
		return fmt.Errorf("submit limit: %w", err)
	}
	price = e.symbol.RoundPrice(price)
	if price <= 0 || math.IsNaN(price) {
		return fmt.Errorf("submit limit: %w: %g", ErrInvalidOrderPrice, price)
	}
	if e.last == nil {
		return fmt.Errorf("submit limit: %w", ErrNoPrice)
	}
	mark := e.last.Close
	if q > 0 && price >= mark {
		return fmt.Errorf("submit limit: %w: buy at %g must be below close %g", ErrInvalidOrderPrice, price, mark)
	}
	if q < 0 && price <= mark {
		return fmt.Errorf("submit limit: %w: sell at %g must be above close %g", ErrInvalidOrderPrice, price, mark)
	}
	e.slots.Submit(LimitOrder(q, price, tif))
	return nil
}

func (e *Engine) SubmitStopLoss(stop float64) error {
	return e.submitStop(StopLossOrder, stop)
}

func (e *Engine) SubmitTakeProfit(stop float64) error {
	return e.submitStop(TakeProfitOrder, stop)
}

func (e *Engine) submitStop(build func(float64) Order, stop float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}
	stop = e.symbol.RoundPrice(stop)
	o := build(stop)
	if stop <= 0 || math.IsNaN(stop) {
		return fmt.Errorf("submit %s: %w: %g", o.Kind, ErrInvalidOrderPrice, stop)
	}
	e.slots.Submit(o)
	return nil
}

// quantityLocked rounds to the step size and applies the symbol filters to
// anything that is not a pure reduction of the open position.
func (e *Engine) quantityLocked(quantity float64) (float64, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidQuantity, quantity)
	}
	q := e.symbol.RoundQuantity(quantity)
	if q == 0 {
		return 0, fmt.Errorf("%w: %g rounds to zero", ErrInvalidQuantity, quantity)
	}
	reducing := e.position != nil && sideOf(q) != e.position.Side()
	if !reducing && e.last != nil {
		if err := e.symbol.CheckQuantity(q, e.last.Close); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
		}
	}
	return q, nil
}

func (e *Engine) CancelOrders() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots.CancelAll()
}

// SetLeverage applies to positions opened after the call.
func (e *Engine) SetLeverage(leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("set leverage: %w: %d", ErrInvalidLeverage, leverage)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leverage = leverage
	return nil
}

func (e *Engine) Leverage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leverage
}

func (e *Engine) OpenOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots.Open()
}

func (e *Engine) Position() *Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.position == nil {
		return nil
	}
	return e.position.clone()
}

func (e *Engine) Balance(asset string) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if asset != e.balance.Asset {
		return Balance{}, fmt.Errorf("balance: %w: %q", ErrUnknownAsset, asset)
	}
	return e.balance, nil
}

func (e *Engine) Config() TradingConfig    { return e.cfg }
func (e *Engine) Symbol() market.SymbolInfo { return e.symbol }

// Reporting

// Positions returns the closed positions in closing order.
func (e *Engine) Positions() []*Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Position, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) InitialBalance() Balance { return e.initial }

func (e *Engine) CurrentBalance() Balance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Equity is Total plus the open position's profit at the latest close,
// net of its accrued fees.
func (e *Engine) Equity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	eq := e.balance.Total
	if e.position != nil && e.last != nil {
		eq += e.position.Profit(e.last.Close) - e.position.fees
	}
	return eq
}

// Err returns the fatal error that stopped the engine, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

var _ Trader = (*Engine)(nil)
