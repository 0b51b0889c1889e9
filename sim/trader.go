package sim

import "github.com/rustyeddy/backtrader/market"

// Trader is the surface a strategy trades through. Submissions only take
// effect when the engine next matches.
type Trader interface {
	SubmitMarket(quantity float64) error
	SubmitLimit(quantity, price float64, tif TimeInForce) error
	SubmitStopLoss(stop float64) error
	SubmitTakeProfit(stop float64) error
	CancelOrders()
	SetLeverage(leverage int) error
	Leverage() int

	OpenOrders() []Order
	// Position returns a snapshot of the open position, or nil.
	Position() *Position
	Balance(asset string) (Balance, error)

	Config() TradingConfig
	Symbol() market.SymbolInfo
}
