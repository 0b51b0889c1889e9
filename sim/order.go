package sim

import "fmt"

// OrderKind names an order slot. The engine holds at most one pending
// order per kind.
type OrderKind int8

const (
	Market OrderKind = iota
	Limit
	StopLossMarket
	TakeProfitMarket

	numOrderKinds
)

func (k OrderKind) String() string {
	switch k {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case StopLossMarket:
		return "STOP_MARKET"
	case TakeProfitMarket:
		return "TAKE_PROFIT_MARKET"
	}
	return fmt.Sprintf("OrderKind(%d)", int8(k))
}

// TimeInForce is carried on limit orders for reporting. The matcher
// treats every limit order as good-till-cancel.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
	GTX TimeInForce = "GTX"
)

// Order is a pending instruction. Quantity is signed (positive buys) and
// used by Market and Limit; Price by Limit; StopPrice by the two exit kinds.
type Order struct {
	Kind        OrderKind
	Quantity    float64
	Price       float64
	StopPrice   float64
	TimeInForce TimeInForce
}

func MarketOrder(quantity float64) Order {
	return Order{Kind: Market, Quantity: quantity}
}

func LimitOrder(quantity, price float64, tif TimeInForce) Order {
	if tif == "" {
		tif = GTC
	}
	return Order{Kind: Limit, Quantity: quantity, Price: price, TimeInForce: tif}
}

func StopLossOrder(stop float64) Order {
	return Order{Kind: StopLossMarket, StopPrice: stop}
}

func TakeProfitOrder(stop float64) Order {
	return Order{Kind: TakeProfitMarket, StopPrice: stop}
}

func (o Order) String() string {
	switch o.Kind {
	case Market:
		return fmt.Sprintf("%s qty=%g", o.Kind, o.Quantity)
	case Limit:
		return fmt.Sprintf("%s qty=%g price=%g tif=%s", o.Kind, o.Quantity, o.Price, o.TimeInForce)
	default:
		return fmt.Sprintf("%s stop=%g", o.Kind, o.StopPrice)
	}
}
