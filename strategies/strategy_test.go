package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtrader/market"
	"github.com/rustyeddy/backtrader/sim"
)

var t0 = time.Unix(1640991600, 0).UTC()

func bar(i int, o, h, l, c float64) market.Candle {
	return market.Candle{OpenTime: t0.Add(time.Duration(i) * time.Minute), Open: o, High: h, Low: l, Close: c}
}

func newEngine(t *testing.T) *sim.Engine {
	t.Helper()
	cfg := sim.TradingConfig{Ratio: 0.01, Leverage: 10, Interval: time.Minute}
	e, err := sim.NewEngine(cfg, market.SymbolInfo{Symbol: "BTCUSDT", MarginAsset: "USDT"}, sim.NewBalance("USDT", 1000))
	require.NoError(t, err)
	return e
}

func ordersByKind(orders []sim.Order) map[sim.OrderKind]sim.Order {
	m := make(map[sim.OrderKind]sim.Order, len(orders))
	for _, o := range orders {
		m[o.Kind] = o
	}
	return m
}

func TestByName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bracket", "limit-bracket", "noop"}, Names())

	s, err := ByName("NOOP", Params{})
	require.NoError(t, err)
	assert.Equal(t, "noop", s.Name())

	s, err = ByName("none", Params{})
	require.NoError(t, err)
	assert.Equal(t, "noop", s.Name())

	s, err = ByName("bracket", Params{TakeProfit: 400, StopLoss: 400})
	require.NoError(t, err)
	assert.Equal(t, "bracket", s.Name())

	_, err = ByName("bracket", Params{})
	assert.ErrorContains(t, err, "distances must be positive")

	_, err = ByName("limit-bracket", Params{TakeProfit: 1, StopLoss: 1})
	assert.ErrorContains(t, err, "limit_offset")

	_, err = ByName("ema-cross", Params{})
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestQuantityForRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.01, QuantityForRatio(1000, 1000, 0.01, 1, sim.Long), 1e-15)
	assert.InDelta(t, 0.1, QuantityForRatio(1000, 1000, 0.01, 10, sim.Long), 1e-15)
	assert.InDelta(t, -0.1, QuantityForRatio(1000, 1000, 0.01, 10, sim.Short), 1e-15)
	assert.InDelta(t, 0.25, QuantityForRatio(500, 2000, 0.05, 20, sim.Long), 1e-15)
	assert.Zero(t, QuantityForRatio(1000, 0, 0.01, 10, sim.Long))
	assert.Zero(t, QuantityForRatio(0, 1000, 0.01, 10, sim.Long))
	assert.Zero(t, QuantityForRatio(1000, 1000, 0.01, 0, sim.Long))
}

func TestBracketSizeFollowsLeverage(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	require.NoError(t, e.SetLeverage(20))
	s, err := NewBracket(Params{Asset: "USDT", TakeProfit: 400, StopLoss: 400})
	require.NoError(t, err)

	c := bar(0, 950, 1100, 900, 1000)
	require.NoError(t, e.Observe(c))
	require.NoError(t, s.OnCandle(context.Background(), []market.Candle{c}, e))
	assert.InDelta(t, 0.2, ordersByKind(e.OpenOrders())[sim.Market].Quantity, 1e-12)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	require.NoError(t, e.Observe(bar(0, 950, 1100, 900, 1000)))
	assert.NoError(t, Noop{}.OnCandle(context.Background(), []market.Candle{bar(0, 950, 1100, 900, 1000)}, e))
	assert.Empty(t, e.OpenOrders())
}

func TestBracketEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bar  market.Candle
		qty  float64
		tp   float64
		sl   float64
	}{
		{"bullish goes long", bar(0, 950, 1100, 900, 1000), 0.1, 1400, 600},
		{"bearish goes short", bar(0, 1000, 1200, 800, 900), -1000 * 0.01 * 10 / 900, 500, 1300},
		{"doji goes short", bar(0, 1000, 1200, 800, 1000), -0.1, 600, 1400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t)
			s, err := NewBracket(Params{Asset: "USDT", TakeProfit: 400, StopLoss: 400})
			require.NoError(t, err)

			require.NoError(t, e.Observe(tt.bar))
			require.NoError(t, s.OnCandle(context.Background(), []market.Candle{tt.bar}, e))

			orders := ordersByKind(e.OpenOrders())
			require.Len(t, orders, 3)
			assert.InDelta(t, tt.qty, orders[sim.Market].Quantity, 1e-12)
			assert.Equal(t, tt.tp, orders[sim.TakeProfitMarket].StopPrice)
			assert.Equal(t, tt.sl, orders[sim.StopLossMarket].StopPrice)
		})
	}
}

func TestBracketWaitsWhileOpen(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	s, err := NewBracket(Params{TakeProfit: 400, StopLoss: 400})
	require.NoError(t, err)

	c0 := bar(0, 950, 1100, 900, 1000)
	require.NoError(t, e.Observe(c0))
	require.NoError(t, s.OnCandle(context.Background(), []market.Candle{c0}, e))
	require.NoError(t, e.Match())
	require.NotNil(t, e.Position())

	c1 := bar(1, 1000, 1200, 800, 900)
	require.NoError(t, e.Observe(c1))
	require.NoError(t, s.OnCandle(context.Background(), []market.Candle{c0, c1}, e))
	orders := ordersByKind(e.OpenOrders())
	_, hasMarket := orders[sim.Market]
	assert.False(t, hasMarket)
}

func TestBracketSkipsNegativeStop(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	s, err := NewBracket(Params{Asset: "USDT", TakeProfit: 400, StopLoss: 2000})
	require.NoError(t, err)

	c := bar(0, 950, 1100, 900, 1000)
	require.NoError(t, e.Observe(c))
	require.NoError(t, s.OnCandle(context.Background(), []market.Candle{c}, e))
	orders := ordersByKind(e.OpenOrders())
	assert.Len(t, orders, 2)
	_, hasStop := orders[sim.StopLossMarket]
	assert.False(t, hasStop)
}

func TestLimitBracket(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	s, err := NewLimitBracket(Params{Asset: "USDT", TakeProfit: 300, StopLoss: 200, LimitOffset: 50})
	require.NoError(t, err)
	ctx := context.Background()

	bars := []market.Candle{
		bar(0, 980, 1100, 980, 1000),
		bar(1, 1000, 1050, 960, 1040),
		bar(2, 1040, 1060, 970, 1030),
		bar(3, 1030, 1040, 960, 1000),
	}
	step := func(i int) {
		t.Helper()
		require.NoError(t, e.Observe(bars[i]))
		require.NoError(t, s.OnCandle(ctx, bars[:i+1], e))
		require.NoError(t, e.Match())
	}

	step(0)
	orders := ordersByKind(e.OpenOrders())
	require.Len(t, orders, 3)
	lim := orders[sim.Limit]
	assert.Equal(t, 950.0, lim.Price)
	assert.InDelta(t, 1000*0.01*10/950.0, lim.Quantity, 1e-12)
	assert.Equal(t, 1250.0, orders[sim.TakeProfitMarket].StopPrice)
	assert.Equal(t, 750.0, orders[sim.StopLossMarket].StopPrice)
	assert.Nil(t, e.Position())

	step(1)
	assert.Equal(t, 950.0, ordersByKind(e.OpenOrders())[sim.Limit].Price, "resting limit is kept for a candle")
	assert.Nil(t, e.Position(), "low 960 never reached 950")

	step(2)
	assert.Equal(t, 980.0, ordersByKind(e.OpenOrders())[sim.Limit].Price, "re-priced from the close")
	assert.Nil(t, e.Position(), "a limit placed on this candle does not fill against it")

	step(3)
	pos := e.Position()
	require.NotNil(t, pos)
	assert.Equal(t, 980.0, pos.EntryPrice())
	assert.InDelta(t, 1000*0.01*10/980.0, pos.EntryQuantity(), 1e-12)
}
