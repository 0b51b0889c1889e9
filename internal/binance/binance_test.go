package binance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var t0 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func kline(t time.Time, close float64) *futures.Kline {
	p := fmt.Sprintf("%g", close)
	return &futures.Kline{
		OpenTime:  t.UnixMilli(),
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		Volume:    "1.5",
		CloseTime: t.Add(time.Minute).UnixMilli() - 1,
	}
}

// fakeExchange serves minute klines from an in-memory series.
type fakeExchange struct {
	series []*futures.Kline
	calls  int
	fail   int
}

func (f *fakeExchange) klines(_ context.Context, _, _ string, start, end int64, limit int) ([]*futures.Kline, error) {
	f.calls++
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("503")
	}
	var out []*futures.Kline
	for _, k := range f.series {
		if k.OpenTime >= start && k.OpenTime <= end && len(out) < limit {
			out = append(out, k)
		}
	}
	return out, nil
}

func testClient(f *fakeExchange) *Client {
	return &Client{
		limiter:    rate.NewLimiter(rate.Inf, 1),
		log:        zap.NewNop(),
		maxRetries: 2,
		backoff:    time.Millisecond,
		klines:     f.klines,
	}
}

func TestKlinesPaging(t *testing.T) {
	t.Parallel()

	n := MaxKlines*2 + 10
	f := &fakeExchange{}
	for i := 0; i < n; i++ {
		f.series = append(f.series, kline(t0.Add(time.Duration(i)*time.Minute), float64(100+i)))
	}

	c := testClient(f)
	got, err := c.Klines(context.Background(), "BTCUSDT", time.Minute, t0, t0.Add(time.Duration(n)*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, 3, f.calls)
	for i, candle := range got {
		assert.True(t, candle.OpenTime.Equal(t0.Add(time.Duration(i)*time.Minute)))
	}
	assert.Equal(t, float64(100+n-1), got[n-1].Close)
}

func TestKlinesRangeIsHalfOpen(t *testing.T) {
	t.Parallel()

	f := &fakeExchange{}
	for i := 0; i < 10; i++ {
		f.series = append(f.series, kline(t0.Add(time.Duration(i)*time.Minute), 1))
	}

	got, err := testClient(f).Klines(context.Background(), "BTCUSDT", time.Minute, t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].OpenTime.Equal(t0.Add(2*time.Minute)))
	assert.True(t, got[2].OpenTime.Equal(t0.Add(4*time.Minute)))
}

func TestKlinesRetries(t *testing.T) {
	t.Parallel()

	f := &fakeExchange{series: []*futures.Kline{kline(t0, 1)}, fail: 2}
	got, err := testClient(f).Klines(context.Background(), "BTCUSDT", time.Minute, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, f.calls)

	f = &fakeExchange{fail: 10}
	_, err = testClient(f).Klines(context.Background(), "BTCUSDT", time.Minute, t0, t0.Add(time.Hour))
	assert.ErrorContains(t, err, "503")
	assert.Equal(t, 3, f.calls)
}

func TestKlinesValidation(t *testing.T) {
	t.Parallel()

	c := testClient(&fakeExchange{})
	_, err := c.Klines(context.Background(), "BTCUSDT", 7*time.Minute, t0, t0.Add(time.Hour))
	assert.Error(t, err)
	_, err = c.Klines(context.Background(), "BTCUSDT", time.Minute, t0, t0)
	assert.ErrorContains(t, err, "not after")
}

func TestInterval(t *testing.T) {
	t.Parallel()

	for d, want := range map[time.Duration]string{
		time.Minute:        "1m",
		15 * time.Minute:   "15m",
		4 * time.Hour:      "4h",
		24 * time.Hour:     "1d",
		7 * 24 * time.Hour: "1w",
	} {
		got, err := Interval(d)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := Interval(time.Second)
	assert.Error(t, err)
}

func TestConvertKline(t *testing.T) {
	t.Parallel()

	c, err := ConvertKline(&futures.Kline{
		OpenTime: t0.UnixMilli(),
		Open:     "46216.93", High: "46271.08", Low: "46208.37", Close: "46250.00",
		Volume: "12.345",
	})
	require.NoError(t, err)
	assert.True(t, c.OpenTime.Equal(t0))
	assert.Equal(t, 46216.93, c.Open)
	assert.Equal(t, 46250.0, c.Close)
	assert.Equal(t, 12.345, c.Volume)

	_, err = ConvertKline(&futures.Kline{Open: "x"})
	assert.ErrorContains(t, err, "open")
	_, err = ConvertKline(nil)
	assert.Error(t, err)
}

func exchangeSymbol(name, status string) futures.Symbol {
	return futures.Symbol{
		Symbol:            name,
		Status:            status,
		BaseAsset:         "BTC",
		QuoteAsset:        "USDT",
		MarginAsset:       "USDT",
		PricePrecision:    2,
		QuantityPrecision: 3,
		Filters: []map[string]interface{}{
			{"filterType": "PRICE_FILTER", "tickSize": "0.10", "minPrice": "556.80"},
			{"filterType": "LOT_SIZE", "stepSize": "0.001", "minQty": "0.001", "maxQty": "1000"},
			{"filterType": "MARKET_LOT_SIZE", "stepSize": "0.001", "minQty": "0.001", "maxQty": "120"},
			{"filterType": "MIN_NOTIONAL", "notional": "100"},
		},
	}
}

func TestConvertSymbol(t *testing.T) {
	t.Parallel()

	info, err := ConvertSymbol(exchangeSymbol("BTCUSDT", "TRADING"))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", info.Symbol)
	assert.Equal(t, "USDT", info.MarginAsset)
	assert.Equal(t, 2, info.PricePrecision)
	assert.True(t, info.TickSize.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, info.StepSize.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, info.MaxQuantity.Equal(decimal.NewFromInt(1000)))
	assert.True(t, info.MinNotional.Equal(decimal.NewFromInt(100)))

	bad := exchangeSymbol("BTCUSDT", "TRADING")
	bad.Filters[0]["tickSize"] = "abc"
	_, err = ConvertSymbol(bad)
	assert.ErrorContains(t, err, "PRICE_FILTER.tickSize")

	bare, err := ConvertSymbol(futures.Symbol{Symbol: "XYZ"})
	require.NoError(t, err)
	assert.True(t, bare.TickSize.IsZero())
}

func TestConvertSymbols(t *testing.T) {
	t.Parallel()

	all := []futures.Symbol{
		exchangeSymbol("BTCUSDT", "TRADING"),
		exchangeSymbol("ETHUSDT", "TRADING"),
		exchangeSymbol("OLDUSDT", "SETTLING"),
	}

	every, err := ConvertSymbols(all)
	require.NoError(t, err)
	assert.Equal(t, 2, every.Len())

	some, err := ConvertSymbols(all, "ethusdt", "OLDUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, some.Len())
	_, ok := some.Get("ETHUSDT")
	assert.True(t, ok)

	_, err = ConvertSymbols(all, "BTCUSDT", "NOPE")
	assert.ErrorContains(t, err, "NOPE")
}
