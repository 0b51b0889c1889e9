package candlestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtrader/market"
)

var t0 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func bars(n int, interval time.Duration) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = market.Candle{
			OpenTime: t0.Add(time.Duration(i) * interval),
			Open:     p, High: p + 2, Low: p - 1, Close: p + 1,
			Volume: float64(10 * i),
		}
	}
	return out
}

func TestPutLoad(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	in := bars(5, time.Minute)
	// out of order on purpose
	require.NoError(t, s.Put("btcusdt", time.Minute, []market.Candle{in[3], in[0], in[4]}))
	require.NoError(t, s.Put("BTCUSDT", time.Minute, []market.Candle{in[1], in[2]}))

	cs, err := s.Load("BTCUSDT", time.Minute, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, in, cs.Candles)
	assert.Equal(t, time.Minute, cs.Interval)
	assert.NoError(t, cs.Validate())
}

func TestLoadRange(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	in := bars(10, time.Minute)
	require.NoError(t, s.Put("BTCUSDT", time.Minute, in))

	cs, err := s.Load("BTCUSDT", time.Minute, t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, in[2:5], cs.Candles)

	cs, err = s.Load("BTCUSDT", time.Minute, t0.Add(8*time.Minute), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, in[8:], cs.Candles)
}

func TestSeriesIsolated(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	require.NoError(t, s.Put("BTCUSDT", time.Minute, bars(3, time.Minute)))
	require.NoError(t, s.Put("BTCUSDT", time.Hour, bars(2, time.Hour)))
	require.NoError(t, s.Put("ETHUSDT", time.Minute, bars(4, time.Minute)))

	for _, tc := range []struct {
		symbol   string
		interval time.Duration
		want     int
	}{
		{"BTCUSDT", time.Minute, 3},
		{"BTCUSDT", time.Hour, 2},
		{"ETHUSDT", time.Minute, 4},
		{"ETHUSDT", time.Hour, 0},
	} {
		cs, err := s.Load(tc.symbol, tc.interval, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, tc.want, cs.Len(), "%s %s", tc.symbol, tc.interval)
	}
}

func TestLatestAndDelete(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	_, ok, err := s.Latest("BTCUSDT", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	in := bars(4, time.Minute)
	require.NoError(t, s.Put("BTCUSDT", time.Minute, in))
	require.NoError(t, s.Put("ETHUSDT", time.Minute, in))

	last, ok, err := s.Latest("BTCUSDT", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in[3], last)

	require.NoError(t, s.Delete("BTCUSDT", time.Minute))
	cs, err := s.Load("BTCUSDT", time.Minute, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, cs.Len())

	cs, err = s.Load("ETHUSDT", time.Minute, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, cs.Len())
}

func TestInvalidSeries(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	assert.Error(t, s.Put("", time.Minute, bars(1, time.Minute)))
	assert.Error(t, s.Put("A:B", time.Minute, bars(1, time.Minute)))
	_, err := s.Load("BTCUSDT", 0, time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestKeysOrdered(t *testing.T) {
	t.Parallel()

	p, err := seriesPrefix("BTCUSDT", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "c:BTCUSDT:1m:", string(p))

	a := candleKey(p, t0)
	b := candleKey(p, t0.Add(time.Millisecond))
	assert.Less(t, string(a), string(b))
	assert.Less(t, string(b), string(keyUpperBound(p)))

	got, err := keyTime(p, b)
	require.NoError(t, err)
	assert.True(t, got.Equal(t0.Add(time.Millisecond)))

	_, err = keyTime(p, p)
	assert.Error(t, err)
}
